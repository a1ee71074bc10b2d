package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/dqc/internal/chat"
	"github.com/dyike/dqc/internal/format"
	"github.com/dyike/dqc/internal/storage"
)

var (
	chatAgentFlag  bool
	chatModelFlag  string
	chatStreamFlag bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <query...>",
	Short: "Ask a one-shot question against your documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		model := a.cfg.Model
		if chatModelFlag != "" {
			model = chatModelFlag
		}
		stream := a.cfg.Stream
		if cmd.Flags().Changed("stream") {
			stream = chatStreamFlag
		}
		// 只有 text 格式才逐段打印
		outFmt := format.ParseFormat(outputFormat)
		streamToStdout := stream && outFmt == format.FormatText && !chatAgentFlag

		// 本地历史可选；打不开也不阻塞提问
		var db *storage.DB
		if path, err := a.cfg.GetDatabasePath(); err == nil {
			if d, err := storage.New(path); err == nil {
				db = d
				defer d.Close()
			} else {
				a.logger.Warn("local history disabled: " + err.Error())
			}
		}

		ctrl := chat.NewController(a.client, db, model, stream, a.logger)
		ctrl.NewConversation()
		if chatAgentFlag {
			if err := ctrl.SetMode(ctx, chat.ModeAgent); err != nil {
				return err
			}
		}

		events := ctrl.Send(ctx, query)

		var failed bool
		for ev := range events {
			switch ev.Type {
			case chat.EventTypeDelta:
				if streamToStdout {
					fmt.Print(ev.Delta)
				}
			case chat.EventTypeError:
				failed = true
			}
		}
		if streamToStdout {
			fmt.Println()
		}

		msgs := ctrl.Messages()
		if len(msgs) == 0 {
			return fmt.Errorf("no answer received")
		}
		answer := msgs[len(msgs)-1]
		if failed || answer.IsError {
			fmt.Fprintln(os.Stderr, answer.Content)
			return fmt.Errorf("request failed")
		}
		if streamToStdout {
			// content already printed; still show sources
			answer.Content = ""
		}
		return format.OutputAnswer(answer, outFmt)
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatAgentFlag, "agent", false, "Use agent mode (tool calls)")
	chatCmd.Flags().StringVar(&chatModelFlag, "model", "", "Model override")
	chatCmd.Flags().BoolVar(&chatStreamFlag, "stream", false, "Stream the answer token by token")
}
