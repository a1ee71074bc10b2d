package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/dqc/internal/api"
	"github.com/dyike/dqc/internal/config"
	"github.com/dyike/dqc/internal/docstore"
	"github.com/dyike/dqc/internal/logging"
)

var (
	// Version 版本号
	Version string

	// BuildTime 构建时间
	BuildTime string

	// 全局标志
	serverFlag   string
	tokenFlag    string
	outputFormat string
)

// printUsageTree 从 cobra 命令树自动生成usage
func printUsageTree(root *cobra.Command) {
	var lines []string
	maxLen := 0

	// 收集所有命令行
	var collect func(cmd *cobra.Command, prefix string)
	collect = func(cmd *cobra.Command, prefix string) {
		for _, sub := range cmd.Commands() {
			if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
				continue
			}
			if sub.HasSubCommands() {
				collect(sub, prefix+sub.Name()+" ")
			} else {
				use := prefix + sub.Use
				if len(use) > maxLen {
					maxLen = len(use)
				}
				lines = append(lines, use+"\t"+sub.Short)
			}
		}
	}
	collect(root, root.Name()+" ")

	// 对齐输出
	fmt.Println("Usage:")
	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 2)
		padding := maxLen - len(parts[0]) + 2
		if padding < 2 {
			padding = 2
		}
		fmt.Printf("  %s%s- %s\n", parts[0], strings.Repeat(" ", padding), parts[1])
	}
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "dqc",
	Short:   "Terminal client for a document-retrieval chat server",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand: launch the TUI
		return runTUI(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "", "Server URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Auth token (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text|json|csv|md)")

	// 添加子命令
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(usageCmd)

	// 版本模板
	rootCmd.SetVersionTemplate(fmt.Sprintf("dqc version %s (built %s)\n", Version, BuildTime))
}

var usageCmd = &cobra.Command{
	Use:    "usage",
	Short:  "Show the full command tree",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		printUsageTree(rootCmd)
	},
}

// app bundles everything a CLI command needs
type app struct {
	cfg     *config.Config
	client  *api.Client
	logger  *zap.Logger
	bus     *docstore.Bus
	folders *docstore.FolderStore
	docs    *docstore.DocumentStore
}

// newApp 构建 CLI 运行环境（辅助函数）
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}
	if tokenFlag != "" {
		cfg.AuthToken = tokenFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logPath, err := cfg.GetLogPath()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logPath, false)

	client := api.NewClient(cfg.ServerURL, cfg.AuthToken, logger)
	bus := docstore.NewBus()
	folders := docstore.NewFolderStore(client, bus, logger)
	docs := docstore.NewDocumentStore(client, folders, bus, logger)

	return &app{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		bus:     bus,
		folders: folders,
		docs:    docs,
	}, nil
}

// parseJSONObject parses a JSON object flag value. Malformed input is
// not an error: it degrades to a single raw string value.
func parseJSONObject(s string) map[string]interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]interface{}{"value": s}
	}
	return m
}
