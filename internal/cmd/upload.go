package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/dqc/internal/api"
	"github.com/dyike/dqc/internal/docstore"
)

var (
	uploadTextFlag     string
	uploadMetadataFlag string
	uploadRulesFlag    string
	uploadFolderFlag   string
	uploadColpaliFlag  bool
	uploadWaitFlag     bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload files or text for ingestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && uploadTextFlag == "" {
			return fmt.Errorf("nothing to upload: pass file paths or --text")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		opts := api.IngestOptions{
			Metadata:   parseJSONObject(uploadMetadataFlag),
			FolderName: uploadFolderFlag,
			UseColpali: uploadColpaliFlag,
		}
		if rules := parseJSONObject(uploadRulesFlag); rules != nil {
			// rules 是数组；单个对象也接受
			opts.Rules = []interface{}{rules}
		}

		uploader := docstore.NewUploader(ctx, a.client, a.docs, a.folders, a.bus, a.logger)

		if uploadTextFlag != "" {
			uploader.UploadText(uploadTextFlag, opts)
			fmt.Println("Uploading text document...")
		}

		var files []api.FileUpload
		for _, path := range args {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			files = append(files, api.FileUpload{
				Filename: filepath.Base(path),
				Content:  content,
			})
		}
		if len(files) > 0 {
			uploader.UploadFiles(files, len(files) > 1, opts)
			fmt.Printf("Uploading %d file(s)...\n", len(files))
		}

		uploader.Wait()

		failed := 0
		for _, doc := range a.docs.Documents() {
			if doc.SystemMetadata.Status == api.StatusFailed {
				failed++
				fmt.Printf("  failed: %s\n", doc.Filename)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d upload(s) failed", failed)
		}

		if err := a.docs.Refresh(ctx); err != nil {
			return err
		}
		fmt.Println("Upload accepted")

		if uploadWaitFlag {
			return waitForProcessing(cmd, a)
		}
		return nil
	},
}

// waitForProcessing blocks until the server reports no processing documents.
func waitForProcessing(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	poller := docstore.NewPoller(a.client, a.docs, a.bus, a.cfg.PollInterval(), a.logger)
	poller.Kick(ctx)

	fmt.Println("Waiting for processing to finish...")
	for poller.Running() {
		select {
		case <-ctx.Done():
			poller.Stop()
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	for _, doc := range a.docs.Documents() {
		if doc.SystemMetadata.Status == api.StatusFailed {
			fmt.Printf("  processing failed: %s\n", doc.Filename)
		}
	}
	fmt.Println("Processing finished")
	return nil
}

func init() {
	uploadCmd.Flags().StringVar(&uploadTextFlag, "text", "", "Upload raw text instead of files")
	uploadCmd.Flags().StringVar(&uploadMetadataFlag, "metadata", "", "Metadata as a JSON object")
	uploadCmd.Flags().StringVar(&uploadRulesFlag, "rules", "", "Ingestion rules as a JSON object")
	uploadCmd.Flags().StringVar(&uploadFolderFlag, "folder", "", "Target folder name")
	uploadCmd.Flags().BoolVar(&uploadColpaliFlag, "colpali", false, "Use multimodal embeddings")
	uploadCmd.Flags().BoolVar(&uploadWaitFlag, "wait", false, "Wait until server-side processing finishes")
}
