package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/dqc/internal/docstore"
	"github.com/dyike/dqc/internal/format"
)

var (
	docsFolderFlag      string
	docsUnorganizedFlag bool
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage documents",
}

var docsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		scope := docstore.Scope{Kind: docstore.ScopeAll}
		if docsUnorganizedFlag {
			scope = docstore.Scope{Kind: docstore.ScopeUnorganized}
		} else if docsFolderFlag != "" {
			scope = docstore.Scope{Kind: docstore.ScopeFolder, Folder: docsFolderFlag}
		}

		if scope.Kind == docstore.ScopeUnorganized {
			// Membership comes from folder summaries
			if err := a.folders.Refresh(ctx); err != nil {
				return err
			}
		}

		a.docs.SetScope(scope)
		if err := a.docs.Refresh(ctx); err != nil {
			return err
		}

		return format.OutputDocumentList(a.docs.Documents(), format.ParseFormat(outputFormat))
	},
}

var docsGetCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Show a document record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		doc, err := a.client.GetDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return format.OutputDocument(doc, format.ParseFormat(outputFormat))
	},
}

var docsRmCmd = &cobra.Command{
	Use:   "rm <document-id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.client.DeleteDocument(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var docsMetaCmd = &cobra.Command{
	Use:   "meta <document-id> <metadata-json>",
	Short: "Replace a document's metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		metadata := parseJSONObject(args[1])
		if err := a.client.UpdateMetadata(cmd.Context(), args[0], metadata); err != nil {
			return err
		}
		fmt.Printf("Updated metadata of %s\n", args[0])
		return nil
	},
}

func init() {
	docsLsCmd.Flags().StringVar(&docsFolderFlag, "folder", "", "List documents of one folder")
	docsLsCmd.Flags().BoolVar(&docsUnorganizedFlag, "unorganized", false, "List documents in no folder")

	docsCmd.AddCommand(docsLsCmd)
	docsCmd.AddCommand(docsGetCmd)
	docsCmd.AddCommand(docsRmCmd)
	docsCmd.AddCommand(docsMetaCmd)
}
