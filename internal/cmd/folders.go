package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/dqc/internal/format"
)

var folderDescriptionFlag string

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage folders",
}

var foldersLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.folders.Refresh(cmd.Context()); err != nil {
			return err
		}
		return format.OutputFolderList(a.folders.Folders(), format.ParseFormat(outputFormat))
	},
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.folders.Create(cmd.Context(), args[0], folderDescriptionFlag); err != nil {
			return err
		}
		fmt.Printf("Created folder %s\n", args[0])
		return nil
	},
}

var foldersRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a folder (documents are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := a.folders.Refresh(ctx); err != nil {
			return err
		}
		if err := a.folders.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted folder %s; its documents are now unorganized\n", args[0])
		return nil
	},
}

var foldersDocsCmd = &cobra.Command{
	Use:   "docs <name>",
	Short: "List the documents of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := a.folders.Refresh(ctx); err != nil {
			return err
		}
		docs, err := a.folders.Expand(ctx, args[0])
		if err != nil {
			return err
		}
		return format.OutputDocumentList(docs, format.ParseFormat(outputFormat))
	},
}

var foldersAddCmd = &cobra.Command{
	Use:   "add <name> <document-id>",
	Short: "Attach a document to a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := a.folders.Refresh(ctx); err != nil {
			return err
		}
		if err := a.folders.AddDocument(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Added %s to %s\n", args[1], args[0])
		return nil
	},
}

var foldersRemoveCmd = &cobra.Command{
	Use:   "remove <name> <document-id>",
	Short: "Detach a document from a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := a.folders.Refresh(ctx); err != nil {
			return err
		}
		if err := a.folders.RemoveDocument(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	foldersCreateCmd.Flags().StringVar(&folderDescriptionFlag, "description", "", "Folder description")

	foldersCmd.AddCommand(foldersLsCmd)
	foldersCmd.AddCommand(foldersCreateCmd)
	foldersCmd.AddCommand(foldersRmCmd)
	foldersCmd.AddCommand(foldersDocsCmd)
	foldersCmd.AddCommand(foldersAddCmd)
	foldersCmd.AddCommand(foldersRemoveCmd)
}
