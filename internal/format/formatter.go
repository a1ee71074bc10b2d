package format

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyike/dqc/internal/api"
	"github.com/dyike/dqc/internal/chat"
)

// Format names an output format for CLI commands
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatMD   Format = "md"
)

// OutputDocumentList prints a list of documents
func OutputDocumentList(docs []api.Document, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(docs)
	case FormatCSV:
		return outputDocListCSV(docs)
	case FormatMD:
		return outputDocListMarkdown(docs)
	default:
		return outputDocListText(docs)
	}
}

// OutputDocument prints a single document record
func OutputDocument(doc *api.Document, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(doc)
	case FormatMD:
		return outputDocMarkdown(doc)
	default:
		return outputDocText(doc)
	}
}

// OutputFolderList prints folder summaries
func OutputFolderList(folders []api.FolderSummary, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(folders)
	case FormatMD:
		return outputFolderListMarkdown(folders)
	default:
		return outputFolderListText(folders)
	}
}

// OutputModels prints the available chat models
func OutputModels(models []api.Model, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(models)
	default:
		for _, m := range models {
			name := m.Name
			if name == "" {
				name = m.ID
			}
			if m.Provider != "" {
				fmt.Printf("%-30s %s (%s)\n", m.ID, name, m.Provider)
			} else {
				fmt.Printf("%-30s %s\n", m.ID, name)
			}
		}
		return nil
	}
}

// OutputAnswer prints a chat answer with its sources
func OutputAnswer(msg chat.Message, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(msg)
	default:
		fmt.Println(msg.Content)
		if len(msg.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for _, s := range msg.Sources {
				name := s.Filename
				if name == "" {
					name = s.DocumentID
				}
				fmt.Printf("  - %s (score %.3f)\n", name, s.Score)
			}
		}
		for _, tc := range msg.ToolHistory {
			fmt.Printf("  [tool] %s\n", tc.ToolName)
		}
		return nil
	}
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputDocListText(docs []api.Document) error {
	if len(docs) == 0 {
		fmt.Println("No documents.")
		return nil
	}
	for _, d := range docs {
		status := string(d.SystemMetadata.Status)
		line := fmt.Sprintf("%-36s  %-12s  %s", d.ExternalID, status, d.Filename)
		if d.FolderName != "" {
			line += "  [" + d.FolderName + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func outputDocListCSV(docs []api.Document) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"external_id", "filename", "content_type", "status", "folder"}); err != nil {
		return err
	}
	for _, d := range docs {
		record := []string{
			d.ExternalID,
			d.Filename,
			d.ContentType,
			string(d.SystemMetadata.Status),
			d.FolderName,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func outputDocListMarkdown(docs []api.Document) error {
	fmt.Println("| ID | Filename | Status | Folder |")
	fmt.Println("|----|----------|--------|--------|")
	for _, d := range docs {
		fmt.Printf("| %s | %s | %s | %s |\n",
			d.ExternalID, d.Filename, d.SystemMetadata.Status, d.FolderName)
	}
	return nil
}

func outputDocText(doc *api.Document) error {
	fmt.Printf("ID:           %s\n", doc.ExternalID)
	fmt.Printf("Filename:     %s\n", doc.Filename)
	fmt.Printf("Content-Type: %s\n", doc.ContentType)
	fmt.Printf("Status:       %s\n", doc.SystemMetadata.Status)
	if doc.SystemMetadata.Error != "" {
		fmt.Printf("Error:        %s\n", doc.SystemMetadata.Error)
	}
	if doc.FolderName != "" {
		fmt.Printf("Folder:       %s\n", doc.FolderName)
	}
	if !doc.SystemMetadata.UpdatedAt.IsZero() {
		fmt.Printf("Updated:      %s\n", doc.SystemMetadata.UpdatedAt.Format(time.RFC3339))
	}
	if len(doc.Metadata) > 0 {
		data, err := json.MarshalIndent(doc.Metadata, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("Metadata:\n%s\n", string(data))
	}
	return nil
}

func outputDocMarkdown(doc *api.Document) error {
	fmt.Printf("## %s\n\n", doc.Filename)
	fmt.Printf("- **ID**: %s\n", doc.ExternalID)
	fmt.Printf("- **Status**: %s\n", doc.SystemMetadata.Status)
	if doc.FolderName != "" {
		fmt.Printf("- **Folder**: %s\n", doc.FolderName)
	}
	return nil
}

func outputFolderListText(folders []api.FolderSummary) error {
	if len(folders) == 0 {
		fmt.Println("No folders.")
		return nil
	}
	for _, f := range folders {
		line := fmt.Sprintf("%-24s  %3d docs", f.Name, f.DocCount)
		if f.Description != "" {
			line += "  " + f.Description
		}
		fmt.Println(line)
	}
	return nil
}

func outputFolderListMarkdown(folders []api.FolderSummary) error {
	fmt.Println("| Name | Docs | Description |")
	fmt.Println("|------|------|-------------|")
	for _, f := range folders {
		fmt.Printf("| %s | %d | %s |\n", f.Name, f.DocCount, f.Description)
	}
	return nil
}

// ParseFormat converts a CLI flag value into a Format
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "csv":
		return FormatCSV
	case "md", "markdown":
		return FormatMD
	default:
		return FormatText
	}
}
