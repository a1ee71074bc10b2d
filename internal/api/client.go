package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Error is a non-2xx response from the server
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the document-retrieval chat server
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the given server
func NewClient(baseURL, authToken string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.Named("api"),
	}
}

// BaseURL returns the configured server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds a request with auth and content-type headers set
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// doJSON issues a JSON request and decodes the response into out (may be nil)
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader, "application/json")
	if err != nil {
		return err
	}

	c.logger.Debug("request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

// responseError converts a non-2xx response into an *Error
func (c *Client) responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))

	// Servers often wrap the message as {"detail": "..."}
	var wrapper struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Detail != "" {
		msg = wrapper.Detail
	}

	c.logger.Warn("request failed",
		zap.Int("status", resp.StatusCode),
		zap.String("message", msg),
	)
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}

// ListDocuments fetches document records matching the filter
func (c *Client) ListDocuments(ctx context.Context, filter ListDocumentsRequest) ([]Document, error) {
	var docs []Document
	if err := c.doJSON(ctx, http.MethodPost, "/documents", filter, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument fetches a single document, including its current status
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// BatchDocuments fetches full records for a set of document ids
func (c *Client) BatchDocuments(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body := map[string][]string{"document_ids": ids}
	var docs []Document
	if err := c.doJSON(ctx, http.MethodPost, "/batch/documents", body, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateMetadata replaces the mutable metadata of a document
func (c *Client) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	path := "/documents/" + url.PathEscape(id) + "/update_metadata"
	return c.doJSON(ctx, http.MethodPost, path, metadata, nil)
}

// DeleteDocument removes a document from the server
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

// FolderSummaries fetches all folder summaries
func (c *Client) FolderSummaries(ctx context.Context) ([]FolderSummary, error) {
	var folders []FolderSummary
	if err := c.doJSON(ctx, http.MethodGet, "/folders/summary", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// FolderDetail fetches one folder including its member document ids
func (c *Client) FolderDetail(ctx context.Context, id string) (*FolderDetail, error) {
	var detail FolderDetail
	if err := c.doJSON(ctx, http.MethodGet, "/folders/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateFolder creates a new named folder
func (c *Client) CreateFolder(ctx context.Context, name, description string) (*FolderSummary, error) {
	var folder FolderSummary
	req := CreateFolderRequest{Name: name, Description: description}
	if err := c.doJSON(ctx, http.MethodPost, "/folders", req, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeleteFolder deletes a folder; member documents are left intact
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/folders/"+url.PathEscape(id), nil, nil)
}

// AddDocumentToFolder attaches a document to a folder
func (c *Client) AddDocumentToFolder(ctx context.Context, folderID, documentID string) error {
	path := "/folders/" + url.PathEscape(folderID) + "/documents/" + url.PathEscape(documentID)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// RemoveDocumentFromFolder detaches a document from a folder
func (c *Client) RemoveDocumentFromFolder(ctx context.Context, folderID, documentID string) error {
	path := "/folders/" + url.PathEscape(folderID) + "/documents/" + url.PathEscape(documentID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// writeIngestFields writes the shared multipart fields for file ingest
func writeIngestFields(w *multipart.Writer, opts IngestOptions) error {
	metadata := opts.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := w.WriteField("metadata", string(metadataJSON)); err != nil {
		return err
	}

	rules := opts.Rules
	if rules == nil {
		rules = []interface{}{}
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	if err := w.WriteField("rules", string(rulesJSON)); err != nil {
		return err
	}

	if err := w.WriteField("use_colpali", strconv.FormatBool(opts.UseColpali)); err != nil {
		return err
	}
	if opts.FolderName != "" {
		if err := w.WriteField("folder_name", opts.FolderName); err != nil {
			return err
		}
	}
	return nil
}

// IngestFile uploads a single file and returns the created document record
func (c *Client) IngestFile(ctx context.Context, filename string, content io.Reader, opts IngestOptions) (*Document, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if err := writeIngestFields(w, opts); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/ingest/file", &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ingest file", zap.String("filename", filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.responseError(resp)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ingest response: %w", err)
	}
	return &doc, nil
}

// IngestFiles uploads multiple files in one request
func (c *Client) IngestFiles(ctx context.Context, files []FileUpload, parallel bool, opts IngestOptions) (*IngestBatchResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write file content: %w", err)
		}
	}
	if err := writeIngestFields(w, opts); err != nil {
		return nil, err
	}
	if err := w.WriteField("parallel", strconv.FormatBool(parallel)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/ingest/files", &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ingest files", zap.Int("count", len(files)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %d files: %w", len(files), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.responseError(resp)
	}

	var batch IngestBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode ingest response: %w", err)
	}
	return &batch, nil
}

// IngestText uploads raw text as a document
func (c *Client) IngestText(ctx context.Context, content string, opts IngestOptions) (*Document, error) {
	body := map[string]interface{}{
		"content":     content,
		"metadata":    opts.Metadata,
		"rules":       opts.Rules,
		"use_colpali": opts.UseColpali,
	}
	if body["metadata"] == nil {
		body["metadata"] = map[string]interface{}{}
	}
	if body["rules"] == nil {
		body["rules"] = []interface{}{}
	}
	if opts.FolderName != "" {
		body["folder_name"] = opts.FolderName
	}

	var doc Document
	if err := c.doJSON(ctx, http.MethodPost, "/ingest/text", body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// AgentQuery runs one agent turn
func (c *Client) AgentQuery(ctx context.Context, query, chatID string) (*AgentResponse, error) {
	var resp AgentResponse
	req := AgentRequest{Query: query, ChatID: chatID}
	if err := c.doJSON(ctx, http.MethodPost, "/agent", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatHistory fetches the persisted message history of a conversation
func (c *Client) ChatHistory(ctx context.Context, chatID string) ([]ChatMessage, error) {
	var messages []ChatMessage
	if err := c.doJSON(ctx, http.MethodGet, "/chat/"+url.PathEscape(chatID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Complete runs one plain chat turn (non-streaming)
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	req.Stream = false
	var resp CompletionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListModels fetches the chat models the server offers
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}
