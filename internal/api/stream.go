package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// streamChunk is one SSE data payload from /chat/completions.
// Delta events carry completion text; the final event carries sources.
type streamChunk struct {
	Completion string   `json:"completion"`
	Sources    []Source `json:"sources"`
	Done       bool     `json:"done"`
}

// CompleteStream runs one plain chat turn with streaming enabled.
// onDelta is invoked for each text fragment as it arrives; the returned
// response holds the accumulated completion and any trailing sources.
func (c *Client) CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(string)) (*CompletionResponse, error) {
	req.Stream = true

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", strings.NewReader(string(data)), "application/json")
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("streaming completion", zap.String("chat_id", req.ChatID))

	// No client timeout on streams; cancellation comes from ctx
	streamClient := &http.Client{}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.responseError(resp)
	}

	result := &CompletionResponse{}
	consume := func(line string) {
		if line == "" || line == "data: [DONE]" {
			return
		}
		if !strings.HasPrefix(line, "data: ") {
			return
		}
		var event streamChunk
		if err := json.Unmarshal([]byte(line[6:]), &event); err != nil {
			c.logger.Debug("skipping malformed stream event", zap.Error(err))
			return
		}
		if event.Completion != "" {
			result.Completion += event.Completion
			if onDelta != nil {
				onDelta(event.Completion)
			}
		}
		if len(event.Sources) > 0 {
			result.Sources = event.Sources
		}
	}

	var remainder string
	buf := make([]byte, 4096)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := remainder + string(buf[:n])
			remainder = ""

			// A read boundary can fall anywhere in a line. Hold the
			// unterminated tail back until the rest of it arrives.
			if !strings.HasSuffix(chunk, "\n") {
				if idx := strings.LastIndexByte(chunk, '\n'); idx >= 0 {
					remainder = chunk[idx+1:]
					chunk = chunk[:idx+1]
				} else {
					remainder = chunk
					chunk = ""
				}
			}

			for _, line := range splitSSELines(chunk) {
				consume(line)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, fmt.Errorf("stream interrupted: %w", readErr)
		}
	}

	// A final event without a trailing newline still counts
	consume(remainder)

	return result, nil
}

// splitSSELines splits SSE data on newlines, tolerating CRLF endings
func splitSSELines(data string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			line := data[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
