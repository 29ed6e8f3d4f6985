// Package telegram is a minimal Bot API client for build notifications.
//
// Only the three methods the notifier needs are implemented: sendMessage,
// editMessageText, and sendDocument. Calls retry with a fixed backoff on
// transient failures; a client built without a token degrades to a no-op so
// builds run unattended even with notifications unconfigured.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashwinrm/buildherald/iox"
	"github.com/ashwinrm/buildherald/log"
)

// DefaultTimeout is the per-request timeout. Document uploads (error logs)
// stay small, so one bound covers all three methods.
const DefaultTimeout = 2 * time.Minute

// DefaultRetries is the number of retry attempts after the first try.
const DefaultRetries = 2

// DefaultBackoff is the fixed wait between attempts.
const DefaultBackoff = 2 * time.Second

const defaultAPIBase = "https://api.telegram.org"

// MessageID identifies a posted message for later edits. The zero value
// means "no message"; editing it is a no-op.
type MessageID int64

// Button is one inline keyboard link button.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Client talks to the Telegram Bot API. A nil-token client is disabled:
// every method succeeds without doing anything.
type Client struct {
	token   string
	apiBase string
	retries int
	backoff time.Duration
	client  *http.Client
	logger  *log.Logger
}

// NewClient creates a client for the given bot token. An empty token yields
// a disabled client.
func NewClient(token string, logger *log.Logger) *Client {
	return &Client{
		token:   token,
		apiBase: defaultAPIBase,
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
}

// Enabled reports whether the client has a token to talk with.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// APIError is a Bot API rejection (non-2xx with a JSON error body).
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: api error %d", e.Code)
	}
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}

// apiResponse is the envelope every Bot API method answers with.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendMessage posts an HTML-formatted message and returns its id for later
// edits. Returns zero id with nil error when the client is disabled.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, buttons []Button) (MessageID, error) {
	if !c.Enabled() {
		return 0, nil
	}

	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if markup := inlineKeyboard(buttons); markup != nil {
		payload["reply_markup"] = markup
	}

	resp, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		c.logger.Warn("notification send failed", map[string]any{
			"chat": chatID, "error": err.Error(),
		})
		return 0, err
	}
	return MessageID(resp.Result.MessageID), nil
}

// EditMessage replaces the text of a previously sent message. Editing the
// zero MessageID is a no-op, as is an edit that leaves the text unchanged.
func (c *Client) EditMessage(ctx context.Context, chatID string, id MessageID, text string, buttons []Button) error {
	if !c.Enabled() || id == 0 {
		return nil
	}

	payload := map[string]any{
		"chat_id":                  chatID,
		"message_id":               int64(id),
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if markup := inlineKeyboard(buttons); markup != nil {
		payload["reply_markup"] = markup
	}

	_, err := c.call(ctx, "editMessageText", payload)
	if err != nil {
		// Reposting identical text is not an error worth surfacing.
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
			return nil
		}
		c.logger.Warn("notification edit failed", map[string]any{
			"chat": chatID, "message_id": int64(id), "error": err.Error(),
		})
		return err
	}
	return nil
}

// SendDocument uploads a file (build/error log) with an optional caption.
func (c *Client) SendDocument(ctx context.Context, chatID, path, caption string) error {
	if !c.Enabled() {
		return nil
	}

	err := c.withRetry(ctx, func() error {
		return c.postDocument(ctx, chatID, path, caption)
	})
	if err != nil {
		c.logger.Warn("document upload failed", map[string]any{
			"chat": chatID, "file": path, "error": err.Error(),
		})
	}
	return err
}

// call invokes a JSON Bot API method with retry.
func (c *Client) call(ctx context.Context, method string, payload map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	var resp *apiResponse
	err = c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.doJSON(ctx, method, body)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// withRetry runs fn up to 1+retries times with a fixed backoff between
// attempts. 4xx API rejections are non-retriable and fail immediately.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	attempts := 1 + c.retries

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("telegram: context canceled: %w", err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("telegram: context canceled during backoff: %w", ctx.Err())
			case <-time.After(c.backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
			return lastErr
		}
	}

	return fmt.Errorf("telegram: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}

// doJSON performs a single JSON POST and decodes the envelope.
func (c *Client) doJSON(ctx context.Context, method string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	return decodeEnvelope(resp)
}

// postDocument performs a single multipart sendDocument request.
func (c *Client) postDocument(ctx context.Context, chatID, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telegram: open %q: %w", path, err)
	}
	defer iox.DiscardClose(f)

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		if err := form.WriteField("chat_id", chatID); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if caption != "" {
			if err := form.WriteField("caption", caption); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
		part, err := form.CreateFormFile("document", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), pr)
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	_, err = decodeEnvelope(resp)
	return err
}

// decodeEnvelope reads a Bot API response, mapping rejections to APIError.
func decodeEnvelope(resp *http.Response) (*apiResponse, error) {
	var parsed apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{Code: resp.StatusCode}
		}
		return nil, fmt.Errorf("telegram: malformed response: %w", err)
	}
	if !parsed.OK {
		code := parsed.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Code: code, Description: parsed.Description}
	}
	return &parsed, nil
}

// inlineKeyboard renders buttons as a single-column inline keyboard, or nil
// when there are none.
func inlineKeyboard(buttons []Button) map[string]any {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []Button{b})
	}
	return map[string]any{"inline_keyboard": rows}
}

// withEndpoint overrides the API base URL and retry timing (for testing).
func (c *Client) withEndpoint(apiBase string, backoff time.Duration) *Client {
	c.apiBase = apiBase
	c.backoff = backoff
	return c
}
