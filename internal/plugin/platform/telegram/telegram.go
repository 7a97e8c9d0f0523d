package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chirino/chat-archive/internal/config"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	registryplatform "github.com/chirino/chat-archive/internal/registry/platform"
)

func init() {
	registryplatform.Register(registryplatform.Plugin{
		Name:   "telegram",
		Loader: load,
	})
}

func load(ctx context.Context) (registryplatform.Messenger, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || strings.TrimSpace(cfg.TelegramBotToken) == "" {
		return nil, fmt.Errorf("telegram: CHAT_ARCHIVE_TELEGRAM_BOT_TOKEN is required")
	}
	return New(cfg.TelegramBaseURL, cfg.TelegramBotToken, &http.Client{Timeout: cfg.TelegramTimeout}), nil
}

// New returns a Bot API client. A nil httpClient uses a client with a 10s timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *Client) Name() string {
	return "telegram"
}

type deleteMessageRequest struct {
	ChatID    any   `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int64) (registryplatform.DeleteResult, error) {
	reqBody, err := json.Marshal(deleteMessageRequest{
		ChatID:    chatIDValue(chatID),
		MessageID: messageID,
	})
	if err != nil {
		return registryplatform.DeleteResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot"+c.token+"/deleteMessage", bytes.NewReader(reqBody))
	if err != nil {
		return registryplatform.DeleteResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL embeds the bot token; never let it reach logs.
		cause := redact(err, c.token)
		return registryplatform.DeleteResult{}, &registryblob.UpstreamError{
			Description: "telegram deleteMessage request failed: " + cause.Error(),
			Err:         cause,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		cause := redact(err, c.token)
		return registryplatform.DeleteResult{}, &registryblob.UpstreamError{
			Description: "telegram deleteMessage: read response: " + cause.Error(),
			Err:         cause,
		}
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return registryplatform.DeleteResult{}, &registryblob.UpstreamError{
			Description: fmt.Sprintf("telegram deleteMessage: unexpected response (HTTP %d)", resp.StatusCode),
			Err:         err,
		}
	}
	if !result.OK {
		desc := result.Description
		if desc == "" {
			desc = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return registryplatform.DeleteResult{OK: false, Description: desc}, nil
	}
	return registryplatform.DeleteResult{OK: true}, nil
}

// chatIDValue sends numeric chat ids as numbers and channel usernames as strings.
func chatIDValue(chatID string) any {
	if n, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return n
	}
	return chatID
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}

var _ registryplatform.Messenger = (*Client)(nil)
