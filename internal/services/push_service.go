package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

type pushTokenLister interface {
	ListByUser(ctx context.Context, userID int64) ([]string, error)
}

// ExpoPushService delivers push notifications through the Expo push API. A
// user with no registered device tokens is a silent no-op.
type ExpoPushService struct {
	baseURL    string
	tokens     pushTokenLister
	httpClient *http.Client
}

func NewExpoPushService(baseURL string, tokens pushTokenLister) *ExpoPushService {
	if baseURL == "" {
		baseURL = defaultExpoPushURL
	}
	return &ExpoPushService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: http.DefaultClient,
	}
}

type expoPushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound"`
	Data  map[string]string `json:"data,omitempty"`
}

func (s *ExpoPushService) SendToUser(
	ctx context.Context,
	userID int64,
	title string,
	body string,
	data map[string]string,
) error {
	tokens, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	batch := make([]expoPushMessage, 0, len(tokens))
	for _, token := range tokens {
		batch = append(batch, expoPushMessage{
			To:    token,
			Title: title,
			Body:  body,
			Sound: "default",
			Data:  data,
		})
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send push: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return nil
}
