package clientsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"collabchat/internal/domain/message"
	"collabchat/internal/transport/httpdto"
	collab_errors "collabchat/pkg/errors"

	"github.com/google/uuid"
)

// APIClient talks to the REST surface. It implements both
// HistoryFetcher and Sender for the controller.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *APIClient) History(ctx context.Context, conversationID uuid.UUID) ([]message.Record, error) {
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages", c.BaseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var payload httpdto.MessagesResponse
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

func (c *APIClient) Send(ctx context.Context, conversationID uuid.UUID, content, clientMsgID string) (message.Record, error) {
	body, err := json.Marshal(httpdto.SendMessageRequest{Content: content, ClientMsgID: clientMsgID})
	if err != nil {
		return message.Record{}, err
	}

	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages", c.BaseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return message.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var record message.Record
	if err := c.do(req, &record); err != nil {
		return message.Record{}, err
	}
	return record, nil
}

func (c *APIClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(resp.StatusCode, data)
	}

	var envelope httpdto.Response[json.RawMessage]
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("request rejected: %s", envelope.Error)
	}
	return json.Unmarshal(envelope.Data, out)
}

// apiError maps the server's status codes back onto the shared
// sentinels so callers can branch with errors.Is.
func apiError(status int, body []byte) error {
	var envelope httpdto.Response[json.RawMessage]
	detail := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		detail = envelope.Error
	}

	var base error
	switch status {
	case http.StatusUnauthorized:
		base = collab_errors.ErrUnauthorized
	case http.StatusForbidden:
		base = collab_errors.ErrAccessDenied
	case http.StatusNotFound:
		base = collab_errors.ErrNotFound
	case http.StatusBadRequest:
		base = collab_errors.ErrInvalidInput
	case http.StatusTooManyRequests:
		base = collab_errors.ErrRateLimited
	default:
		return fmt.Errorf("unexpected status %d: %s", status, detail)
	}
	if detail == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, detail)
}
