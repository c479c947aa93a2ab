package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSink talks to the tracker's REST API. Every call carries a bounded
// timeout so one stuck tracker call cannot stall a whole batch.
type HTTPSink struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSink builds a sink for the tracker at baseURL. The token, when
// non-empty, is sent as a bearer credential.
func NewHTTPSink(baseURL, token string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) CreateTicket(ctx context.Context, f Fields) (int, error) {
	var resp struct {
		ID int `json:"id"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/tickets", f, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (s *HTTPSink) Notify(ctx context.Context, ticketID int) error {
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/api/tickets/%d/notify", ticketID), nil, nil)
}

func (s *HTTPSink) Priorities(ctx context.Context) ([]Priority, error) {
	var out []Priority
	if err := s.do(ctx, http.MethodGet, "/api/priorities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSink) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracker returned %d for %s %s: %s", resp.StatusCode, method, path, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
