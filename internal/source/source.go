package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price-threshold-alerts/internal/version"
)

// ErrUnavailable reports that a provider answered but carried no usable value.
var ErrUnavailable = errors.New("source: value unavailable")

const defaultTimeout = 10 * time.Second

// Source fetches the current value of one instrument.
type Source interface {
	Fetch(ctx context.Context, instrument string) (decimal.Decimal, error)
}

// HTTPError is returned for non-success provider responses.
type HTTPError struct {
	Provider string
	Status   int
	Message  string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api error (%d)", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Message)
}

type request struct {
	provider string
	endpoint string
	query    url.Values
	headers  map[string]string
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client *http.Client, r request, out any) error {
	endpoint := r.endpoint
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", r.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", r.provider, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", r.provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(r.provider, resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.provider, err)
	}
	return nil
}

type errorResponse struct {
	Message     string `json:"message"`
	Detail      string `json:"detail"`
	Description string `json:"description"`
	Status      struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func parseHTTPError(provider string, status int, payload []byte) error {
	httpErr := &HTTPError{Provider: provider, Status: status}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		for _, msg := range []string{apiErr.Status.ErrorMessage, apiErr.Description, apiErr.Detail, apiErr.Message} {
			if msg != "" {
				httpErr.Message = msg
				return httpErr
			}
		}
	}

	httpErr.Message = excerpt(string(payload))
	return httpErr
}

func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}

func validDecimal(v decimal.NullDecimal) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Decimal{}, ErrUnavailable
	}
	return v.Decimal, nil
}
