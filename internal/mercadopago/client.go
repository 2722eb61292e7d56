package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mcalor/sabor-emilia/config"
)

var (
	// ErrTransient covers transport failures and 5xx responses that
	// survive the bounded retries; the caller surfaces it so the
	// delivery gets retried externally.
	ErrTransient = errors.New("mercadopago temporarily unavailable")
	// ErrGateway covers 4xx responses, retrying cannot help.
	ErrGateway = errors.New("mercadopago rejected request")
)

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

type Client struct {
	address  string
	token    string
	client   *http.Client
	logger   *zap.SugaredLogger
	attempts int
	backoff  time.Duration
}

func NewClient(cfg *config.Config, logger *zap.SugaredLogger) *Client {
	timeout := cfg.GatewayRequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		address:  cfg.MercadoPagoAddress,
		token:    cfg.MercadoPagoToken,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

type PreferenceItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type PreferenceBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferencePayer struct {
	Email string `json:"email"`
}

type PreferenceRequest struct {
	Items             []PreferenceItem   `json:"items"`
	Payer             PreferencePayer    `json:"payer"`
	BackURLs          PreferenceBackURLs `json:"back_urls"`
	AutoReturn        string             `json:"auto_return"`
	ExternalReference string             `json:"external_reference"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// RedirectURL prefers the production init point and falls back to the
// sandbox one on test credentials.
func (p *Preference) RedirectURL() string {
	if p.InitPoint != "" {
		return p.InitPoint
	}
	return p.SandboxInitPoint
}

type Payment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

func (c *Client) CreatePreference(ctx context.Context, pref *PreferenceRequest) (*Preference, error) {
	body, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preference: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, c.address+"/checkout/preferences", body)
	if err != nil {
		return nil, err
	}

	var preference Preference
	if err = json.Unmarshal(respBody, &preference); err != nil {
		return nil, fmt.Errorf("failed to decode preference response: %w", err)
	}

	return &preference, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.address+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}

	var payment Payment
	if err = json.Unmarshal(respBody, &payment); err != nil {
		return nil, fmt.Errorf("failed to decode payment response: %w", err)
	}

	return &payment, nil
}

// do sends the request with bounded exponential backoff. Transport errors
// and 5xx responses are retried, 4xx responses are not.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransient, err)
			c.logger.Warnw("mercadopago request failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransient, err)
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
			c.logger.Warnw("mercadopago server error", "url", url, "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, respBody)
		}

		return respBody, nil
	}

	return nil, lastErr
}
