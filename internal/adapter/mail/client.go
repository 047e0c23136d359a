// Package mail delivers cash-out notifications through an HTTP mail API.
// Delivery is decoupled from the settlement commit path: the client retries
// a few times on its own and reports the final outcome to the listener,
// which only logs it.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"token-settlement-gateway/config"
	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/service"

	"github.com/rs/zerolog"
)

// mailRetryIntervals bounds the in-call retry schedule.
var mailRetryIntervals = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.Notifier against a JSON mail API.
type Client struct {
	apiURL     string
	apiKey     string
	from       string
	to         string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a mail API client.
func NewClient(cfg config.MailConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		to:         cfg.To,
		httpClient: httpClient,
		log:        log,
	}
}

// message is the JSON body sent to the mail API.
type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotifyCashOut composes and sends the back-office email for one cash-out
// event, retrying transient failures.
func (c *Client) NotifyCashOut(ctx context.Context, ev domain.CashOutEvent) error {
	if c.apiURL == "" || c.to == "" {
		c.log.Debug().Int64("sequence", ev.Sequence).Msg("mail: no recipient configured, skipping")
		return nil
	}

	notice := service.ComposeCashOutNotification(c.to, ev)
	payload, err := json.Marshal(message{
		From:    c.from,
		To:      notice.To,
		Subject: notice.Subject,
		Body:    notice.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(mailRetryIntervals); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(mailRetryIntervals[attempt-1]):
			}
		}

		lastErr = c.send(ctx, payload)
		if lastErr == nil {
			c.log.Info().Int64("sequence", ev.Sequence).Int("attempt", attempt+1).Msg("mail: notification sent")
			return nil
		}
		c.log.Warn().Err(lastErr).Int64("sequence", ev.Sequence).Int("attempt", attempt+1).Msg("mail: delivery attempt failed")
	}

	return fmt.Errorf("mail delivery exhausted retries: %w", lastErr)
}

func (c *Client) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}
	return nil
}
