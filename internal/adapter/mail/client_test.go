package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"token-settlement-gateway/config"
	"token-settlement-gateway/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() domain.CashOutEvent {
	return domain.CashOutEvent{
		Sequence:    42,
		Receiver:    "0xcccccccccccccccccccccccccccccccccccccccc",
		Amount:      500,
		BankAccount: "NL91ABNA0417164300",
		OccurredAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestNotifyCashOut_Success(t *testing.T) {
	var got message
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(config.MailConfig{
		APIURL: srv.URL,
		APIKey: "secret-key",
		From:   "noreply@gateway.example",
		To:     "backoffice@gateway.example",
	}, srv.Client(), zerolog.Nop())

	err := client.NotifyCashOut(context.Background(), testEvent())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "noreply@gateway.example", got.From)
	assert.Equal(t, "backoffice@gateway.example", got.To)
	assert.Contains(t, got.Subject, "0xcccccccccccccccccccccccccccccccccccccccc")
	assert.Contains(t, got.Body, "NL91ABNA0417164300")
	assert.Contains(t, got.Body, "#42")
}

func TestNotifyCashOut_SkipsWhenUnconfigured(t *testing.T) {
	// No API URL means notification is a no-op, not an error.
	client := NewClient(config.MailConfig{}, nil, zerolog.Nop())

	err := client.NotifyCashOut(context.Background(), testEvent())
	assert.NoError(t, err)
}

func TestNotifyCashOut_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(config.MailConfig{
		APIURL: srv.URL,
		To:     "backoffice@gateway.example",
	}, srv.Client(), zerolog.Nop())

	err := client.NotifyCashOut(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotifyCashOut_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(config.MailConfig{
		APIURL: srv.URL,
		To:     "backoffice@gateway.example",
	}, srv.Client(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.NotifyCashOut(ctx, testEvent())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
