// Package notify pushes escrow lifecycle notices to an external endpoint
// (the marketplace's messaging service). Delivery is fire-and-forget: a
// failed notice is logged and dropped, never retried at the cost of blocking
// a money movement.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stayzen/stayzen/internal/metrics"
	"github.com/stayzen/stayzen/internal/payment"
)

// Notice is the JSON body posted to the notification endpoint.
type Notice struct {
	Kind      string    `json:"kind"` // payment_status or transfer_reversed
	BookingID string    `json:"bookingId"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	EventType string    `json:"eventType,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher posts HMAC-signed notices. It satisfies both the ledger's
// StatusNotifier and ReversalAlerter hooks.
type Dispatcher struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
}

func NewDispatcher(url, secret string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "notify"),
	}
}

// PaymentStatusChanged sends a notice when a booking reaches a state the
// guest or realtor cares about. Intermediate transitions stay internal.
func (d *Dispatcher) PaymentStatusChanged(ctx context.Context, bookingID string, from, to payment.Status) {
	switch to {
	case payment.StatusSettled, payment.StatusRefunded, payment.StatusFailed:
	default:
		return
	}
	d.post(&Notice{
		Kind:      "payment_status",
		BookingID: bookingID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now(),
	})
}

// ReversedTransfer sends an operator alert for a reversed transfer leg.
func (d *Dispatcher) ReversedTransfer(ctx context.Context, bookingID, eventType, detail string) {
	d.post(&Notice{
		Kind:      "transfer_reversed",
		BookingID: bookingID,
		EventType: eventType,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

// post delivers in a goroutine so callers holding a job lock never wait on
// the network.
func (d *Dispatcher) post(n *Notice) {
	if d.url == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.send(ctx, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			d.logger.Warn("notice delivery failed",
				"kind", n.Kind, "bookingId", n.BookingID, "error", err)
			return
		}
		metrics.NotificationsTotal.WithLabelValues("ok").Inc()
	}()
}

func (d *Dispatcher) send(ctx context.Context, n *Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Stayzen-Kind", n.Kind)
	req.Header.Set("X-Stayzen-Timestamp", fmt.Sprintf("%d", n.Timestamp.Unix()))
	if d.secret != "" {
		req.Header.Set("X-Stayzen-Signature", d.sign(payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint answered %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(d.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Nop drops every notice. Used when no notify endpoint is configured.
type Nop struct{}

func (Nop) PaymentStatusChanged(context.Context, string, payment.Status, payment.Status) {}
func (Nop) ReversedTransfer(context.Context, string, string, string)                     {}
