package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is what the provider says happened to a transfer.
type Kind string

const (
	KindConfirmed Kind = "confirmed"
	KindFailed    Kind = "failed"
	KindReversed  Kind = "reversed"
)

var ErrUnrecognizedPayload = errors.New("unrecognized webhook payload")

// Callback is the provider-independent view of one inbound delivery.
type Callback struct {
	Provider  string
	Kind      Kind
	BookingID string
	EventType string
	Reference string
	Detail    string
}

// Parse extracts a Callback from a raw provider payload. Providers disagree
// on shape, so every field is read through optional lookups and the payload
// is classified by which envelope fields are present, never by assuming one
// provider's schema.
func Parse(raw []byte) (*Callback, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	// Stripe envelopes carry "type" + data.object; Paystack envelopes carry
	// "event" + a flat data map.
	if t, ok := str(body, "type"); ok {
		return parseStripe(t, body)
	}
	if ev, ok := str(body, "event"); ok {
		return parsePaystack(ev, body)
	}
	return nil, ErrUnrecognizedPayload
}

func parseStripe(eventName string, body map[string]interface{}) (*Callback, error) {
	obj, ok := dig(body, "data", "object")
	if !ok {
		return nil, fmt.Errorf("%w: stripe envelope without data.object", ErrUnrecognizedPayload)
	}

	cb := &Callback{Provider: "stripe"}
	cb.Reference, _ = str(obj, "id")
	cb.BookingID, _ = str(obj, "metadata", "booking_id")
	cb.EventType, _ = str(obj, "metadata", "event_type")
	cb.Detail, _ = str(obj, "failure_message")

	switch {
	case strings.HasSuffix(eventName, ".paid"), strings.HasSuffix(eventName, ".succeeded"):
		cb.Kind = KindConfirmed
	case strings.HasSuffix(eventName, ".failed"), strings.HasSuffix(eventName, ".payment_failed"):
		cb.Kind = KindFailed
	case strings.HasSuffix(eventName, ".reversed"), eventName == "charge.dispute.funds_withdrawn":
		cb.Kind = KindReversed
	default:
		return nil, fmt.Errorf("%w: stripe event %q", ErrUnrecognizedPayload, eventName)
	}
	return cb, nil
}

func parsePaystack(eventName string, body map[string]interface{}) (*Callback, error) {
	data, ok := dig(body, "data")
	if !ok {
		return nil, fmt.Errorf("%w: paystack envelope without data", ErrUnrecognizedPayload)
	}

	cb := &Callback{Provider: "paystack"}
	cb.Reference, _ = str(data, "reference")
	if cb.Reference == "" {
		cb.Reference, _ = str(data, "transfer_code")
	}
	cb.BookingID, _ = str(data, "metadata", "booking_id")
	cb.EventType, _ = str(data, "metadata", "event_type")
	cb.Detail, _ = str(data, "reason")

	switch eventName {
	case "transfer.success", "charge.success", "refund.processed":
		cb.Kind = KindConfirmed
	case "transfer.failed", "refund.failed":
		cb.Kind = KindFailed
	case "transfer.reversed":
		cb.Kind = KindReversed
	default:
		return nil, fmt.Errorf("%w: paystack event %q", ErrUnrecognizedPayload, eventName)
	}
	return cb, nil
}

// dig walks nested maps, tolerating absent or mistyped levels.
func dig(m map[string]interface{}, keys ...string) (map[string]interface{}, bool) {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// str reads a string leaf at the given path, tolerating absence.
func str(m map[string]interface{}, keys ...string) (string, bool) {
	if len(keys) > 1 {
		parent, ok := dig(m, keys[:len(keys)-1]...)
		if !ok {
			return "", false
		}
		m = parent
	}
	s, ok := m[keys[len(keys)-1]].(string)
	return s, ok && s != ""
}
