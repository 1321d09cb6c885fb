package webhook

import (
	"errors"
	"testing"
)

func TestParse_StripeTransferPaid(t *testing.T) {
	raw := []byte(`{
		"type": "transfer.paid",
		"data": {"object": {
			"id": "tr_123",
			"metadata": {"booking_id": "bk_1", "event_type": "RELEASE_ROOM_FEE_SPLIT"}
		}}
	}`)
	cb, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Provider != "stripe" || cb.Kind != KindConfirmed {
		t.Errorf("got provider=%s kind=%s", cb.Provider, cb.Kind)
	}
	if cb.BookingID != "bk_1" || cb.EventType != "RELEASE_ROOM_FEE_SPLIT" || cb.Reference != "tr_123" {
		t.Errorf("correlation fields wrong: %+v", cb)
	}
}

func TestParse_StripeFailureCarriesDetail(t *testing.T) {
	raw := []byte(`{
		"type": "transfer.failed",
		"data": {"object": {
			"id": "tr_9",
			"failure_message": "insufficient platform balance",
			"metadata": {"booking_id": "bk_2", "event_type": "PAY_REALTOR_FROM_DEPOSIT"}
		}}
	}`)
	cb, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Kind != KindFailed || cb.Detail != "insufficient platform balance" {
		t.Errorf("got kind=%s detail=%q", cb.Kind, cb.Detail)
	}
}

func TestParse_PaystackTransferSuccess(t *testing.T) {
	raw := []byte(`{
		"event": "transfer.success",
		"data": {
			"transfer_code": "TRF_abc",
			"metadata": {"booking_id": "bk_3", "event_type": "RELEASE_DEPOSIT_TO_CUSTOMER"}
		}
	}`)
	cb, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Provider != "paystack" || cb.Kind != KindConfirmed || cb.Reference != "TRF_abc" {
		t.Errorf("got %+v", cb)
	}
}

func TestParse_Reversal(t *testing.T) {
	raw := []byte(`{
		"event": "transfer.reversed",
		"data": {
			"reference": "TRF_rev",
			"reason": "beneficiary account closed",
			"metadata": {"booking_id": "bk_4", "event_type": "RELEASE_ROOM_FEE_SPLIT"}
		}
	}`)
	cb, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Kind != KindReversed || cb.Detail != "beneficiary account closed" {
		t.Errorf("got %+v", cb)
	}
}

func TestParse_MissingFieldsAreTolerated(t *testing.T) {
	// No metadata at all: parse succeeds, correlation fields stay empty.
	raw := []byte(`{"type": "transfer.paid", "data": {"object": {"id": "tr_1"}}}`)
	cb, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.BookingID != "" || cb.EventType != "" {
		t.Errorf("expected empty correlation, got %+v", cb)
	}
}

func TestParse_MistypedMetadataIsTolerated(t *testing.T) {
	raw := []byte(`{"type": "transfer.paid", "data": {"object": {"id": "tr_1", "metadata": "oops"}}}`)
	cb, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.BookingID != "" {
		t.Errorf("mistyped metadata should read as absent, got %q", cb.BookingID)
	}
}

func TestParse_UnrecognizedEnvelope(t *testing.T) {
	for _, raw := range []string{
		`{"hello": "world"}`,
		`{"type": "customer.created", "data": {"object": {}}}`,
		`{"event": "subscription.create", "data": {}}`,
	} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrUnrecognizedPayload) {
			t.Errorf("Parse(%s) = %v, want ErrUnrecognizedPayload", raw, err)
		}
	}
}

func TestVerify(t *testing.T) {
	v := NewHMACVerifier("topsecret")
	payload := []byte(`{"event":"transfer.success"}`)

	if err := v.Verify(payload, Sign(payload, "topsecret")); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := v.Verify(payload, Sign(payload, "wrong")); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong secret accepted: %v", err)
	}
	if err := v.Verify(payload, ""); !errors.Is(err, ErrBadSignature) {
		t.Errorf("empty signature accepted: %v", err)
	}
}
