package payment

import "strings"

// SavedMethod is a deduplicated summary of a payment instrument a guest has
// used before. It is derived from the guest's payments, never persisted.
type SavedMethod struct {
	Signature string   `json:"signature"`
	Provider  Provider `json:"provider"`
	Last4     string   `json:"last4,omitempty"`
	Expiry    string   `json:"expiry,omitempty"`
	Bank      string   `json:"bank,omitempty"`
	Reusable  bool     `json:"reusable"`
	FirstSeen string   `json:"firstSeen"` // payment ID of the earliest use
}

// SavedMethods groups a guest's payments by authorization signature and keeps
// the earliest-seen summary per group. Payments without any stable signature
// or composite identity are skipped. Input order is preserved for groups.
func SavedMethods(payments []*Payment) []SavedMethod {
	seen := make(map[string]bool)
	var methods []SavedMethod

	for _, p := range payments {
		sig := methodSignature(p.Metadata)
		if sig == "" || seen[sig] {
			continue
		}
		seen[sig] = true

		m := SavedMethod{
			Signature: sig,
			Provider:  p.Provider,
			Reusable:  p.Metadata.Reusable(),
			FirstSeen: p.ID,
		}
		m.Last4, _ = p.Metadata.Last4()
		m.Expiry, _ = p.Metadata.Expiry()
		m.Bank, _ = p.Metadata.Bank()
		methods = append(methods, m)
	}

	return methods
}

// methodSignature returns the grouping key for a payment instrument: the
// stable card signature when present, otherwise a composite of
// last4/expiry/bank. Returns "" when neither identifies the instrument.
func methodSignature(m Metadata) string {
	if sig, ok := m.CardSignature(); ok {
		return sig
	}

	last4, okLast4 := m.Last4()
	expiry, _ := m.Expiry()
	bank, _ := m.Bank()
	if !okLast4 && bank == "" {
		return ""
	}
	return strings.Join([]string{last4, expiry, bank}, "|")
}
