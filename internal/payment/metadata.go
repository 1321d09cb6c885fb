package payment

// Metadata is the opaque provider payload attached to a payment. Providers
// disagree on shape, so fields are extracted with helpers that return a
// found flag rather than trusting any field to be present.
type Metadata map[string]interface{}

func (m Metadata) str(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func (m Metadata) obj(key string) (Metadata, bool) {
	switch v := m[key].(type) {
	case Metadata:
		return v, true
	case map[string]interface{}:
		return Metadata(v), true
	}
	return nil, false
}

// AuthorizationToken returns the provider's reusable authorization token.
// Stripe calls it a payment method ID, Paystack an authorization code, and
// some providers nest it under an "authorization" object.
func (m Metadata) AuthorizationToken() (string, bool) {
	if tok, ok := m.str("payment_method", "authorization_code", "authorizationCode"); ok {
		return tok, true
	}
	if auth, ok := m.obj("authorization"); ok {
		return auth.str("token", "payment_method", "authorization_code", "authorizationCode")
	}
	return "", false
}

// CardSignature returns the stable card/bank fingerprint, if present.
func (m Metadata) CardSignature() (string, bool) {
	return m.str("fingerprint", "signature")
}

// Last4 returns the card's last four digits, if present.
func (m Metadata) Last4() (string, bool) {
	return m.str("last4", "last_4")
}

// Expiry returns the card expiry as "MM/YY", if present.
func (m Metadata) Expiry() (string, bool) {
	return m.str("expiry", "exp")
}

// Bank returns the issuing bank or mobile-money network, if present.
func (m Metadata) Bank() (string, bool) {
	return m.str("bank", "network")
}

// Reusable reports whether the authorization can be charged again.
// Absent or malformed values count as not reusable.
func (m Metadata) Reusable() bool {
	switch v := m["reusable"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
