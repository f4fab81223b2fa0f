// Package mfa decides which multi-factor mechanism to use out of what
// Okta reports and what this client knows how to drive.
package mfa

// CatalogEntry describes one factor this client supports. Provider plus
// FactorType is the join key against Okta-reported factors; Prompt is the
// label shown to the user and stored as the preference string.
type CatalogEntry struct {
	ID         string
	Prompt     string
	FactorType string
	Provider   string
}

// SupportedFactors is the static catalog of mechanisms the client can
// drive, in the order they are presented.
func SupportedFactors() []CatalogEntry {
	return []CatalogEntry{
		{
			ID:         "GoogleAuthenticator",
			Prompt:     "Google Authenticator",
			FactorType: "token:software:totp",
			Provider:   "GOOGLE",
		},
		{
			ID:         "OktaVerify",
			Prompt:     "Okta Verify",
			FactorType: "token:software:totp",
			Provider:   "OKTA",
		},
		{
			ID:         "Sms",
			Prompt:     "SMS text message",
			FactorType: "sms",
			Provider:   "OKTA",
		},
		{
			ID:         "OktaPush",
			Prompt:     "Okta Verify with Push",
			FactorType: "push",
			Provider:   "OKTA",
		},
	}
}
