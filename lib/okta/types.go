package okta

// Result is the typed outcome of one authentication step. Recoverable
// input problems (expired cookie, wrong password, bad MFA code, push
// timeout) come back as InputError so the caller can re-prompt; anything
// unrecoverable is returned as an error instead.
type Result int

const (
	// Success means the step completed and the SAML assertion is captured.
	Success Result = iota
	// NeedMFA means primary authentication passed but a factor challenge
	// is outstanding.
	NeedMFA
	// InputError means the step failed for a reason the user can fix.
	InputError
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case NeedMFA:
		return "NEED_MFA"
	case InputError:
		return "INPUT_ERROR"
	}
	return "UNKNOWN"
}

// Factor is one MFA mechanism Okta reports as enrolled for the user.
type Factor struct {
	Id         string      `json:"id"`
	FactorType string      `json:"factorType"`
	Provider   string      `json:"provider"`
	Links      factorLinks `json:"_links"`
}

// VerifyURL is the endpoint challenges for this factor are submitted to.
func (f Factor) VerifyURL() string {
	return f.Links.Verify.Href
}

type factorLinks struct {
	Verify link `json:"verify"`
}

type link struct {
	Href string `json:"href"`
}

// MFAChallenge is the evolving state handed between the MFA phases. It
// only exists while a challenge is outstanding, so submitting an answer
// without first authenticating is impossible by construction.
type MFAChallenge struct {
	StateToken string
	Factors    []Factor
}

// authnRequest is the payload for the primary authentication call.
type authnRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// verifyRequest is the payload for factor verification and push polling.
type verifyRequest struct {
	StateToken string `json:"stateToken"`
	Answer     string `json:"answer,omitempty"`
}

// authnResponse is the wire shape shared by /api/v1/authn and the factor
// verify endpoints. It is decoded once at the boundary and immediately
// converted to a typed outcome; nothing downstream inspects raw maps.
type authnResponse struct {
	StateToken   string        `json:"stateToken"`
	SessionToken string        `json:"sessionToken"`
	Status       string        `json:"status"`
	FactorResult string        `json:"factorResult"`
	Embedded     authnEmbedded `json:"_embedded"`
	Links        authnLinks    `json:"_links"`
}

type authnEmbedded struct {
	Factors []Factor `json:"factors"`
}

type authnLinks struct {
	Next link `json:"next"`
}

const (
	statusMFARequired  = "MFA_REQUIRED"
	statusMFAEnroll    = "MFA_ENROLL"
	statusMFAChallenge = "MFA_CHALLENGE"

	factorResultWaiting = "WAITING"

	factorTypePush = "push"
	factorTypeSMS  = "sms"
)
