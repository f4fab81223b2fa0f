// Package okta drives the multi-step exchange with the Okta
// authentication API: password auth, optional MFA challenge/response
// (including asynchronous push polling), then SAML assertion retrieval
// from the AWS app endpoint, with a cookie-based shortcut.
package okta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/xerrors"

	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

const (
	// Timeout bounds every individual HTTP exchange.
	Timeout = 60 * time.Second

	// PushPollInterval and PushPollTimeout fix the cadence of the push
	// verification loop. User-visible latency and scripted callers
	// depend on these values.
	PushPollInterval = 3 * time.Second
	PushPollTimeout  = 60 * time.Second
)

// Client talks to one Okta org on behalf of one profile.
type Client struct {
	orgURL     *url.URL
	appURL     *url.URL
	client     *http.Client
	jar        http.CookieJar
	cookiePath string
	ui         *ui.UI

	// Poll cadence is overridable for tests only.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// NewClient builds a client for the given org (e.g. acme.okta.com) and
// AWS app URL. The session cookie jar is scoped per profile under the
// data directory and loaded immediately.
func NewClient(org, appURL, dataDir, profile string, display *ui.UI) (*Client, error) {
	orgURL, err := url.Parse(fmt.Sprintf("https://%s", org))
	if err != nil {
		return nil, xerrors.Errorf("parsing okta org %q: %w", org, err)
	}

	app, err := url.Parse(appURL)
	if err != nil {
		return nil, xerrors.Errorf("parsing okta app URL %q: %w", appURL, err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	client := &Client{
		orgURL:     orgURL,
		appURL:     app,
		jar:        jar,
		cookiePath: filepath.Join(dataDir, profile+".cookies"),
		ui:         display,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSHandshakeTimeout: Timeout,
			},
			Timeout: Timeout,
			Jar:     jar,
		},
		PollInterval: PushPollInterval,
		PollTimeout:  PushPollTimeout,
	}

	loadCookies(client.cookiePath, jar, app)
	return client, nil
}

// AuthenticateWithCookie fetches the app's SAML page using only the
// persisted session cookies. An absent assertion is the normal "cookie
// expired" signal, not a failure.
func (c *Client) AuthenticateWithCookie() (string, Result, error) {
	log.Debug("attempting SAML fetch with cached session cookie")
	assertion, found, err := c.samlRequest("")
	if err != nil {
		return "", InputError, err
	}
	if !found {
		log.Debug("no assertion in response; session cookie expired or absent")
		return "", InputError, nil
	}
	return assertion, Success, nil
}

// AuthenticateWithAuth performs primary (password) authentication. On
// immediate success the SAML assertion is fetched and returned; when MFA
// is required the challenge state for the next phase is returned instead.
// An HTTP error on the POST is reported as InputError since the dominant
// real cause is a wrong password.
func (c *Client) AuthenticateWithAuth(username, password string) (string, *MFAChallenge, Result, error) {
	payload, err := json.Marshal(authnRequest{Username: username, Password: password})
	if err != nil {
		return "", nil, InputError, err
	}

	authnURL := c.orgURL.String() + "/api/v1/authn"
	log.Debug("POST ", authnURL)
	res, err := c.postJSON(authnURL, payload)
	if err != nil {
		return "", nil, InputError, xerrors.Errorf("posting to okta authn endpoint: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Debugf("authn returned %s; likely a wrong password or misconfigured username", res.Status)
		return "", nil, InputError, nil
	}

	var authn authnResponse
	if err := json.NewDecoder(res.Body).Decode(&authn); err != nil {
		return "", nil, InputError, xerrors.Errorf("decoding authn response: %w", err)
	}

	switch {
	case authn.SessionToken != "":
		assertion, err := c.fetchAssertion(authn.SessionToken)
		if err != nil {
			return "", nil, InputError, err
		}
		return assertion, nil, Success, nil

	case authn.Status == statusMFAEnroll:
		return "", nil, InputError, fail.Newf(fail.ExitMFA,
			"please enroll in multi-factor authentication before using this tool")

	case authn.Status == statusMFARequired:
		if len(authn.Embedded.Factors) == 0 {
			return "", nil, InputError, fail.Newf(fail.ExitMFA,
				"no MFA factors have been set up for this account")
		}
		return "", &MFAChallenge{
			StateToken: authn.StateToken,
			Factors:    authn.Embedded.Factors,
		}, NeedMFA, nil

	default:
		return "", nil, InputError, fail.Newf(fail.ExitUnexpected,
			"unexpected response from Okta: status %q with no session token", authn.Status)
	}
}

// BeginMFAChallenge makes any initial request the factor needs and
// reports whether the caller must collect a one-time code. SMS factors
// get a fire-and-forget trigger so Okta sends the text; push factors are
// resolved entirely in CompleteMFAChallenge.
func (c *Client) BeginMFAChallenge(ch *MFAChallenge, factor Factor) (bool, error) {
	switch factor.FactorType {
	case factorTypePush:
		return false, nil

	case factorTypeSMS:
		log.Debug("requesting SMS code")
		payload, err := json.Marshal(verifyRequest{StateToken: ch.StateToken})
		if err != nil {
			return false, err
		}
		res, err := c.postJSON(factor.VerifyURL(), payload)
		if err != nil {
			return false, xerrors.Errorf("requesting SMS code: %w", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return false, fail.Newf(fail.ExitMFA, "requesting SMS code: %s", res.Status)
		}
		return true, nil

	default:
		return true, nil
	}
}

// CompleteMFAChallenge submits the factor answer (or resolves a push
// notification) and, on success, fetches the SAML assertion with the new
// session token. A wrong code or an unanswered push comes back as
// InputError so the caller can restart factor selection.
func (c *Client) CompleteMFAChallenge(ch *MFAChallenge, factor Factor, code string) (string, Result, error) {
	var sessionToken string
	var res Result
	var err error

	if factor.FactorType == factorTypePush {
		sessionToken, res, err = c.resolvePush(ch, factor)
	} else {
		sessionToken, res, err = c.verifyCode(ch, factor, code)
	}
	if err != nil || res != Success {
		return "", res, err
	}

	assertion, err := c.fetchAssertion(sessionToken)
	if err != nil {
		return "", InputError, err
	}
	return assertion, Success, nil
}

// verifyCode submits a one-time code. Okta answers a bad code with a
// 4xx, which is the user's problem to fix, not ours.
func (c *Client) verifyCode(ch *MFAChallenge, factor Factor, code string) (string, Result, error) {
	payload, err := json.Marshal(verifyRequest{StateToken: ch.StateToken, Answer: code})
	if err != nil {
		return "", InputError, err
	}

	res, err := c.postJSON(factor.VerifyURL(), payload)
	if err != nil {
		return "", InputError, xerrors.Errorf("verifying MFA code: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Debugf("factor verify returned %s; treating as a bad code", res.Status)
		return "", InputError, nil
	}

	var verify authnResponse
	if err := json.NewDecoder(res.Body).Decode(&verify); err != nil {
		return "", InputError, xerrors.Errorf("decoding factor verify response: %w", err)
	}
	if verify.SessionToken == "" {
		return "", InputError, fail.Newf(fail.ExitUnexpected,
			"unexpected response from Okta: factor verify succeeded without a session token")
	}
	return verify.SessionToken, Success, nil
}

// resolvePush sends the push notification and polls the challenge's next
// link until the user approves it or the wall-clock budget runs out. A
// timeout is a normal outcome; the caller restarts factor selection.
func (c *Client) resolvePush(ch *MFAChallenge, factor Factor) (string, Result, error) {
	payload, err := json.Marshal(verifyRequest{StateToken: ch.StateToken})
	if err != nil {
		return "", InputError, err
	}

	res, err := c.postJSON(factor.VerifyURL(), payload)
	if err != nil {
		return "", InputError, xerrors.Errorf("sending push notification: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", InputError, fail.Newf(fail.ExitMFA, "sending push notification: %s", res.Status)
	}

	var challenge authnResponse
	if err := json.NewDecoder(res.Body).Decode(&challenge); err != nil {
		return "", InputError, xerrors.Errorf("decoding push response: %w", err)
	}

	if challenge.SessionToken != "" {
		// Already approved; no polling needed.
		return challenge.SessionToken, Success, nil
	}
	if challenge.Status != statusMFAChallenge || challenge.FactorResult != factorResultWaiting {
		return "", InputError, fail.Newf(fail.ExitUnexpected,
			"unexpected response from Okta: push returned status %q result %q",
			challenge.Status, challenge.FactorResult)
	}

	c.ui.Echo("Push notification sent; waiting for your response")
	nextURL := challenge.Links.Next.Href
	deadline := time.Now().Add(c.PollTimeout)

	for {
		c.ui.Tick(".")
		res, err := c.postJSON(nextURL, payload)
		if err != nil {
			return "", InputError, xerrors.Errorf("polling push result: %w", err)
		}
		var poll authnResponse
		decodeErr := json.NewDecoder(res.Body).Decode(&poll)
		res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return "", InputError, fail.Newf(fail.ExitMFA, "polling push result: %s", res.Status)
		}
		if decodeErr != nil {
			return "", InputError, xerrors.Errorf("decoding push poll response: %w", decodeErr)
		}

		if poll.SessionToken != "" {
			c.ui.Echo("Session confirmed")
			return poll.SessionToken, Success, nil
		}
		if time.Now().After(deadline) {
			c.ui.Warn("Timeout expired (%d seconds)", int(c.PollTimeout/time.Second))
			return "", InputError, nil
		}
		time.Sleep(c.PollInterval)
	}
}

// fetchAssertion retrieves the SAML assertion with a fresh session
// token. At this point a valid token must yield an assertion, so any
// other outcome is a protocol violation.
func (c *Client) fetchAssertion(sessionToken string) (string, error) {
	log.Debug("fetching SAML assertion with session token")
	assertion, found, err := c.samlRequest(sessionToken)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fail.Newf(fail.ExitProtocol, "unexpected response from Okta: "+
			`expecting '<input name="SAMLResponse" value="...">' in response, but not found`)
	}
	return assertion, nil
}

// samlRequest GETs the app's SSO endpoint, optionally bearing a one-time
// session token, and extracts the SAMLResponse input from the HTML. On
// any 200 response the cookie file is updated with the response cookies.
func (c *Client) samlRequest(sessionToken string) (assertion string, found bool, err error) {
	target := *c.appURL
	if sessionToken != "" {
		q := target.Query()
		q.Set("onetimetoken", sessionToken)
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequest("GET", target.String(), nil)
	if err != nil {
		return "", false, err
	}
	// disable gzip encoding; it was causing spurious EOFs for some users
	req.Header.Set("Accept-Encoding", "identity")

	log.Debug("GET ", target.String())
	res, err := c.client.Do(req)
	if err != nil {
		return "", false, xerrors.Errorf("fetching SAML page: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", false, fail.Newf(fail.ExitUnexpected, "GET %s: %s", target.String(), res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", false, xerrors.Errorf("parsing SAML page: %w", err)
	}

	doc.Find("input").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if name, _ := s.Attr("name"); name == "SAMLResponse" {
			assertion, found = s.Attr("value")
			return false
		}
		return true
	})

	if err := saveCookies(c.cookiePath, c.jar, c.appURL); err != nil {
		log.Debugf("failed to save session cookies: %s", err)
	}
	return assertion, found, nil
}

// postJSON issues a JSON POST to an absolute URL with the standard Okta
// API headers.
func (c *Client) postJSON(rawurl string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequest("POST", rawurl, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	return c.client.Do(req)
}

// OrgFromAppURL derives the Okta org host from an app URL so profiles
// only need to configure the single URL copied from the Okta console.
func OrgFromAppURL(appURL string) (string, error) {
	u, err := url.Parse(appURL)
	if err != nil || u.Host == "" || !strings.HasPrefix(appURL, "https://") {
		return "", fail.Newf(fail.ExitBadAppURL,
			"invalid app URL %q; URL usually of the form https://xxxxxxxx.okta.com/.../272", appURL)
	}
	return u.Host, nil
}
