package okta

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"

	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

const (
	testOrg    = "acme.okta.com"
	testOrgURL = "https://acme.okta.com"
	testAppURL = "https://acme.okta.com/home/amazon_aws/0oa1/272"
	appPath    = "/home/amazon_aws/0oa1/272"
	verifyPath = "/api/v1/authn/factors/fpush/verify"
	// distinct from verifyPath so gock's pattern matching cannot
	// confuse the two endpoints
	pollPath = "/api/v1/authn/factors/fpush/poll"

	samlPage = `<html><body><form method="post">
		<input type="hidden" name="SAMLResponse" value="QQ=="/>
	</form></body></html>`
	loginPage = `<html><body><form id="login">no assertion here</form></body></html>`
)

func newTestClient(t *testing.T) (*Client, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "clokta-test")
	require.NoError(t, err)

	display := &ui.UI{Mode: ui.Brief, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}
	client, err := NewClient(testOrg, testAppURL, dir, "test", display)
	require.NoError(t, err)

	client.PollInterval = time.Millisecond
	client.PollTimeout = time.Second

	gock.InterceptClient(client.client)
	return client, func() {
		gock.Off()
		os.RemoveAll(dir)
	}
}

func pushFactor() Factor {
	return Factor{
		Id:         "fpush",
		FactorType: "push",
		Provider:   "OKTA",
		Links:      factorLinks{Verify: link{Href: testOrgURL + verifyPath}},
	}
}

func TestAuthenticateWithCookieIsIdempotent(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Get(appPath).Times(2).Reply(200).BodyString(samlPage)

	for i := 0; i < 2; i++ {
		assertion, result, err := client.AuthenticateWithCookie()
		require.NoError(t, err)
		assert.Equal(t, Success, result)
		assert.Equal(t, "QQ==", assertion)
	}
	assert.True(t, gock.IsDone())
}

func TestAuthenticateWithCookieExpiredIsInputError(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Get(appPath).Reply(200).BodyString(loginPage)

	assertion, result, err := client.AuthenticateWithCookie()
	require.NoError(t, err)
	assert.Equal(t, InputError, result)
	assert.Empty(t, assertion)
}

func TestAuthenticateWithAuthWrongPasswordIsInputError(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(401).JSON(map[string]string{
		"errorSummary": "Authentication failed",
	})

	_, _, result, err := client.AuthenticateWithAuth("doej", "wrong")
	require.NoError(t, err)
	assert.Equal(t, InputError, result)
}

func TestAuthenticateWithAuthImmediateSessionTokenFetchesAssertion(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(200).JSON(map[string]string{
		"sessionToken": "tok1",
	})
	gock.New(testOrgURL).Get(appPath).MatchParam("onetimetoken", "tok1").
		Reply(200).BodyString(samlPage)

	assertion, challenge, result, err := client.AuthenticateWithAuth("doej", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.Nil(t, challenge)
	assert.Equal(t, "QQ==", assertion)
}

func TestAuthenticateWithAuthMissingAssertionWithTokenIsFatal(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(200).JSON(map[string]string{
		"sessionToken": "tok1",
	})
	gock.New(testOrgURL).Get(appPath).MatchParam("onetimetoken", "tok1").
		Reply(200).BodyString(loginPage)

	_, _, _, err := client.AuthenticateWithAuth("doej", "hunter2")
	require.Error(t, err)
	assert.Equal(t, fail.ExitProtocol, fail.Code(err))
}

func TestAuthenticateWithAuthMFARequired(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(200).JSON(map[string]interface{}{
		"status":     "MFA_REQUIRED",
		"stateToken": "st1",
		"_embedded": map[string]interface{}{
			"factors": []map[string]interface{}{{
				"id":         "fpush",
				"factorType": "push",
				"provider":   "OKTA",
				"_links": map[string]interface{}{
					"verify": map[string]string{"href": testOrgURL + verifyPath},
				},
			}},
		},
	})

	_, challenge, result, err := client.AuthenticateWithAuth("doej", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, NeedMFA, result)
	require.NotNil(t, challenge)
	assert.Equal(t, "st1", challenge.StateToken)
	require.Len(t, challenge.Factors, 1)
	assert.Equal(t, testOrgURL+verifyPath, challenge.Factors[0].VerifyURL())
}

func TestAuthenticateWithAuthEnrollRequiredIsFatal(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(200).JSON(map[string]string{
		"status": "MFA_ENROLL",
	})

	_, _, _, err := client.AuthenticateWithAuth("doej", "hunter2")
	require.Error(t, err)
	assert.Equal(t, fail.ExitMFA, fail.Code(err))
}

func TestAuthenticateWithAuthEmptyFactorListIsFatal(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(200).JSON(map[string]interface{}{
		"status":     "MFA_REQUIRED",
		"stateToken": "st1",
		"_embedded":  map[string]interface{}{"factors": []interface{}{}},
	})

	_, _, _, err := client.AuthenticateWithAuth("doej", "hunter2")
	require.Error(t, err)
	assert.Equal(t, fail.ExitMFA, fail.Code(err))
}

func TestBeginMFAChallengeSMSTriggersCode(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	smsFactor := Factor{
		Id:         "fsms",
		FactorType: "sms",
		Provider:   "OKTA",
		Links:      factorLinks{Verify: link{Href: testOrgURL + "/api/v1/authn/factors/fsms/verify"}},
	}
	gock.New(testOrgURL).Post("/api/v1/authn/factors/fsms/verify").
		JSON(map[string]string{"stateToken": "st1"}).
		Reply(200).JSON(map[string]string{"status": "MFA_CHALLENGE"})

	needsCode, err := client.BeginMFAChallenge(&MFAChallenge{StateToken: "st1"}, smsFactor)
	require.NoError(t, err)
	assert.True(t, needsCode)
	assert.True(t, gock.IsDone())
}

func TestBeginMFAChallengePushNeedsNoCode(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	needsCode, err := client.BeginMFAChallenge(&MFAChallenge{StateToken: "st1"}, pushFactor())
	require.NoError(t, err)
	assert.False(t, needsCode)
}

func TestBeginMFAChallengeTOTPNeedsCodeWithoutRequests(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	totp := Factor{Id: "ft", FactorType: "token:software:totp", Provider: "GOOGLE"}
	needsCode, err := client.BeginMFAChallenge(&MFAChallenge{StateToken: "st1"}, totp)
	require.NoError(t, err)
	assert.True(t, needsCode)
}

func TestCompleteMFAChallengePushPollsUntilSessionToken(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	waiting := map[string]interface{}{
		"status":       "MFA_CHALLENGE",
		"factorResult": "WAITING",
		"_links": map[string]interface{}{
			"next": map[string]string{"href": testOrgURL + pollPath},
		},
	}

	gock.New(testOrgURL).Post(verifyPath).Reply(200).JSON(waiting)
	// two WAITING polls, then approval: three poll requests total
	gock.New(testOrgURL).Post(pollPath).Times(2).Reply(200).JSON(waiting)
	gock.New(testOrgURL).Post(pollPath).Reply(200).JSON(map[string]string{"sessionToken": "tok2"})
	gock.New(testOrgURL).Get(appPath).MatchParam("onetimetoken", "tok2").
		Reply(200).BodyString(samlPage)

	assertion, result, err := client.CompleteMFAChallenge(&MFAChallenge{StateToken: "st1"}, pushFactor(), "")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.Equal(t, "QQ==", assertion)
	assert.True(t, gock.IsDone())
}

func TestCompleteMFAChallengePushTimesOut(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	client.PollInterval = 5 * time.Millisecond
	client.PollTimeout = 25 * time.Millisecond

	waiting := map[string]interface{}{
		"status":       "MFA_CHALLENGE",
		"factorResult": "WAITING",
		"_links": map[string]interface{}{
			"next": map[string]string{"href": testOrgURL + pollPath},
		},
	}

	gock.New(testOrgURL).Post(verifyPath).Reply(200).JSON(waiting)
	gock.New(testOrgURL).Post(pollPath).Persist().Reply(200).JSON(waiting)

	start := time.Now()
	_, result, err := client.CompleteMFAChallenge(&MFAChallenge{StateToken: "st1"}, pushFactor(), "")
	require.NoError(t, err)
	assert.Equal(t, InputError, result)
	assert.True(t, time.Since(start) < time.Second, "polling must stop at the budget, not hang")
}

func TestCompleteMFAChallengeBadCodeIsInputError(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	totp := Factor{
		Id:         "ft",
		FactorType: "token:software:totp",
		Provider:   "GOOGLE",
		Links:      factorLinks{Verify: link{Href: testOrgURL + "/api/v1/authn/factors/ft/verify"}},
	}
	gock.New(testOrgURL).Post("/api/v1/authn/factors/ft/verify").
		Reply(403).JSON(map[string]string{"errorSummary": "Invalid Passcode/Answer"})

	_, result, err := client.CompleteMFAChallenge(&MFAChallenge{StateToken: "st1"}, totp, "000000")
	require.NoError(t, err)
	assert.Equal(t, InputError, result)
}

func TestCompleteMFAChallengeCodeSuccess(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	totp := Factor{
		Id:         "ft",
		FactorType: "token:software:totp",
		Provider:   "GOOGLE",
		Links:      factorLinks{Verify: link{Href: testOrgURL + "/api/v1/authn/factors/ft/verify"}},
	}
	gock.New(testOrgURL).Post("/api/v1/authn/factors/ft/verify").
		JSON(map[string]string{"stateToken": "st1", "answer": "123456"}).
		Reply(200).JSON(map[string]string{"sessionToken": "tok3"})
	gock.New(testOrgURL).Get(appPath).MatchParam("onetimetoken", "tok3").
		Reply(200).BodyString(samlPage)

	assertion, result, err := client.CompleteMFAChallenge(&MFAChallenge{StateToken: "st1"}, totp, "123456")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.Equal(t, "QQ==", assertion)
}

// Full push scenario from primary auth to assertion.
func TestPushFlowEndToEnd(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	gock.New(testOrgURL).Post("/api/v1/authn").Reply(200).JSON(map[string]interface{}{
		"status":     "MFA_REQUIRED",
		"stateToken": "st1",
		"_embedded": map[string]interface{}{
			"factors": []map[string]interface{}{{
				"id":         "fpush",
				"factorType": "push",
				"provider":   "OKTA",
				"_links": map[string]interface{}{
					"verify": map[string]string{"href": testOrgURL + verifyPath},
				},
			}},
		},
	})
	gock.New(testOrgURL).Post(verifyPath).Reply(200).JSON(map[string]interface{}{
		"status":       "MFA_CHALLENGE",
		"factorResult": "WAITING",
		"_links": map[string]interface{}{
			"next": map[string]string{"href": testOrgURL + pollPath},
		},
	})
	gock.New(testOrgURL).Post(pollPath).Reply(200).JSON(map[string]string{"sessionToken": "tok1"})
	gock.New(testOrgURL).Get(appPath).MatchParam("onetimetoken", "tok1").
		Reply(200).BodyString(samlPage)

	_, challenge, result, err := client.AuthenticateWithAuth("doej", "hunter2")
	require.NoError(t, err)
	require.Equal(t, NeedMFA, result)

	needsCode, err := client.BeginMFAChallenge(challenge, challenge.Factors[0])
	require.NoError(t, err)
	assert.False(t, needsCode)

	assertion, result, err := client.CompleteMFAChallenge(challenge, challenge.Factors[0], "")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.Equal(t, "QQ==", assertion)
	assert.True(t, gock.IsDone())
}
