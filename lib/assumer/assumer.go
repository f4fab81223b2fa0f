// Package assumer sequences the credential exchange: cookie reuse, full
// Okta authentication with MFA, role resolution, the STS SAML exchange,
// and credential persistence.
package assumer

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/washingtonpost/clokta-go/lib/config"
	"github.com/washingtonpost/clokta-go/lib/creds"
	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/mfa"
	"github.com/washingtonpost/clokta-go/lib/okta"
	"github.com/washingtonpost/clokta-go/lib/saml"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

// durationLadder is the session durations tried in order. A validation
// rejection advances to the next rung; rejection of the shortest is
// fatal.
var durationLadder = []int64{43200, 14400, 3600}

// Assumer drives one end-to-end credential exchange for a profile.
type Assumer struct {
	Profile  string
	Config   *config.Config
	Okta     *okta.Client
	Writer   *creds.Writer
	UI       *ui.UI
	Prompter ui.Prompter

	// STS is injectable for tests; left nil, a default client is built
	// from the environment.
	STS stsiface.STSAPI
}

// New wires an Assumer from the stored profile configuration, prompting
// for whatever the config file does not know yet.
func New(profile string, display *ui.UI, prompter ui.Prompter) (*Assumer, error) {
	cfg, err := config.Load(profile, display, prompter)
	if err != nil {
		return nil, err
	}

	org := cfg.OktaOrg
	if org == "" {
		org, err = okta.OrgFromAppURL(cfg.AppURL)
		if err != nil {
			return nil, err
		}
	}

	client, err := okta.NewClient(org, cfg.AppURL, cfg.DataDir, profile, display)
	if err != nil {
		return nil, err
	}

	return &Assumer{
		Profile:  profile,
		Config:   cfg,
		Okta:     client,
		Writer:   &creds.Writer{Profile: profile, DataDir: cfg.DataDir},
		UI:       display,
		Prompter: prompter,
	}, nil
}

// AssumeRole is the entry point for the login flow.
func (a *Assumer) AssumeRole(resetDefaultRole bool) error {
	if resetDefaultRole {
		if err := a.Config.ResetDefaultRole(); err != nil {
			return err
		}
	}

	assertion, err := a.obtainAssertion()
	if err != nil {
		return err
	}

	role, makeDefault, err := a.chooseRole(assertion)
	if err != nil {
		return err
	}
	a.Config.SetRole(role.RoleARN, role.Account, makeDefault)

	credentials, err := a.exchangeForCredentials(role, assertion)
	if err != nil {
		return err
	}

	if err := a.Writer.Apply(credentials); err != nil {
		return err
	}
	if err := a.Config.Save(); err != nil {
		return err
	}

	a.printInstructions()
	return nil
}

// obtainAssertion runs the authentication state machine until a SAML
// assertion is captured: cookie shortcut first, then the password loop,
// then the MFA loop.
func (a *Assumer) obtainAssertion() (string, error) {
	assertion, result, err := a.Okta.AuthenticateWithCookie()
	if err != nil {
		return "", err
	}
	if result == okta.Success {
		log.Debug("reused session cookie")
		return assertion, nil
	}

	var challenge *okta.MFAChallenge
	promptForPassword := a.Config.Password == ""
	for {
		if promptForPassword {
			if err := a.Config.PromptForPassword(); err != nil {
				return "", err
			}
		}
		assertion, challenge, result, err = a.Okta.AuthenticateWithAuth(a.Config.Username, a.Config.Password)
		if err != nil {
			return "", err
		}
		if result != okta.InputError {
			break
		}
		a.UI.Warn("Failure.  Wrong password or misconfigured session.")
		promptForPassword = true
	}

	if result == okta.NeedMFA {
		return a.completeMFA(challenge)
	}
	return assertion, nil
}

// completeMFA loops factor selection and challenge until one succeeds.
// After the first failed round the stored preference is ignored and the
// user chooses again.
func (a *Assumer) completeMFA(challenge *okta.MFAChallenge) (string, error) {
	forcePrompt := false
	for {
		selector := &mfa.Selector{
			Factors:    challenge.Factors,
			Preference: a.Config.FactorPreference,
			UI:         a.UI,
			Prompter:   a.Prompter,
		}
		choice, err := selector.Select(forcePrompt)
		if err != nil {
			return "", err
		}
		forcePrompt = true

		needsCode, err := a.Okta.BeginMFAChallenge(challenge, choice.Factor)
		if err != nil {
			return "", err
		}

		var code string
		if needsCode {
			code, err = a.Config.DetermineOTP(choice.Label)
			if err != nil {
				return "", err
			}
		}

		assertion, result, err := a.Okta.CompleteMFAChallenge(challenge, choice.Factor, code)
		if err != nil {
			return "", err
		}
		if result == okta.Success {
			if choice.Chosen {
				a.Config.FactorPreference = choice.Label
			}
			return assertion, nil
		}
		a.UI.Warn("Multi-factor authentication failed; choose a factor to try again.")
	}
}

// chooseRole extracts the role options from the assertion and resolves
// one against the stored preference.
func (a *Assumer) chooseRole(assertion string) (saml.AssumableRole, bool, error) {
	resp, err := saml.Decode(assertion)
	if err != nil {
		return saml.AssumableRole{}, false, err
	}
	roles, err := resp.AssumableRoles()
	if err != nil {
		return saml.AssumableRole{}, false, err
	}

	chooser := &saml.RoleChooser{
		Roles:      roles,
		Preference: a.Config.RolePreference,
		UI:         a.UI,
		Prompter:   a.Prompter,
	}
	return chooser.Choose()
}

// exchangeForCredentials calls AssumeRoleWithSAML, walking the duration
// ladder down when the role's maximum session duration rejects a rung.
func (a *Assumer) exchangeForCredentials(role saml.AssumableRole, assertion string) (*sts.Credentials, error) {
	svc := a.STS
	if svc == nil {
		svc = sts.New(session.Must(session.NewSession()))
	}

	for i, duration := range durationLadder {
		input := &sts.AssumeRoleWithSAMLInput{
			RoleArn:         aws.String(role.RoleARN),
			PrincipalArn:    aws.String(role.IdpARN),
			SAMLAssertion:   aws.String(assertion),
			DurationSeconds: aws.Int64(duration),
		}

		resp, err := svc.AssumeRoleWithSAML(input)
		if err == nil {
			log.Debugf("assumed %s for %d seconds", role.RoleARN, duration)
			return resp.Credentials, nil
		}

		if isDurationRejection(err) && i < len(durationLadder)-1 {
			log.Debugf("duration %d rejected for %s; trying %d", duration, role.RoleARN, durationLadder[i+1])
			continue
		}
		return nil, fail.Wrap(fail.ExitCredentials,
			xerrors.Errorf("assuming role %s with SAML: %w", role.RoleARN, err))
	}
	// unreachable: the last rung either returns or errors above
	return nil, fail.Newf(fail.ExitCredentials, "assuming role %s with SAML failed", role.RoleARN)
}

// isDurationRejection reports whether STS refused the requested
// DurationSeconds rather than the role itself.
func isDurationRejection(err error) bool {
	var aerr awserr.Error
	if !xerrors.As(err, &aerr) {
		return false
	}
	return aerr.Code() == "ValidationError"
}

// printInstructions tells the user how to consume the generated
// credentials, with verbosity matching the display mode.
func (a *Assumer) printInstructions() {
	switch a.UI.Mode {
	case ui.Quiet:
		a.UI.Result("export AWS_PROFILE=%s", a.Profile)
	case ui.Long:
		a.UI.Echo("AWS keys generated. To use with docker compose include\n\t%s\n"+
			"To use with shell scripts source\n\t%s\n"+
			"to use in the current interactive shell run\n\texport AWS_PROFILE=%s",
			a.Writer.EnvFile(), a.Writer.BashFile(), a.Profile)
	default:
		a.UI.Echo("Run \"clokta -i\" for steps to use generated credentials or just run\n"+
			"\texport AWS_PROFILE=%s", a.Profile)
	}
}
