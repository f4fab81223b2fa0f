package saml

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

// AssumableRole is one candidate federated role from the SAML assertion.
type AssumableRole struct {
	IdpARN  string
	RoleARN string

	// Account is the 12-digit account id embedded in the role ARN.
	Account string
	// RoleName is the short name after the role-type prefix. A role with
	// a path keeps only the final segment.
	RoleName string
}

// NewAssumableRole derives the account and short role name from a role ARN
// of the form arn:aws:iam::<account>:role/<path...>/<name>.
func NewAssumableRole(idpARN, roleARN string) AssumableRole {
	role := AssumableRole{IdpARN: idpARN, RoleARN: roleARN}
	fields := strings.Split(roleARN, ":")
	if len(fields) > 5 {
		role.Account = fields[4]
		name := fields[5]
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		role.RoleName = name
	}
	return role
}

// RoleChooser resolves a single role to assume from the assertion's
// candidates, honoring a stored preference when it still applies.
type RoleChooser struct {
	Roles      []AssumableRole
	Preference string
	UI         *ui.UI
	Prompter   ui.Prompter
}

// Choose returns the selected role and whether the caller should persist
// it as the new default.
func (rc *RoleChooser) Choose() (AssumableRole, bool, error) {
	if len(rc.Roles) == 0 {
		return AssumableRole{}, false, fail.Newf(fail.ExitUnexpected,
			"no AWS role was assigned to this application")
	}

	// A single candidate is never overridden by the preference.
	if len(rc.Roles) == 1 {
		role := rc.Roles[0]
		if rc.Preference != "" && role.RoleARN != rc.Preference {
			rc.UI.Warn("Your configured role %q was not found; using %q role",
				rc.Preference, role.RoleName)
		} else if rc.UI.IsDebug() {
			log.Debugf("using default role %s", role.RoleARN)
		}
		return role, false, nil
	}

	for _, role := range rc.Roles {
		if role.RoleARN == rc.Preference {
			if rc.UI.Mode == ui.Long {
				rc.UI.Echo("Using default role '%s'.  Run \"clokta --no-default-role\" to override.", role.RoleName)
			} else {
				rc.UI.Echo("Using default role '%s'", role.RoleName)
			}
			return role, true, nil
		}
	}

	return rc.promptForRole(true)
}

// promptForRole lists the short role names and asks the user to pick one.
// With the set-default option an extra final entry re-runs the listing
// without it and flags the chosen role for persistence.
func (rc *RoleChooser) promptForRole(withSetDefaultOption bool) (AssumableRole, bool, error) {
	options := make([]string, 0, len(rc.Roles)+1)
	for _, role := range rc.Roles {
		options = append(options, role.RoleName)
	}
	if withSetDefaultOption {
		options = append(options, "set a default role")
	}

	choice, err := rc.Prompter.Choose("Choose a Role ARN to use", options)
	if err != nil {
		return AssumableRole{}, false, err
	}

	if withSetDefaultOption && choice == len(options) {
		chosen, _, err := rc.promptForRole(false)
		return chosen, true, err
	}

	chosen := rc.Roles[choice-1]
	if rc.UI.IsDebug() {
		log.Debugf("using chosen role %s & IdP %s", chosen.RoleARN, chosen.IdpARN)
	}
	return chosen, false, nil
}
