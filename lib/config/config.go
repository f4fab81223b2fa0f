// Package config loads and persists the clokta.cfg profile file, the OS
// keyring secrets, and the stored factor/role preferences.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/99designs/keyring"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pquerna/otp/totp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	ini "gopkg.in/ini.v1"

	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

const (
	// DefaultDataDir holds the config file, cookie jars and generated
	// env files.
	DefaultDataDir = "~/.clokta"

	configFileName = "clokta.cfg"

	keyUsername         = "okta_username"
	keyOrg              = "okta_org"
	keyFactorPreference = "multifactor_preference"
	keyAppURL           = "okta_aws_app_url"
	keyRolePreference   = "okta_aws_role_to_assume"
	keyOTPSecret        = "okta_onetimepassword_secret"
	keySavePassword     = "save_password_in_keychain"
	keyAccountNumber    = "aws_account_number"
)

// Config is the resolved configuration for one login attempt. Values are
// resolved from, in order: environment variable, config file (profile
// section falling back to DEFAULT), keyring (secrets), interactive
// prompt (required values only).
type Config struct {
	Profile string
	DataDir string

	OktaOrg                string
	Username               string
	Password               string
	AppURL                 string
	FactorPreference       string
	RolePreference         string
	OTPSecret              string
	SavePasswordInKeychain bool
	AccountNumber          string

	path              string
	file              *ini.File
	kr                keyring.Keyring
	ui                *ui.UI
	prompter          ui.Prompter
	saveRoleAsDefault bool
}

// Load reads the config file, creating the profile section (after
// prompting for the Okta app URL) when it does not exist yet.
func Load(profile string, display *ui.UI, prompter ui.Prompter) (*Config, error) {
	dataDir, err := homedir.Expand(DefaultDataDir)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Profile:  profile,
		DataDir:  dataDir,
		path:     filepath.Join(dataDir, configFileName),
		ui:       display,
		prompter: prompter,
	}

	c.file, err = ini.LooseLoad(c.path)
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", c.path, err)
	}

	if _, err := c.file.GetSection(profile); err != nil {
		if err := c.createProfileSection(); err != nil {
			return nil, err
		}
	}

	c.kr, err = openKeyring(dataDir, func(prompt string) (string, error) {
		return prompter.Password(prompt)
	})
	if err != nil {
		log.Debugf("keyring unavailable: %s", err)
	}

	if err := c.resolve(); err != nil {
		return nil, err
	}

	if display.IsDebug() {
		log.Debugf("configuration: profile=%s org=%s username=%s app_url=%s factor_pref=%q role_pref=%q",
			c.Profile, c.OktaOrg, c.Username, c.AppURL, c.FactorPreference, c.RolePreference)
	}
	return c, nil
}

// createProfileSection prompts for the app URL copied from the Okta
// console and seeds a new profile section with it.
func (c *Config) createProfileSection() error {
	c.ui.Echo("No profile %q in clokta.cfg, but enter the information and clokta will create a profile.", c.Profile)
	appURL, err := c.prompter.Prompt("Copy the link from the Okta App", "")
	if err != nil {
		return err
	}
	appURL = strings.TrimSpace(appURL)
	if !strings.HasPrefix(appURL, "https://") {
		return fail.Newf(fail.ExitBadAppURL,
			"invalid app URL; URL usually of the form https://xxxxxxxx.okta.com/.../272?fromHome=true")
	}
	appURL = strings.TrimSuffix(appURL, "?fromHome=true")

	sec, err := c.file.NewSection(c.Profile)
	if err != nil {
		return err
	}
	sec.Key(keyAppURL).SetValue(appURL)
	return nil
}

// lookup finds a key in the profile section, falling back to DEFAULT.
func (c *Config) lookup(name string) string {
	if sec, err := c.file.GetSection(c.Profile); err == nil && sec.HasKey(name) {
		return sec.Key(name).String()
	}
	return c.file.Section(ini.DefaultSection).Key(name).String()
}

// resolveValue applies the env over file resolution order for one key.
func (c *Config) resolveValue(name string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return c.lookup(name)
}

func (c *Config) resolve() error {
	c.AppURL = c.resolveValue(keyAppURL)
	c.Username = c.resolveValue(keyUsername)
	c.OktaOrg = c.resolveValue(keyOrg)
	c.FactorPreference = c.resolveValue(keyFactorPreference)
	c.RolePreference = c.resolveValue(keyRolePreference)
	c.AccountNumber = c.resolveValue(keyAccountNumber)

	save := c.resolveValue(keySavePassword)
	c.SavePasswordInKeychain = save == "" || strings.EqualFold(strings.TrimSpace(save), "true")

	var err error
	if c.Username == "" {
		if c.Username, err = c.prompter.Prompt("Enter a value for okta_username", ""); err != nil {
			return err
		}
	}
	if c.OktaOrg == "" {
		if c.OktaOrg, err = c.prompter.Prompt("Enter a value for okta_org", ""); err != nil {
			return err
		}
	}

	// Secrets never live in clokta.cfg.
	if v, ok := os.LookupEnv("okta_password"); ok {
		c.Password = v
	} else if c.SavePasswordInKeychain {
		c.Password = c.readSecret("okta_password")
	}
	if v, ok := os.LookupEnv(keyOTPSecret); ok {
		c.OTPSecret = v
	} else {
		c.OTPSecret = c.readSecret(keyOTPSecret)
	}
	return nil
}

// readSecret reads an obfuscated secret from the keyring. Failure to
// read only means the user gets prompted later.
func (c *Config) readSecret(name string) string {
	if c.kr == nil {
		return ""
	}
	item, err := c.kr.Get(name + "-" + c.Username)
	if err != nil {
		return ""
	}
	return deobfuscate(string(item.Data), c.Username)
}

// PromptForPassword collects the Okta password without echoing it.
func (c *Config) PromptForPassword() error {
	password, err := c.prompter.Password("Enter a value for okta_password")
	if err != nil {
		return err
	}
	c.Password = password
	return nil
}

// DetermineOTP produces the one-time code for a code-based factor,
// deriving it from the configured TOTP secret when present and prompting
// otherwise.
func (c *Config) DetermineOTP(factorLabel string) (string, error) {
	if c.OTPSecret != "" {
		code, err := totp.GenerateCode(c.OTPSecret, time.Now())
		if err != nil {
			return "", fail.Wrap(fail.ExitMFA,
				xerrors.Errorf("generating code from okta_onetimepassword_secret: %w", err))
		}
		return code, nil
	}
	return c.prompter.Prompt("Enter your "+factorLabel+" one time password", "")
}

// SetRole records the chosen role; makeDefault additionally flags it for
// persistence as the new default preference.
func (c *Config) SetRole(roleARN, account string, makeDefault bool) {
	c.RolePreference = roleARN
	c.AccountNumber = account
	if makeDefault {
		c.saveRoleAsDefault = true
	}
}

// ResetDefaultRole clears the stored role preference so the next login
// prompts again.
func (c *Config) ResetDefaultRole() error {
	c.RolePreference = ""
	c.saveRoleAsDefault = false
	if sec, err := c.file.GetSection(c.Profile); err == nil {
		sec.DeleteKey(keyRolePreference)
	}
	return c.write()
}

// Save persists the current configuration: shared values to the DEFAULT
// section, profile-scoped values to the profile section, and the
// password to the keyring when opted in.
func (c *Config) Save() error {
	def := c.file.Section(ini.DefaultSection)
	def.Key(keyUsername).SetValue(c.Username)
	def.Key(keyOrg).SetValue(c.OktaOrg)
	if c.FactorPreference != "" {
		def.Key(keyFactorPreference).SetValue(c.FactorPreference)
	}
	if c.SavePasswordInKeychain {
		def.Key(keySavePassword).SetValue("True")
	} else {
		def.Key(keySavePassword).SetValue("False")
	}

	sec := c.file.Section(c.Profile)
	sec.Key(keyAppURL).SetValue(c.AppURL)
	if c.AccountNumber != "" {
		sec.Key(keyAccountNumber).SetValue(c.AccountNumber)
	}
	if c.saveRoleAsDefault && c.RolePreference != "" {
		sec.Key(keyRolePreference).SetValue(c.RolePreference)
	}

	if c.SavePasswordInKeychain && c.Password != "" && c.kr != nil {
		err := c.kr.Set(keyring.Item{
			Key:   passwordKeyringKey(c.Username),
			Data:  []byte(obfuscate(c.Password, c.Username)),
			Label: "clokta okta password for " + c.Username,
		})
		if err != nil {
			c.ui.Warn("WARNING: could not save password to keychain: %s", err)
		}
	}

	return c.write()
}

// write backs up and rewrites clokta.cfg.
func (c *Config) write() error {
	backupFile(c.path)
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}
	if err := c.file.SaveTo(c.path); err != nil {
		return xerrors.Errorf("re-writing configuration file %s: %w", c.path, err)
	}
	return nil
}

// backupFile keeps a .bak copy of a file about to be rewritten.
func backupFile(path string) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return
	}
	if err := ioutil.WriteFile(path+".bak", contents, 0600); err != nil {
		log.Debugf("could not back up %s: %s", path, err)
	}
}

// Account is one configured profile with a known account number.
type Account struct {
	Profile string
	Number  string
}

// ListAccounts reports every profile in clokta.cfg that has recorded an
// AWS account number.
func ListAccounts() ([]Account, error) {
	dataDir, err := homedir.Expand(DefaultDataDir)
	if err != nil {
		return nil, err
	}
	file, err := ini.LooseLoad(filepath.Join(dataDir, configFileName))
	if err != nil {
		return nil, err
	}

	var accounts []Account
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		if num := sec.Key(keyAccountNumber).String(); num != "" {
			accounts = append(accounts, Account{Profile: sec.Name(), Number: num})
		}
	}
	return accounts, nil
}
