// Package creds persists the temporary AWS credentials: the profile in
// ~/.aws/credentials plus shell and docker-compose env files under the
// data directory.
package creds

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/alessio/shellescape"
	"github.com/aws/aws-sdk-go/service/sts"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	ini "gopkg.in/ini.v1"
)

const defaultProfilesLocation = "~/.aws/credentials"

// Writer applies one set of temporary credentials for one profile.
type Writer struct {
	Profile string
	DataDir string

	// ProfilesLocation overrides ~/.aws/credentials, for tests.
	ProfilesLocation string
}

// BashFile is where the shell-sourceable exports are written.
func (w *Writer) BashFile() string {
	return filepath.Join(w.DataDir, w.Profile+".sh")
}

// EnvFile is where the docker-compose env file is written.
func (w *Writer) EnvFile() string {
	return filepath.Join(w.DataDir, w.Profile+".env")
}

// Apply writes the credentials everywhere they are consumed from.
func (w *Writer) Apply(credentials *sts.Credentials) error {
	if err := w.applyToProfile(credentials); err != nil {
		return err
	}
	if err := w.writeEnvFiles(credentials); err != nil {
		return err
	}
	return nil
}

// applyToProfile updates the profile section of the AWS credentials
// file, dropping any stale session token before writing the new one.
func (w *Writer) applyToProfile(credentials *sts.Credentials) error {
	location := w.ProfilesLocation
	if location == "" {
		location = defaultProfilesLocation
	}
	path, err := homedir.Expand(location)
	if err != nil {
		return err
	}

	file, err := ini.LooseLoad(path)
	if err != nil {
		return xerrors.Errorf("reading %s: %w", path, err)
	}

	sec := file.Section(w.Profile)
	sec.Key("AWS_ACCESS_KEY_ID").SetValue(*credentials.AccessKeyId)
	sec.Key("AWS_SECRET_ACCESS_KEY").SetValue(*credentials.SecretAccessKey)
	sec.DeleteKey("AWS_SESSION_TOKEN")
	if credentials.SessionToken != nil {
		sec.Key("AWS_SESSION_TOKEN").SetValue(*credentials.SessionToken)
	}

	backupFile(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := file.SaveTo(path); err != nil {
		return xerrors.Errorf("re-writing credentials file %s: %w", path, err)
	}
	log.Debugf("wrote credentials for profile %s to %s", w.Profile, path)
	return nil
}

// writeEnvFiles generates the docker-compose env file (bare KEY=value)
// and the shell file (escaped export statements).
func (w *Writer) writeEnvFiles(credentials *sts.Credentials) error {
	if err := os.MkdirAll(w.DataDir, 0700); err != nil {
		return err
	}

	envBody := fmt.Sprintf("AWS_ACCESS_KEY_ID=%s\nAWS_SECRET_ACCESS_KEY=%s\nAWS_SESSION_TOKEN=%s\n",
		*credentials.AccessKeyId, *credentials.SecretAccessKey, *credentials.SessionToken)
	if err := ioutil.WriteFile(w.EnvFile(), []byte(envBody), 0600); err != nil {
		return err
	}

	bashBody := fmt.Sprintf("export AWS_ACCESS_KEY_ID=%s\nexport AWS_SECRET_ACCESS_KEY=%s\nexport AWS_SESSION_TOKEN=%s\n",
		shellescape.Quote(*credentials.AccessKeyId),
		shellescape.Quote(*credentials.SecretAccessKey),
		shellescape.Quote(*credentials.SessionToken))
	return ioutil.WriteFile(w.BashFile(), []byte(bashBody), 0600)
}

func backupFile(path string) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return
	}
	if err := ioutil.WriteFile(path+".bak", contents, 0600); err != nil {
		log.Debugf("could not back up %s: %s", path, err)
	}
}
