package config

import (
	"encoding/base64"

	"github.com/99designs/keyring"
)

const keychainService = "clokta"

// openKeyring opens the OS keyring, falling back to an encrypted file
// under the data dir where no native backend exists.
func openKeyring(dataDir string, passwordFunc keyring.PromptFunc) (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName:              keychainService,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  "clokta",
		FileDir:                  dataDir,
		FilePasswordFunc:         passwordFunc,
	})
}

// passwordKeyringKey scopes the stored password to the Okta username.
func passwordKeyringKey(username string) string {
	return "okta_password-" + username
}

// obfuscate lightly scrambles a secret with the username as salt before
// it goes into the keyring, so the plaintext never appears in keychain
// inspection tools. The keyring itself is what protects the value.
func obfuscate(secret, salt string) string {
	if secret == "" || salt == "" {
		return ""
	}
	enc := make([]byte, len(secret))
	for i := 0; i < len(secret); i++ {
		enc[i] = byte((int(secret[i]) + int(salt[i%len(salt)])) % 256)
	}
	return base64.URLEncoding.EncodeToString(enc)
}

// deobfuscate reverses obfuscate.
func deobfuscate(obfuscated, salt string) string {
	if obfuscated == "" || salt == "" {
		return ""
	}
	enc, err := base64.URLEncoding.DecodeString(obfuscated)
	if err != nil {
		return ""
	}
	dec := make([]byte, len(enc))
	for i := 0; i < len(enc); i++ {
		dec[i] = byte((256 + int(enc[i]) - int(salt[i%len(salt)])) % 256)
	}
	return string(dec)
}
