package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObfuscateRoundTrip(t *testing.T) {
	for _, secret := range []string{"hunter2", "p@ss w0rd!", "ünïcödé"} {
		obfuscated := obfuscate(secret, "doej")
		assert.NotEqual(t, secret, obfuscated)
		assert.Equal(t, secret, deobfuscate(obfuscated, "doej"))
	}
}

func TestObfuscateEmptyValues(t *testing.T) {
	assert.Empty(t, obfuscate("", "doej"))
	assert.Empty(t, obfuscate("secret", ""))
	assert.Empty(t, deobfuscate("", "doej"))
	assert.Empty(t, deobfuscate("*** not base64 ***", "doej"))
}
