package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Defaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Registry.ServerTimeout)
	assert.Equal(t, 2*time.Second, cfg.Registry.SweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.Registry.MaxQuiescence)
	assert.Equal(t, "none", cfg.Validation.Mode)
	assert.Equal(t, 300*time.Millisecond, cfg.Validation.ListenTimeout)
	assert.Equal(t, 3, cfg.Validation.RetryCount)
	assert.False(t, cfg.Policy.SkipNameCheck)
	assert.Equal(t, 3, cfg.Policy.MinNameLength)
	assert.Equal(t, 32, cfg.Policy.MaxNameLength)
	assert.False(t, cfg.Bans.FailOpen)
	assert.False(t, cfg.TLSEnabled())
	assert.Empty(t, cfg.Storage.PutEULA)
	assert.Equal(t, "english", cfg.Storage.EULALang)
}

func TestParseArgs_MaintenanceFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{"--db-put-eula", "eula.txt", "--db-eula-lang", "german", "--db-add-user", "alice"})
	require.NoError(t, err)

	assert.Equal(t, "eula.txt", cfg.Storage.PutEULA)
	assert.Equal(t, "german", cfg.Storage.EULALang)
	assert.Equal(t, "alice", cfg.Storage.AddUser)
}

func TestParseArgs_FlagsAndEnv(t *testing.T) {
	t.Setenv("MASTERLIST_REGISTRY_SERVER_TIMEOUT", "45s")
	t.Setenv("MASTERLIST_POLICY_ALLOWED_CHECKSUMS", "1,2")

	cfg, err := ParseArgs([]string{
		"--validation-mode", "tcp",
		"--bans-fail-open",
		"--tls-cert", "cert.pem",
		"--tls-key", "key.pem",
	})
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Registry.ServerTimeout)
	assert.Equal(t, []uint32{1, 2}, cfg.Policy.AllowedChecksums)
	assert.Equal(t, "tcp", cfg.Validation.Mode)
	assert.True(t, cfg.Bans.FailOpen)
	assert.True(t, cfg.TLSEnabled())
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := map[string][]string{
		"tls cert only": {"--tls-cert", "cert.pem"},
		"bad mode":      {"--validation-mode", "icmp"},
		"short timeout": {"--registry-server-timeout", "10ms"},
		"name bounds":   {"--policy-min-name-length", "10", "--policy-max-name-length", "5"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArgs(args)
			assert.Error(t, err)
		})
	}
}
