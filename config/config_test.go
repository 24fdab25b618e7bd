package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htlc-gateway.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8082", cfg.ListenAddress)
	require.Equal(t, "./htlc-data", cfg.DataDir)
	require.Equal(t, uint16(500), cfg.Escrow.MinSafetyDepositBps)
	require.Equal(t, "untrn", cfg.Escrow.NativeDenom)
	require.Equal(t, 30*time.Second, cfg.ReadTimeout())

	// The default file was written and loads back identically.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htlc-gateway.toml")
	content := `
ListenAddress = ":9000"
DataDir = "/var/lib/htlc"
ReadTimeoutSeconds = 5

[escrow]
Admin = "nhb1admin"
MinSafetyDepositBps = 750
NativeDenom = "unhb"

[observability]
Metrics = true
LogRequests = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, "/var/lib/htlc", cfg.DataDir)
	require.Equal(t, 5*time.Second, cfg.ReadTimeout())
	require.Equal(t, "nhb1admin", cfg.Escrow.Admin)
	require.Equal(t, uint16(750), cfg.Escrow.MinSafetyDepositBps)
	require.Equal(t, "unhb", cfg.Escrow.NativeDenom)
	require.True(t, cfg.Observability.Metrics)

	// Unset fields fall back to defaults.
	require.Equal(t, 120*time.Second, cfg.IdleTimeout())
	require.Equal(t, "htlc-gateway", cfg.Observability.ServiceName)
}

func TestLoadRejectsBadBps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htlc-gateway.toml")
	content := `
[escrow]
MinSafetyDepositBps = 10001
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
