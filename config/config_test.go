package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSettings(t *testing.T) {
	path := writeConfig(t, `RPCAddress = "0.0.0.0:9000"
MetricsAddress = ":9191"
DataDir = "./data"
EngineAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x000000000000000000000000000000000000000a"
FeeRecipient = "0x0000000000000000000000000000000000000005"
FeeBps = 250
Paused = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, uint32(250), cfg.FeeBps)
	require.True(t, cfg.Paused)

	engine := cfg.Engine()
	require.Equal(t, byte(0xEE), engine[19])
	recipient := cfg.Recipient()
	require.Equal(t, byte(0x05), recipient[19])
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "0x000000000000000000000000000000000000000a"
EngineAddress = "0x00000000000000000000000000000000000000ee"
ValidatorKeystorePath = "./validator.keystore"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestLoadRejectsExcessiveFee(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "0x000000000000000000000000000000000000000a"
EngineAddress = "0x00000000000000000000000000000000000000ee"
FeeBps = 2001
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "FeeBps")
}

func TestLoadRejectsZeroOwner(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "0x0000000000000000000000000000000000000000"
EngineAddress = "0x00000000000000000000000000000000000000ee"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "OwnerAddress")
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.NotEqual(t, [20]byte{}, cfg.Owner())

	// The generated file round-trips.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OwnerAddress, reloaded.OwnerAddress)
}

func TestFeeRecipientDefaultsToOwner(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "0x000000000000000000000000000000000000000a"
EngineAddress = "0x00000000000000000000000000000000000000ee"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Owner(), cfg.Recipient())
}

func TestParseAddress(t *testing.T) {
	_, err := ParseAddress("000000000000000000000000000000000000000a")
	require.Error(t, err)
	_, err = ParseAddress("0xzz")
	require.Error(t, err)
	_, err = ParseAddress("0x00")
	require.Error(t, err)

	addr, err := ParseAddress("0x000000000000000000000000000000000000000a")
	require.NoError(t, err)
	require.Equal(t, byte(0x0A), addr[19])
	require.Equal(t, "0x000000000000000000000000000000000000000a", FormatAddress(addr))
}
