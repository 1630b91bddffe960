package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MaxFeeBps mirrors the settlement engine's fee cap so a bad config file is
// rejected before the daemon starts.
const MaxFeeBps = 2000

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	EngineAddress  string `toml:"EngineAddress"`
	OwnerAddress   string `toml:"OwnerAddress"`
	FeeRecipient   string `toml:"FeeRecipient"`
	FeeBps         uint32 `toml:"FeeBps"`
	Paused         bool   `toml:"Paused"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the semantic constraints the engine will enforce anyway, so
// misconfiguration surfaces at startup rather than on the first settlement.
func (c *Config) Validate() error {
	if c.FeeBps > MaxFeeBps {
		return fmt.Errorf("FeeBps %d exceeds the maximum of %d", c.FeeBps, MaxFeeBps)
	}
	if _, err := ParseAddress(c.EngineAddress); err != nil {
		return fmt.Errorf("EngineAddress: %w", err)
	}
	owner, err := ParseAddress(c.OwnerAddress)
	if err != nil {
		return fmt.Errorf("OwnerAddress: %w", err)
	}
	if owner == ([20]byte{}) {
		return fmt.Errorf("OwnerAddress must not be the zero address")
	}
	if strings.TrimSpace(c.FeeRecipient) != "" {
		recipient, err := ParseAddress(c.FeeRecipient)
		if err != nil {
			return fmt.Errorf("FeeRecipient: %w", err)
		}
		if recipient == ([20]byte{}) {
			return fmt.Errorf("FeeRecipient must not be the zero address")
		}
	}
	return nil
}

// Engine returns the parsed engine custody address.
func (c *Config) Engine() [20]byte {
	addr, _ := ParseAddress(c.EngineAddress)
	return addr
}

// Owner returns the parsed administrative address.
func (c *Config) Owner() [20]byte {
	addr, _ := ParseAddress(c.OwnerAddress)
	return addr
}

// Recipient returns the parsed fee recipient, or the owner when unset.
func (c *Config) Recipient() [20]byte {
	if strings.TrimSpace(c.FeeRecipient) == "" {
		return c.Owner()
	}
	addr, _ := ParseAddress(c.FeeRecipient)
	return addr
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "0x") {
		return addr, fmt.Errorf("address %q must be 0x-prefixed", s)
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil {
		return addr, fmt.Errorf("address %q is not valid hex", s)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes", s)
	}
	copy(addr[:], raw)
	return addr, nil
}

// FormatAddress renders a 20-byte address in the 0x-prefixed form used across
// the config file and the RPC surface.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// createDefault creates and saves a default configuration file. The default
// owner is a placeholder that must be replaced before real use.
func createDefault(path string) (*Config, error) {
	var owner [20]byte
	owner[19] = 0x01
	var engine [20]byte
	engine[19] = 0xEE

	cfg := &Config{
		RPCAddress:     ":8545",
		MetricsAddress: ":9090",
		DataDir:        "./marketd-data",
		EngineAddress:  FormatAddress(engine),
		OwnerAddress:   FormatAddress(owner),
		FeeBps:         0,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
