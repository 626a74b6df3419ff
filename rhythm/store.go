package rhythm

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-rhythm/logging"
)

const (
	storeMagic   = "sonido-rhythm"
	storeVersion = 3
)

// persisted is the on-disk envelope. The version tag changes whenever
// parameter semantics change; a mismatch discards the whole file
// rather than guessing at stale meanings.
type persisted struct {
	Magic   string `json:"magic"`
	Version int    `json:"version"`
	Config  Config `json:"config"`
}

// Store persists the parameter set as versioned JSON. Loading never
// fails hard: a missing, corrupt or mismatched file yields defaults,
// and individual out-of-range values fall back per parameter.
type Store struct {
	path string
}

// NewStore creates a store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted configuration. Unknown fields are ignored,
// missing fields keep their defaults and out-of-range values are reset
// per parameter. The returned config is always usable.
func (s *Store) Load() Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(s.path)
	if err != nil {
		logging.Info("config store: no persisted settings, using defaults", logging.Fields{
			"path": s.path,
		})
		return cfg
	}

	// Decoding over the defaults gives per-field fallback for free
	env := persisted{Config: cfg}
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Warn("config store: corrupt settings file, using defaults", logging.Fields{
			"path": s.path, "error": err.Error(),
		})
		return DefaultConfig()
	}

	if env.Magic != storeMagic || env.Version != storeVersion {
		logging.Warn("config store: version mismatch, discarding persisted settings", logging.Fields{
			"path": s.path, "version": env.Version, "want": storeVersion,
		})
		return DefaultConfig()
	}

	if repaired := env.Config.Sanitize(); repaired > 0 {
		logging.Warn("config store: repaired out-of-range parameters", logging.Fields{
			"count": repaired,
		})
	}
	return env.Config
}

// Save writes the configuration with the current version tag.
func (s *Store) Save(cfg Config) error {
	env := persisted{
		Magic:   storeMagic,
		Version: storeVersion,
		Config:  cfg,
	}

	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return fmt.Errorf("config store: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("config store: replace: %w", err)
	}
	return nil
}
