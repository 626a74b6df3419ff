package rhythm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhythm.json")
	return NewStore(path), path
}

func TestStoreRoundTrip(t *testing.T) {
	s, _ := tempStore(t)

	cfg := DefaultConfig()
	cfg.Tempo.PriorCenterBPM = 100.0
	cfg.Output.PulseDecay = 0.5
	if err := s.Save(cfg); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if got.Tempo.PriorCenterBPM != 100.0 {
		t.Errorf("prior center = %v, want 100", got.Tempo.PriorCenterBPM)
	}
	if got.Output.PulseDecay != 0.5 {
		t.Errorf("pulse decay = %v, want 0.5", got.Output.PulseDecay)
	}
}

func TestStoreMissingFileYieldsDefaults(t *testing.T) {
	s, _ := tempStore(t)
	got := s.Load()
	if !reflect.DeepEqual(got, DefaultConfig()) {
		t.Error("missing file should load defaults")
	}
}

func TestStoreCorruptFileYieldsDefaults(t *testing.T) {
	s, path := tempStore(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(); !reflect.DeepEqual(got, DefaultConfig()) {
		t.Error("corrupt file should load defaults")
	}
}

func TestStoreVersionMismatchYieldsDefaults(t *testing.T) {
	s, path := tempStore(t)

	cfg := DefaultConfig()
	cfg.Tempo.PriorCenterBPM = 100.0
	env := persisted{Magic: storeMagic, Version: storeVersion - 1, Config: cfg}
	data, err := json.Marshal(&env)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if got.Tempo.PriorCenterBPM != DefaultConfig().Tempo.PriorCenterBPM {
		t.Error("stale version should be discarded wholesale")
	}
}

func TestStoreRepairsOutOfRangeField(t *testing.T) {
	s, path := tempStore(t)

	cfg := DefaultConfig()
	cfg.Tempo.MinBPM = 5.0          // out of range
	cfg.Tempo.PriorCenterBPM = 90.0 // in range, must survive
	env := persisted{Magic: storeMagic, Version: storeVersion, Config: cfg}
	data, err := json.Marshal(&env)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if got.Tempo.MinBPM != DefaultConfig().Tempo.MinBPM {
		t.Errorf("min bpm = %v, want reset to default", got.Tempo.MinBPM)
	}
	if got.Tempo.PriorCenterBPM != 90.0 {
		t.Errorf("prior center = %v, want preserved 90", got.Tempo.PriorCenterBPM)
	}
}

func TestStorePartialFileKeepsOtherDefaults(t *testing.T) {
	s, path := tempStore(t)

	// A file naming only one parameter leaves the rest at defaults
	blob := []byte(`{"magic":"` + storeMagic + `","version":` + strconv.Itoa(storeVersion) + `,` +
		`"config":{"tempo":{"prior_center_bpm":110}}}`)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if got.Tempo.PriorCenterBPM != 110.0 {
		t.Errorf("prior center = %v, want 110", got.Tempo.PriorCenterBPM)
	}
	if got.FrontEnd.SampleRate != DefaultConfig().FrontEnd.SampleRate {
		t.Errorf("sample rate = %v, want untouched default", got.FrontEnd.SampleRate)
	}
}
