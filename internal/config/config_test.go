package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := Defaults()
	if cfg.Simulator.SpeedFactor != def.Simulator.SpeedFactor {
		t.Errorf("SpeedFactor = %v, want default %v", cfg.Simulator.SpeedFactor, def.Simulator.SpeedFactor)
	}
	if cfg.Modbus.Port != def.Modbus.Port {
		t.Errorf("Port = %d, want default %d", cfg.Modbus.Port, def.Modbus.Port)
	}
}

func TestLoadMergesOverUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "simulator:\n  speed_factor: 120\nmodbus:\n  port: 5020\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Simulator.SpeedFactor != 120 {
		t.Errorf("SpeedFactor = %v, want 120", cfg.Simulator.SpeedFactor)
	}
	if cfg.Modbus.Port != 5020 {
		t.Errorf("Port = %d, want 5020", cfg.Modbus.Port)
	}
	// Unset fields should retain their defaults.
	if cfg.Enterprise.Name != "Aerogen" {
		t.Errorf("Enterprise.Name = %q, want default %q", cfg.Enterprise.Name, "Aerogen")
	}
	if cfg.Modbus.UnitID != 1 {
		t.Errorf("Modbus.UnitID = %d, want default 1", cfg.Modbus.UnitID)
	}
}
