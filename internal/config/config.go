// Package config loads and merges the simulator's YAML configuration file
// over a built-in defaults tree, mirroring simulator/config.py's
// load_config/_deep_merge pair in the original Python source.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Simulator holds the [simulator] section.
type Simulator struct {
	InstanceID   string  `yaml:"instance_id"`
	SpeedFactor  float64 `yaml:"speed_factor"`
	TickHz       float64 `yaml:"tick_hz"`
	ScheduleXLSX string  `yaml:"schedule_xlsx"`
}

// Modbus holds the [modbus] section.
type Modbus struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UnitID int    `yaml:"unit_id"`
}

// Enterprise holds the ISA-95 enterprise/site/area/line identifiers
// attached to every emitted event.
type Enterprise struct {
	Name string `yaml:"name"`
	Site string `yaml:"site"`
	Area string `yaml:"area"`
	Line string `yaml:"line"`
}

// Production holds tunables for the stochastic production model.
type Production struct {
	MicrostopMeanIntervalS      float64 `yaml:"microstop_mean_interval_s"`
	MinorBreakdownMeanIntervalS float64 `yaml:"minor_breakdown_mean_interval_s"`
	BaseRejectProbability       float64 `yaml:"base_reject_probability"`
	LabelStockInitialPct        float64 `yaml:"label_stock_initial_pct"`
	LabelStockDepletionPer1000  float64 `yaml:"label_stock_depletion_per_1000"`
	CapStockInitialPct          float64 `yaml:"cap_stock_initial_pct"`
	RandomSeed                  int64   `yaml:"random_seed"`
}

// Logging holds the [logging] section.
type Logging struct {
	Level            string `yaml:"level"`
	TransactionsFile string `yaml:"transactions_file"`
	Console          bool   `yaml:"console"`
}

// Config is the fully merged configuration tree.
type Config struct {
	Simulator  Simulator  `yaml:"simulator"`
	Modbus     Modbus     `yaml:"modbus"`
	Enterprise Enterprise `yaml:"enterprise"`
	Production Production `yaml:"production"`
	Logging    Logging    `yaml:"logging"`
}

// Defaults returns the built-in configuration, matching _DEFAULT in
// simulator/config.py.
func Defaults() Config {
	return Config{
		Simulator: Simulator{
			InstanceID:   "sim01",
			SpeedFactor:  60.0,
			TickHz:       10,
			ScheduleXLSX: "ISA95_Bottling_Line_Model_v1.xlsx",
		},
		Modbus: Modbus{Host: "0.0.0.0", Port: 502, UnitID: 1},
		Enterprise: Enterprise{
			Name: "Aerogen", Site: "Shannon", Area: "Bottling", Line: "Line01",
		},
		Production: Production{
			MicrostopMeanIntervalS:      480,
			MinorBreakdownMeanIntervalS: 2400,
			BaseRejectProbability:       0.015,
			LabelStockInitialPct:        95,
			LabelStockDepletionPer1000:  3.0,
			CapStockInitialPct:          98,
			RandomSeed:                  0,
		},
		Logging: Logging{
			Level:            "INFO",
			TransactionsFile: "logs/transactions.jsonl",
			Console:          true,
		},
	}
}

// Load reads path (if it exists) and deep-merges it over Defaults(). A
// missing file is not an error — the defaults apply as-is, matching
// load_config's os.path.exists guard.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var override Config
	// Unmarshal into a copy of the defaults so that fields omitted from
	// the user file retain their default values (yaml.v3 only overwrites
	// fields present in the document).
	override = cfg
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &override, nil
}
