package popsimgo

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// SimulationConfig is the top-level TOML configuration for a run. Flags
// given on the command line override its values.
type SimulationConfig struct {
	Sim *simRunConfig `toml:"simulation"`
	Log *simLogConfig `toml:"logging"`

	validated bool
}

type simRunConfig struct {
	Seed         uint32  `toml:"seed"`
	NumPatients  int     `toml:"num_patients"`
	HorizonYears float64 `toml:"horizon_years"`
	Engine       string  `toml:"engine"`
	WorldPath    string  `toml:"world_path"`
	Explain      bool    `toml:"explain"`
}

type simLogConfig struct {
	Path       string `toml:"path"`
	LoggerType string `toml:"logger_type"`
}

// LoadSimulationConfig parses a TOML config file and creates a
// SimulationConfig configuration.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	spec := new(SimulationConfig)
	if _, err := toml.DecodeFile(path, spec); err != nil {
		return nil, errors.Wrapf(err, "cannot load simulation config %s", path)
	}
	return spec, nil
}

// Validate checks the validity of the configuration and fills defaults.
func (c *SimulationConfig) Validate() error {
	if c.Sim == nil {
		c.Sim = new(simRunConfig)
	}
	if c.Log == nil {
		c.Log = new(simLogConfig)
	}
	if c.Sim.Seed == 0 {
		c.Sim.Seed = 1
	}
	if c.Sim.NumPatients <= 0 {
		return errors.Errorf(InvalidIntParameterError, "num_patients", c.Sim.NumPatients, "must be positive")
	}
	if c.Sim.HorizonYears <= 0 {
		return errors.Errorf(InvalidFloatParameterError, "horizon_years", c.Sim.HorizonYears, "must be positive")
	}
	switch c.Sim.Engine {
	case "":
		c.Sim.Engine = "kernel"
	case "kernel", "modules":
	default:
		return errors.Errorf(InvalidStringParameterError, "engine", c.Sim.Engine, "must be kernel or modules")
	}
	switch c.Log.LoggerType {
	case "", "csv", "sqlite":
	default:
		return errors.Errorf(InvalidStringParameterError, "logger_type", c.Log.LoggerType, "must be csv or sqlite")
	}
	c.validated = true
	return nil
}
