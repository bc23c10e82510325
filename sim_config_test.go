package popsimgo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfigTOML = `
[simulation]
seed = 7
num_patients = 25
horizon_years = 10.0
engine = "modules"
explain = true

[logging]
path = "out/log"
logger_type = "sqlite"
`

func TestLoadSimulationConfig(t *testing.T) {
	path := writeTempFile(t, "sim.toml", sampleConfigTOML)
	conf, err := LoadSimulationConfig(path)
	require.NoError(t, err)
	require.NoError(t, conf.Validate())
	require.Equal(t, uint32(7), conf.Sim.Seed)
	require.Equal(t, 25, conf.Sim.NumPatients)
	require.Equal(t, 10.0, conf.Sim.HorizonYears)
	require.Equal(t, "modules", conf.Sim.Engine)
	require.True(t, conf.Sim.Explain)
	require.Equal(t, "sqlite", conf.Log.LoggerType)
}

func TestSimulationConfig_ValidateDefaults(t *testing.T) {
	conf := &SimulationConfig{Sim: &simRunConfig{NumPatients: 1, HorizonYears: 1}}
	require.NoError(t, conf.Validate())
	require.Equal(t, uint32(1), conf.Sim.Seed)
	require.Equal(t, "kernel", conf.Sim.Engine)
}

func TestSimulationConfig_ValidateRejectsBadValues(t *testing.T) {
	conf := &SimulationConfig{Sim: &simRunConfig{NumPatients: 0, HorizonYears: 1}}
	require.Error(t, conf.Validate())

	conf = &SimulationConfig{Sim: &simRunConfig{NumPatients: 1, HorizonYears: 0}}
	require.Error(t, conf.Validate())

	conf = &SimulationConfig{Sim: &simRunConfig{NumPatients: 1, HorizonYears: 1, Engine: "quantum"}}
	require.Error(t, conf.Validate())

	conf = &SimulationConfig{
		Sim: &simRunConfig{NumPatients: 1, HorizonYears: 1},
		Log: &simLogConfig{LoggerType: "parquet"},
	}
	require.Error(t, conf.Validate())
}

func TestLoadSimulationConfig_MissingFile(t *testing.T) {
	_, err := LoadSimulationConfig("absent.toml")
	require.Error(t, err)
}
