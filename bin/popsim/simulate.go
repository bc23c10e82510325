package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	popsim "github.com/kentwait/popsimgo"
)

var (
	flagConfig       string
	flagWorld        string
	flagN            int
	flagOut          string
	flagHorizonYears float64
	flagExplain      bool
	flagSeed         uint32
	flagEngine       string
	flagLogger       string
	flagLogPath      string
	flagFHIR         bool
	flagOutDir       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a population simulation",
	Long: `Simulate runs the built-in clinical model for a population of
independent patients, either on the event kernel (continuous time, days) or
on the month-stepped module runtime (patient age, years). When --out is
supplied the full patient array is written as JSON; a summary is always
printed to standard output and written under the output directory.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&flagConfig, "config", "", "TOML run configuration (flags override)")
	simulateCmd.Flags().StringVar(&flagWorld, "world", "", "world manifest JSON")
	simulateCmd.Flags().IntVar(&flagN, "n", 10, "number of patients")
	simulateCmd.Flags().StringVar(&flagOut, "out", "", "write the patient array JSON to this path")
	simulateCmd.Flags().Float64Var(&flagHorizonYears, "horizonYears", 5, "simulation horizon in years")
	simulateCmd.Flags().BoolVar(&flagExplain, "explain", false, "trace fired transitions and hazard terms")
	simulateCmd.Flags().Uint32Var(&flagSeed, "seed", 1, "world seed")
	simulateCmd.Flags().StringVar(&flagEngine, "engine", "kernel", "simulation engine (kernel|modules)")
	simulateCmd.Flags().StringVar(&flagLogger, "logger", "", "data logger type (csv|sqlite)")
	simulateCmd.Flags().StringVar(&flagLogPath, "log-path", "out/log", "base path for data logger output")
	simulateCmd.Flags().BoolVar(&flagFHIR, "fhir", false, "attach FHIR-lite bundles to the patient output")
	simulateCmd.Flags().StringVar(&flagOutDir, "out-dir", "out", "directory for aggregate metrics")
	simulateCmd.SilenceUsage = true
}

// modulePatientOutput wraps a module-runtime patient with its optional
// FHIR-lite bundle for JSON output.
type modulePatientOutput struct {
	*popsim.Patient
	FHIR *popsim.FHIRBundle `json:"fhir,omitempty"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	log := popsim.NewLogger(os.Stdout, level, jsonLog)

	if flagConfig != "" {
		conf, err := popsim.LoadSimulationConfig(flagConfig)
		if err != nil {
			return err
		}
		if err := conf.Validate(); err != nil {
			return err
		}
		applyConfigDefaults(cmd, conf)
	}
	if flagN <= 0 {
		return fmt.Errorf("invalid patient count %d, must be positive", flagN)
	}
	if flagHorizonYears <= 0 {
		return fmt.Errorf("invalid horizon %f, must be positive", flagHorizonYears)
	}
	switch flagEngine {
	case "kernel", "modules":
	default:
		return fmt.Errorf("invalid engine %s, must be kernel or modules", flagEngine)
	}

	var catalog *popsim.AttributeCatalog
	if flagWorld != "" {
		world, err := popsim.LoadWorldManifest(flagWorld)
		if err != nil {
			return err
		}
		if err := world.Validate(); err != nil {
			return err
		}
		world.WarnLowAcceptance(log)
		if !cmd.Flags().Changed("seed") && world.Seed != 0 {
			flagSeed = world.Seed
		}
		catalog, err = world.LoadCatalog()
		if err != nil {
			return err
		}
	}

	var dataLogger popsim.DataLogger
	switch flagLogger {
	case "":
	case "csv":
		dataLogger = popsim.NewCSVLogger(flagLogPath, 1)
	case "sqlite":
		dataLogger = popsim.NewSQLiteLogger(flagLogPath, 1)
	default:
		return fmt.Errorf("%s is not a valid logger type (csv|sqlite)", flagLogger)
	}

	var summary popsim.Summary
	var output interface{}
	switch flagEngine {
	case "kernel":
		patients := popsim.RunKernelPopulation(popsim.KernelPopulationConfig{
			Seed:        flagSeed,
			N:           flagN,
			HorizonDays: flagHorizonYears * popsim.DaysPerYear,
			Explain:     flagExplain,
			WithFHIR:    flagFHIR,
			Logger:      &log,
			Catalog:     catalog,
		})
		logs := make([][]*popsim.Event, 0, len(patients))
		for _, p := range patients {
			logs = append(logs, p.Events)
		}
		summary = popsim.ComputeKernelSummary(logs)
		if dataLogger != nil {
			if err := dataLogger.Init(); err != nil {
				return err
			}
			for _, p := range patients {
				popsim.RecordKernelEvents(dataLogger, p.PID, p.Events)
			}
			if err := dataLogger.WriteSummary(summary); err != nil {
				return err
			}
		}
		output = patients
	case "modules":
		rt := &popsim.ModuleRuntime{
			Seed:             flagSeed,
			HorizonYears:     flagHorizonYears,
			AttributeModules: popsim.DemoAttributeModules(),
			DiseaseModules:   popsim.DemoDiseaseModules(),
			Catalog:          catalog,
			Logger:           &log,
		}
		patients := rt.Run(flagN)
		summary = popsim.ComputeSummary(patients)
		if dataLogger != nil {
			if err := popsim.RecordPatients(dataLogger, patients); err != nil {
				return err
			}
		}
		wrapped := make([]modulePatientOutput, 0, len(patients))
		for _, p := range patients {
			out := modulePatientOutput{Patient: p}
			if flagFHIR {
				bundle := popsim.FHIRFromPatient(p)
				out.FHIR = &bundle
			}
			wrapped = append(wrapped, out)
		}
		output = wrapped
	}

	if flagOut != "" {
		b, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(flagOut, b, 0644); err != nil {
			return err
		}
	}
	if err := (popsim.FileReporter{Dir: flagOutDir}).ReportSummary(summary); err != nil {
		return err
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// applyConfigDefaults fills flag values from a validated TOML config
// without overriding flags the user set explicitly.
func applyConfigDefaults(cmd *cobra.Command, conf *popsim.SimulationConfig) {
	if !cmd.Flags().Changed("seed") {
		flagSeed = conf.Sim.Seed
	}
	if !cmd.Flags().Changed("n") {
		flagN = conf.Sim.NumPatients
	}
	if !cmd.Flags().Changed("horizonYears") {
		flagHorizonYears = conf.Sim.HorizonYears
	}
	if !cmd.Flags().Changed("engine") {
		flagEngine = conf.Sim.Engine
	}
	if !cmd.Flags().Changed("world") {
		flagWorld = conf.Sim.WorldPath
	}
	if !cmd.Flags().Changed("explain") {
		flagExplain = conf.Sim.Explain
	}
	if !cmd.Flags().Changed("logger") {
		flagLogger = conf.Log.LoggerType
	}
	if !cmd.Flags().Changed("log-path") && conf.Log.Path != "" {
		flagLogPath = conf.Log.Path
	}
}
