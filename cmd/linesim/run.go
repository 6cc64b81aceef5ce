package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zoobzio/linesim"
)

// loadConfig reads a config file (YAML, JSON, or TOML by extension) on
// top of the library defaults.
func loadConfig(path string) (linesim.Config, error) {
	cfg := linesim.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func loadProcess(path string) (*linesim.Process, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr := linesim.ParseProcessCSV(f)
	for _, w := range pr.Warnings {
		logger.Warn().Str("file", path).Msg(w)
	}
	if !pr.OK() {
		return nil, fmt.Errorf("parse process %s: %s", path, strings.Join(pr.Errors, "; "))
	}
	return pr.Process, nil
}

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		processPath string
		outputPath  string
		eventsPath  string
		compare     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a process CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			process, err := loadProcess(processPath)
			if err != nil {
				return err
			}
			logger.Info().
				Int("tasks", len(process.Tasks)).
				Float64("total_std_duration", process.TotalStdDuration()).
				Int("measurement_steps", len(process.MeasurementTasks())).
				Int("high_load_steps", len(process.HighLoadTasks(cfg.RestLoadThreshold))).
				Msg("process loaded")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			result, err := linesim.Run(ctx, cfg, process)
			if err != nil {
				logger.Error().Str("diagnosis", result.Diagnosis).Msg("simulation failed")
				return err
			}
			logger.Info().
				Int("engines_completed", result.EnginesCompleted).
				Float64("avg_cycle_time", result.AvgCycleTime).
				Float64("sim_duration", result.SimDuration).
				Msg("simulation completed")

			out := map[string]any{"result": result}
			if compare {
				summary, err := linesim.RunNoRest(ctx, cfg, process)
				if err != nil {
					return err
				}
				out["no_rest"] = summary
			}

			if err := writeJSON(outputPath, out); err != nil {
				return err
			}
			if eventsPath != "" {
				f, err := os.Create(eventsPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := linesim.WriteEventCSV(f, result.Events, cfg.WorkHoursPerDay); err != nil {
					return err
				}
				logger.Info().Str("file", eventsPath).Int("events", len(result.Events)).Msg("event timeline written")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (yaml/json/toml)")
	cmd.Flags().StringVarP(&processPath, "process", "p", "", "process CSV file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "result JSON file (default stdout)")
	cmd.Flags().StringVar(&eventsPath, "events-out", "", "write event timeline CSV to this file")
	cmd.Flags().BoolVar(&compare, "compare", false, "also run the no-rest comparison")
	_ = cmd.MarkFlagRequired("process")
	return cmd
}

func writeJSON(path string, v any) error {
	enc := json.NewEncoder(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		enc = json.NewEncoder(f)
	}
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTemplateCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the process CSV template",
		RunE: func(_ *cobra.Command, _ []string) error {
			w := os.Stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return linesim.WriteProcessCSV(w, linesim.TemplateProcess())
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")
	return cmd
}
