package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/thyrosim/internal/report"
	"github.com/san-kum/thyrosim/internal/scenario"
	"github.com/san-kum/thyrosim/internal/storage"
)

func newScenarioCmd() *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a chained scenario from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			sc, err := scenario.LoadScenario(args[0])
			if err != nil {
				return err
			}
			a.log.Info().Str("scenario", sc.Name).Int("steps", len(sc.Steps)).Msg("running scenario")

			results, err := scenario.RunScenario(cmd.Context(), a.runner, sc)
			if err != nil {
				return err
			}

			if !noSave {
				if err := a.store.Init(); err != nil {
					return err
				}
			}
			var parent string
			for i, step := range results {
				title := fmt.Sprintf("%s: %s (day %g)", sc.Name, step.Name, step.Offset)
				if !noSave {
					opts := storage.SaveOptions{Label: sc.Name + "/" + step.Name}
					if sc.Steps[i].Continue {
						opts.Parent = parent
					}
					id, err := a.store.Save(step.Request, step.Result, opts)
					if err != nil {
						return err
					}
					parent = id
					title += " " + shortID(id)
				}
				fmt.Println(report.Summary(title, step.Result))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		pf      patientFlags
		param   string
		minV    float64
		maxV    float64
		steps   int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter and compare outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pf.apply(cmd, current.cfg)
			if err != nil {
				return err
			}
			sweep := &scenario.ParameterSweep{
				Parameter: param,
				Min:       minV,
				Max:       maxV,
				NumSteps:  steps,
				Base:      cfg.Request(),
				Workers:   workers,
			}

			results, err := scenario.RunSweep(cmd.Context(), current.runner, sweep)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					fmt.Sprintf("%g", r.ParamValue),
					fmt.Sprintf("%.2f", r.Summary["t4"].Final),
					fmt.Sprintf("%.3f", r.Summary["t3"].Final),
					fmt.Sprintf("%.3f", r.Summary["tsh"].Final),
					fmt.Sprintf("%.2f", r.Summary["ft4"].Final),
					fmt.Sprintf("%.2f", r.Summary["ft3"].Final),
				})
			}
			fmt.Println(report.Table([]string{param, "T4", "T3", "TSH", "FT4", "FT3"}, rows))
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&param, "param", scenario.SecretionT4, "secretion-t4, secretion-t3, absorption-t4, absorption-t3, weight or height")
	cmd.Flags().Float64Var(&minV, "min", 0, "first value")
	cmd.Flags().Float64Var(&maxV, "max", 100, "last value")
	cmd.Flags().IntVar(&steps, "steps", 5, "number of values")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")
	return cmd
}

func newPopulationCmd() *cobra.Command {
	var (
		pf       patientFlags
		heightSD float64
		weightSD float64
		trials   int
		seed     int64
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "population",
		Short: "simulate a population around one patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pf.apply(cmd, current.cfg)
			if err != nil {
				return err
			}
			results, err := scenario.RunPopulation(cmd.Context(), current.runner, &scenario.PopulationConfig{
				Base:      cfg.Request(),
				HeightSD:  heightSD,
				WeightSD:  weightSD,
				NumTrials: trials,
				Seed:      seed,
				Workers:   workers,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					fmt.Sprintf("%d", r.TrialID),
					fmt.Sprintf("%.2f", r.Patient.Height),
					fmt.Sprintf("%.1f", r.Patient.Weight),
					fmt.Sprintf("%.2f", r.Summary["ft4"].Final),
					fmt.Sprintf("%.3f", r.Summary["tsh"].Final),
					fmt.Sprintf("%t", r.Euthyroid),
				})
			}
			fmt.Println(report.Table([]string{"TRIAL", "HEIGHT", "WEIGHT", "FT4", "TSH", "EUTHYROID"}, rows))
			ok, out := scenario.PopulationStats(results)
			fmt.Printf("\neuthyroid: %d, out of range: %d\n", ok, out)
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().Float64Var(&heightSD, "height-sd", 0.07, "height standard deviation (m)")
	cmd.Flags().Float64Var(&weightSD, "weight-sd", 10, "weight standard deviation (kg)")
	cmd.Flags().IntVar(&trials, "trials", 20, "number of patients")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")
	return cmd
}
