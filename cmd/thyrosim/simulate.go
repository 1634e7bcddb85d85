package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/thyrosim/internal/config"
	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/physiology"
	"github.com/san-kum/thyrosim/internal/report"
	"github.com/san-kum/thyrosim/internal/run"
	"github.com/san-kum/thyrosim/internal/storage"
)

// patientFlags override the configured patient and thyroid state.
type patientFlags struct {
	preset       string
	height       float64
	weight       float64
	sex          string
	secretionT4  float64
	secretionT3  float64
	absorptionT4 float64
	absorptionT3 float64
	days         float64
	recalculate  bool
	doses        []string
}

func (f *patientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.preset, "preset", "", "patient preset (see 'thyrosim presets')")
	cmd.Flags().Float64Var(&f.height, "height", 0, "height in meters")
	cmd.Flags().Float64Var(&f.weight, "weight", 0, "weight in kg")
	cmd.Flags().StringVar(&f.sex, "sex", "", "female or male")
	cmd.Flags().Float64Var(&f.secretionT4, "secretion-t4", 0, "T4 secretion, % of normal")
	cmd.Flags().Float64Var(&f.secretionT3, "secretion-t3", 0, "T3 secretion, % of normal")
	cmd.Flags().Float64Var(&f.absorptionT4, "absorption-t4", 0, "oral T4 absorption, %")
	cmd.Flags().Float64Var(&f.absorptionT3, "absorption-t3", 0, "oral T3 absorption, %")
	cmd.Flags().Float64Var(&f.days, "days", 0, "simulated days")
	cmd.Flags().BoolVar(&f.recalculate, "recalc", false, "recalculate initial conditions")
	cmd.Flags().StringArrayVar(&f.doses, "dose", nil, "dose, e.g. oral-repeating:T4:100@0-29/1 (repeatable)")
}

// apply layers preset then explicit flags over a copy of cfg.
func (f *patientFlags) apply(cmd *cobra.Command, base *config.AppConfiguration) (*config.AppConfiguration, error) {
	cfg := *base
	if f.preset != "" {
		p := config.GetPreset(f.preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, config.ListPresets())
		}
		p.Apply(&cfg)
	}

	changed := cmd.Flags().Changed
	if changed("height") {
		cfg.Patient.Height = f.height
	}
	if changed("weight") {
		cfg.Patient.Weight = f.weight
	}
	if changed("sex") {
		sex, err := physiology.ParseSex(f.sex)
		if err != nil {
			return nil, err
		}
		cfg.Patient.Sex = sex
	}
	if changed("secretion-t4") {
		cfg.Secretion.T4 = f.secretionT4
	}
	if changed("secretion-t3") {
		cfg.Secretion.T3 = f.secretionT3
	}
	if changed("absorption-t4") {
		cfg.Absorption.T4 = f.absorptionT4
	}
	if changed("absorption-t3") {
		cfg.Absorption.T3 = f.absorptionT3
	}
	if changed("days") {
		cfg.Days = f.days
	}
	if changed("recalc") {
		cfg.RecalculateInitialConditions = f.recalculate
	}

	cfg.Doses = append([]dose.Dose(nil), base.Doses...)
	for _, spec := range f.doses {
		d, err := dose.Parse(spec)
		if err != nil {
			return nil, err
		}
		cfg.Doses = append(cfg.Doses, d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newRunCmd() *cobra.Command {
	var (
		pf           patientFlags
		continueFrom string
		label        string
		noSave       bool
		plot         string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			cfg, err := pf.apply(cmd, a.cfg)
			if err != nil {
				return err
			}
			req := cfg.Request()

			var parent string
			if continueFrom != "" {
				meta, err := a.store.Load(continueFrom)
				if err != nil {
					return err
				}
				if req.Seed, err = a.store.Seed(meta.ID); err != nil {
					return err
				}
				parent = meta.ID
			}

			a.log.Info().
				Float64("days", req.Days).
				Int("doses", len(req.Doses)).
				Str("continue_from", parent).
				Msg("starting run")

			res, err := a.runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			title := "thyrosim run"
			if !noSave {
				if err := a.store.Init(); err != nil {
					return err
				}
				id, err := a.store.Save(req, res, storage.SaveOptions{Label: label, Parent: parent})
				if err != nil {
					return err
				}
				title = "run " + id
			}

			fmt.Println(report.Summary(title, res))
			if plot != "" {
				return printPlot(res, plot)
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVar(&continueFrom, "continue-from", "", "seed from the final state of a stored run (id or prefix)")
	cmd.Flags().StringVar(&label, "label", "", "label stored with the run")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().StringVar(&plot, "plot", "", "plot a series after the run (t4, t3, tsh, ft4, ft3, log-tsh)")
	return cmd
}

func printPlot(res *run.Result, series string) error {
	graph, err := report.Plot(res, series, 80, 12)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(graph)
	return nil
}
