package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/thyrosim/internal/config"
	"github.com/san-kum/thyrosim/internal/report"
	"github.com/san-kum/thyrosim/internal/storage"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := current.store.List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				patient := "-"
				if r.Patient != nil {
					patient = fmt.Sprintf("%s %.2fm %.0fkg", r.Patient.Sex, r.Patient.Height, r.Patient.Weight)
				}
				rows = append(rows, []string{
					shortID(r.ID),
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					patient,
					fmt.Sprintf("%g", r.Days),
					fmt.Sprintf("%d", len(r.Doses)),
					shortID(r.Parent),
					r.Label,
				})
			}
			fmt.Println(report.Table([]string{"ID", "TIME", "PATIENT", "DAYS", "DOSES", "PARENT", "LABEL"}, rows))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, res, err := current.store.LoadResult(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}

			fmt.Println(report.Summary("run "+meta.ID, res))
			fmt.Printf("q0:      %v\n", meta.Q0)
			fmt.Printf("q_final: %v\n", meta.QFinal)
			if meta.Parent != "" {
				fmt.Printf("parent:  %s\n", meta.Parent)
			}
			for _, d := range meta.Doses {
				fmt.Printf("dose:    %s\n", d)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print metadata as JSON")
	return cmd
}

func newPlotCmd() *cobra.Command {
	var series []string
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot hormone levels of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, res, err := current.store.LoadResult(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("samples: %d\n\n", res.Len())

			for _, name := range series {
				if strings.Contains(name, "+") {
					graph, err := report.PlotMany(res, strings.Split(name, "+"), 80, 12)
					if err != nil {
						return err
					}
					fmt.Println(graph)
					fmt.Println()
					continue
				}
				if err := printPlot(res, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&series, "series", []string{"t4", "t3", "tsh"}, "series to plot; join with + to overlay")
	return cmd
}

func output(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func newExportCSVCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := current.store.LoadResult(args[0])
			if err != nil {
				return err
			}
			w, closeFn, err := output(out)
			if err != nil {
				return err
			}
			if err := storage.WriteCSV(w, res); err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newExportJSONCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, res, err := current.store.LoadResult(args[0])
			if err != nil {
				return err
			}
			w, closeFn, err := output(out)
			if err != nil {
				return err
			}
			if err := storage.ExportJSON(w, meta, res); err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := current.store.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := current.store.Delete(id); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", id)
			return nil
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list patient presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0)
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				rows = append(rows, []string{
					name,
					fmt.Sprintf("%s %.2fm %.0fkg", p.Patient.Sex, p.Patient.Height, p.Patient.Weight),
					fmt.Sprintf("%g/%g", p.Secretion.T4, p.Secretion.T3),
					fmt.Sprintf("%g/%g", p.Absorption.T4, p.Absorption.T3),
					p.Description,
				})
			}
			fmt.Println(report.Table([]string{"PRESET", "PATIENT", "SECRETION %", "ABSORPTION %", "DESCRIPTION"}, rows))
			return nil
		},
	}
}
