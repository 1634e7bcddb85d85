package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/thyrosim/internal/analysis"
	"github.com/san-kum/thyrosim/internal/report"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		series    string
		tolerance float64
		portrait  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "rhythm and settling analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, res, err := current.store.LoadResult(args[0])
			if err != nil {
				return err
			}
			data, err := report.Select(res, series)
			if err != nil {
				return err
			}

			period, err := analysis.DominantPeriod(data, res.Dt)
			if err != nil {
				return err
			}

			fmt.Printf("frequency analysis: %s\n", meta.ID)
			fmt.Printf("series: %s\n\n", series)

			ps := analysis.PowerSpectrum(data)
			plotData := ps[1 : max(2, len(ps)/4)]
			fmt.Println(asciigraph.Plot(plotData,
				asciigraph.Height(12),
				asciigraph.Width(80),
				asciigraph.Caption(fmt.Sprintf("power spectrum (%s)", series)),
			))
			fmt.Println()

			fmt.Printf("dominant period: %.3f days (%.1f h)\n", period, period*24)
			fmt.Printf("settling time (%.0f%%): %.2f days\n", tolerance*100, analysis.SettlingTime(res.Time, data, tolerance))

			if portrait {
				p, err := analysis.NewPortrait("FT4 (ng/L)", res.FT4, "log10 TSH", res.LogTSH())
				if err != nil {
					return err
				}
				fmt.Println()
				fmt.Print(p.ASCII(60, 16))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&series, "series", "tsh", "series to analyze")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0.02, "relative band for settling time")
	cmd.Flags().BoolVar(&portrait, "portrait", false, "draw the FT4 / log TSH set-point portrait")
	return cmd
}
