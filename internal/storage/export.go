package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/run"
)

// WriteCSV writes one row per recorded step: time, concentrations, then the
// raw pool amounts.
func WriteCSV(w io.Writer, res *run.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	for i := range res.Time {
		row := []string{
			formatFloat(res.Time[i]),
			formatFloat(res.T4[i]),
			formatFloat(res.T3[i]),
			formatFloat(res.TSH[i]),
			formatFloat(res.FT4[i]),
			formatFloat(res.FT3[i]),
		}
		if i < len(res.States) {
			for _, q := range res.States[i] {
				row = append(row, formatFloat(q))
			}
		} else {
			row = append(row, "", "", "")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV.
func ReadCSV(r io.Reader) (*run.Result, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty series")
	}

	n := len(records) - 1
	res := &run.Result{
		Time:   make([]float64, 0, n),
		T4:     make([]float64, 0, n),
		T3:     make([]float64, 0, n),
		TSH:    make([]float64, 0, n),
		FT4:    make([]float64, 0, n),
		FT3:    make([]float64, 0, n),
		States: make([]dynamo.State, 0, n),
	}
	for i, record := range records[1:] {
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		res.Time = append(res.Time, row[0])
		res.T4 = append(res.T4, row[1])
		res.T3 = append(res.T3, row[2])
		res.TSH = append(res.TSH, row[3])
		res.FT4 = append(res.FT4, row[4])
		res.FT3 = append(res.FT3, row[5])
		res.States = append(res.States, dynamo.State{row[6], row[7], row[8]})
	}
	return res, nil
}

// ExportData is the JSON export of a run.
type ExportData struct {
	Meta   *RunMetadata `json:"meta,omitempty"`
	Result *run.Result  `json:"result"`
}

func ExportJSON(w io.Writer, meta *RunMetadata, res *run.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Meta: meta, Result: res})
}
