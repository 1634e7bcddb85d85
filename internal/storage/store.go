package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/metrics"
	"github.com/san-kum/thyrosim/internal/physiology"
	"github.com/san-kum/thyrosim/internal/run"
)

var (
	ErrNotFound  = errors.New("storage: run not found")
	ErrAmbiguous = errors.New("storage: run id prefix is ambiguous")
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
)

var seriesHeader = []string{"time", "t4", "t3", "tsh", "ft4", "ft3", "q1", "q4", "q7"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a saved run. QFinal seeds continuation runs.
type RunMetadata struct {
	ID           string               `json:"id"`
	Label        string               `json:"label,omitempty"`
	Parent       string               `json:"parent,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
	Patient      *physiology.Profile  `json:"patient,omitempty"`
	Scaling      physiology.Scaling   `json:"scaling"`
	Secretion    physiology.Secretion `json:"secretion"`
	Absorption   dose.Absorption      `json:"absorption"`
	Doses        []dose.Dose          `json:"doses"`
	Days         float64              `json:"days"`
	Dt           float64              `json:"dt"`
	Steps        int                  `json:"steps"`
	Equilibrated bool                 `json:"equilibrated"`
	Seeded       bool                 `json:"seeded"`
	Q0           dynamo.State         `json:"q0"`
	QFinal       dynamo.State         `json:"q_final"`
	Summary      metrics.Summary      `json:"summary"`
}

// SaveOptions annotate a saved run.
type SaveOptions struct {
	Label  string
	Parent string
}

// Save writes res under a new run id. The series is written before the
// metadata; on any failure the run directory is removed.
func (s *Store) Save(req run.Request, res *run.Result, opts SaveOptions) (_ string, err error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(runDir)
		}
	}()

	meta := RunMetadata{
		ID:           runID,
		Label:        opts.Label,
		Parent:       opts.Parent,
		Timestamp:    time.Now().UTC(),
		Patient:      req.Profile,
		Scaling:      res.Scaling,
		Secretion:    req.Secretion,
		Absorption:   req.Absorption,
		Doses:        req.Doses,
		Days:         res.Days,
		Dt:           res.Dt,
		Steps:        res.Len(),
		Equilibrated: res.Equilibrated,
		Seeded:       res.Seeded,
		Q0:           res.Initial,
		QFinal:       res.Final,
		Summary:      res.Summary(),
	}
	if meta.Doses == nil {
		meta.Doses = []dose.Dose{}
	}

	err = writeFile(filepath.Join(runDir, seriesFile), func(w io.Writer) error {
		return WriteCSV(w, res)
	})
	if err != nil {
		return "", fmt.Errorf("write series: %w", err)
	}
	if err = writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writeFile creates path and reports the first of the write and close errors.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

// List returns saved runs, oldest first. Unreadable entries are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.readMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// Resolve expands a unique id prefix into a full run id.
func (s *Store) Resolve(prefix string) (string, error) {
	if prefix == "" || strings.ContainsAny(prefix, `/\.`) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, prefix)
	}
	if _, err := uuid.Parse(prefix); err == nil {
		if _, err := os.Stat(filepath.Join(s.baseDir, prefix, metadataFile)); err == nil {
			return prefix, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	var match string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
		}
		match = entry.Name()
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return match, nil
}

func (s *Store) Load(id string) (*RunMetadata, error) {
	runID, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}
	return s.readMetadata(runID)
}

func (s *Store) readMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Seed returns the final state of a saved run for use as run.Request.Seed.
func (s *Store) Seed(id string) (dynamo.State, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if len(meta.QFinal) != 3 {
		return nil, dynamo.InvalidParameter("run %s has no final state", meta.ID)
	}
	return meta.QFinal.Clone(), nil
}

// LoadResult rebuilds a run.Result from a saved run.
func (s *Store) LoadResult(id string) (*RunMetadata, *run.Result, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, meta.ID, seriesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	res, err := ReadCSV(file)
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", meta.ID, err)
	}
	res.Initial = meta.Q0
	res.Final = meta.QFinal
	res.Scaling = meta.Scaling
	res.Days = meta.Days
	res.Dt = meta.Dt
	res.Equilibrated = meta.Equilibrated
	res.Seeded = meta.Seeded
	return meta, res, nil
}

func (s *Store) Delete(id string) error {
	runID, err := s.Resolve(id)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseRow(record []string) ([]float64, error) {
	if len(record) != len(seriesHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(seriesHeader), len(record))
	}
	row := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
