package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/samplempc/internal/dynamo"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Task         string             `json:"task"`
	Algorithm    string             `json:"algorithm"`
	Params       map[string]float64 `json:"params"`
	Timestamp    time.Time          `json:"timestamp"`
	Seed         uint64             `json:"seed"`
	Timestep     float64            `json:"timestep"`
	Frequency    float64            `json:"frequency"`
	Duration     float64            `json:"duration"`
	RealTime     bool               `json:"real_time"`
	ControlSteps int                `json:"control_steps"`
	Overruns     int                `json:"overruns"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Run is the per-control-step trace stored in states.csv.
type Run struct {
	Times     []float64
	States    [][]float64
	Controls  [][]float64
	PlanCosts []float64
}

// Save writes metadata.json and states.csv under a fresh run id, which it
// returns. ID, Timestamp, ControlSteps, Overruns and Metrics are filled from
// the result.
func (s *Store) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Task, uuid.NewString()[:8])
	meta.Timestamp = time.Now()
	meta.ControlSteps = len(result.States)
	meta.Overruns = result.Overruns
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := writeStates(w, result); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeStates(w *csv.Writer, result *dynamo.Result) error {
	if len(result.States) == 0 {
		return nil
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
	}
	for i := 0; i < numControls; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	header = append(header, "plan_cost")

	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		for j := 0; j < numControls; j++ {
			val := 0.0
			if i < len(result.Controls) && j < len(result.Controls[i]) {
				val = result.Controls[i][j]
			}
			row = append(row, formatFloat(val))
		}
		cost := "NaN"
		if i < len(result.PlanCosts) {
			cost = formatFloat(result.PlanCosts[i])
		}
		row = append(row, cost)

		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// List returns stored runs, newest first.
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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadRun reads states.csv back, splitting columns by their header prefix.
func (s *Store) LoadRun(runID string) (*Run, error) {
	file, err := os.Open(s.CSVPath(runID))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	run := &Run{}
	if len(records) < 2 {
		return run, nil
	}

	header := records[0]
	for _, record := range records[1:] {
		if len(record) != len(header) {
			continue
		}
		var x, u []float64
		for j, field := range record {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", runID, len(run.Times)+1, header[j], err)
			}
			switch col := header[j]; {
			case col == "time":
				run.Times = append(run.Times, val)
			case col == "plan_cost":
				run.PlanCosts = append(run.PlanCosts, val)
			case strings.HasPrefix(col, "x"):
				x = append(x, val)
			case strings.HasPrefix(col, "u"):
				u = append(u, val)
			}
		}
		run.States = append(run.States, x)
		run.Controls = append(run.Controls, u)
	}

	return run, nil
}

func (s *Store) CSVPath(runID string) string {
	return filepath.Join(s.baseDir, runID, "states.csv")
}
