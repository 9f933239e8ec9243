// Package store persists simulation runs and tuning sessions on disk.
// Each run gets its own directory with a JSON metadata file and CSV
// sample data, so results stay inspectable with ordinary tools.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/theSadeQ/dip-smc-pso/internal/cost"
	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/pso"
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

var sampleHeader = []string{"time", "x", "xdot", "theta1", "omega1", "theta2", "omega2", "u"}

type RunMetadata struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Model       string          `json:"model"`
	Integrator  string          `json:"integrator"`
	Controller  string          `json:"controller"`
	Gains       []float64       `json:"gains"`
	Seed        int64           `json:"seed"`
	Dt          float64         `json:"dt"`
	Duration    float64         `json:"duration"`
	Status      string          `json:"status"`
	FatalKind   string          `json:"fatal_kind,omitempty"`
	Violations  int             `json:"violations"`
	StepsTaken  int             `json:"steps_taken"`
	EnergyDrift float64         `json:"energy_drift"`
	Cost        *cost.Breakdown `json:"cost,omitempty"`
}

// SaveRun writes one run directory: metadata.json plus samples.csv with
// one row per control period. Returns the run ID.
func (s *Store) SaveRun(meta RunMetadata, result *dynamo.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s_%d", meta.Controller, meta.Model, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Status = result.Status.String()
	meta.FatalKind = result.FatalKind
	meta.Violations = len(result.Violations)
	meta.StepsTaken = result.StepsTaken
	meta.EnergyDrift = result.EnergyDrift

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, "samples.csv"), result.Trajectory); err != nil {
		return "", err
	}
	return runID, nil
}

func writeSamples(path string, traj dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(sampleHeader); err != nil {
		return err
	}
	for i, x := range traj.States {
		row := make([]string, 0, len(sampleHeader))
		row = append(row, fmtF(traj.Times[i]))
		for _, v := range x {
			row = append(row, fmtF(v))
		}
		// controls lag states by one sample; the initial state has no force
		if i > 0 && i-1 < len(traj.Controls) {
			row = append(row, fmtF(traj.Controls[i-1].Force()))
		} else {
			row = append(row, "0")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// TuneMetadata records a completed optimization session.
type TuneMetadata struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Controller string    `json:"controller"`
	BestGains  []float64 `json:"best_gains"`
	BestCost   float64   `json:"best_cost"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	Seed       int64     `json:"seed"`
}

// SaveTuning writes the session metadata plus a convergence.csv with the
// per-iteration best and mean costs.
func (s *Store) SaveTuning(meta TuneMetadata, result *pso.TuneResult) (string, error) {
	id := fmt.Sprintf("tune_%s_%d", meta.Controller, time.Now().Unix())
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	meta.ID = id
	meta.Timestamp = time.Now()
	meta.BestGains = result.BestGains
	meta.BestCost = result.BestCost
	meta.Iterations = result.Iterations
	meta.Converged = result.Converged

	if err := writeJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(dir, "convergence.csv"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"iter", "best_cost", "mean_cost"}); err != nil {
		return "", err
	}
	for _, st := range result.History {
		row := []string{strconv.Itoa(st.Iter), fmtF(st.BestCost), fmtF(st.MeanCost)}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return id, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// List returns metadata for every run directory under the base dir,
// skipping entries that do not parse.
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

// LoadSamples reads samples.csv back as times, states and forces.
func (s *Store) LoadSamples(runID string) ([]float64, []dynamo.State, []float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([]dynamo.State, 0, len(records)-1)
	forces := make([]float64, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < dynamo.StateDim+2 {
			continue
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			continue
		}
		x := make(dynamo.State, dynamo.StateDim)
		ok := true
		for i := 0; i < dynamo.StateDim; i++ {
			v, err := strconv.ParseFloat(rec[1+i], 64)
			if err != nil {
				ok = false
				break
			}
			x[i] = v
		}
		if !ok {
			continue
		}
		u, err := strconv.ParseFloat(rec[1+dynamo.StateDim], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
		states = append(states, x)
		forces = append(forces, u)
	}
	return times, states, forces, nil
}
