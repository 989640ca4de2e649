// Package storage keeps a directory per solver run with its metadata and
// the history of the monitored particle.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/progress"
)

const (
	metadataFile = "metadata.json"
	historyFile  = "monitor.csv"
)

var historyHeader = []string{"step", "time", "dt", "x", "y", "z", "vx", "vy", "vz", "ax", "ay", "az"}

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
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Boundary   string    `json:"boundary"`
	Fluid      string    `json:"fluid"`
	Particle   int       `json:"monitor_particle"`
	Dt         float64   `json:"dt"`
	MaxStep    int       `json:"max_step"`
	Checkpoint string    `json:"checkpoint"`
	Restart    string    `json:"restart,omitempty"`

	Steps    int     `json:"steps"`
	LastStep int     `json:"last_step"`
	Time     float64 `json:"time"`
	FinalDt  float64 `json:"final_dt"`
	Stopped  bool    `json:"stopped"`
	Error    string  `json:"error,omitempty"`
	Finished bool    `json:"finished"`
}

// Outcome is how a run ended.
type Outcome struct {
	Steps    int
	LastStep int
	Time     float64
	Dt       float64
	Stopped  bool
	Err      error
}

// Run records one solver run. It is a progress.Monitor that appends every
// Snapshot to the run's history.
type Run struct {
	dir  string
	meta RunMetadata

	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	err  error
}

// Create starts a new run directory for cfg.
func (s *Store) Create(cfg *config.Config) (*Run, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	r := &Run{
		dir: dir,
		meta: RunMetadata{
			ID:         id,
			Timestamp:  time.Now(),
			Boundary:   cfg.Boundary.String(),
			Fluid:      cfg.Fluid.String(),
			Particle:   cfg.Monitor,
			Dt:         cfg.Dt,
			MaxStep:    cfg.MaxStep,
			Checkpoint: cfg.OutputFile,
			Restart:    cfg.Restart,
		},
	}
	if err := r.writeMetadata(); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, historyFile))
	if err != nil {
		return nil, err
	}
	r.file = f
	r.w = csv.NewWriter(f)
	if err := r.w.Write(historyHeader); err != nil {
		f.Close()
		return nil, err
	}
	r.w.Flush()
	return r, nil
}

func (r *Run) ID() string { return r.meta.ID }

func (r *Run) Dir() string { return r.dir }

func (r *Run) writeMetadata() error {
	f, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r.meta)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r *Run) Report(e progress.Event) {
	snap, ok := e.(progress.Snapshot)
	if !ok {
		return
	}
	row := []string{
		strconv.Itoa(snap.Step),
		formatFloat(snap.Time),
		formatFloat(snap.Dt),
	}
	for _, v := range []r3.Vec{snap.X, snap.V, snap.A} {
		row = append(row, formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.w == nil {
		return
	}
	if err := r.w.Write(row); err != nil {
		r.err = err
		logrus.Warnf("run %s: writing history: %v", r.meta.ID, err)
		return
	}
	r.w.Flush()
}

func (r *Run) ShouldStop(int) bool { return false }

// Finish records the outcome and closes the history.
func (r *Run) Finish(o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.meta.Steps = o.Steps
	r.meta.LastStep = o.LastStep
	r.meta.Time = o.Time
	r.meta.FinalDt = o.Dt
	r.meta.Stopped = o.Stopped
	r.meta.Finished = true
	if o.Err != nil {
		r.meta.Error = o.Err.Error()
	}

	var histErr error
	if r.w != nil {
		r.w.Flush()
		histErr = r.w.Error()
		if err := r.file.Close(); histErr == nil {
			histErr = err
		}
		r.w, r.file = nil, nil
	}
	if err := r.writeMetadata(); err != nil {
		return err
	}
	if histErr == nil {
		histErr = r.err
	}
	return histErr
}

// List returns every readable run, oldest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
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

// LoadHistory reads the monitored particle samples of a run.
func (s *Store) LoadHistory(runID string) ([]progress.Snapshot, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, historyFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []progress.Snapshot{}, nil
	}

	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	out := make([]progress.Snapshot, 0, len(records)-1)
	for line, rec := range records[1:] {
		step, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", historyFile, line+2, err)
		}
		var vals [11]float64
		for j := range vals {
			vals[j], err = strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", historyFile, line+2, err)
			}
		}
		out = append(out, progress.Snapshot{
			Step:     step,
			Time:     vals[0],
			Dt:       vals[1],
			Particle: meta.Particle,
			X:        r3.Vec{X: vals[2], Y: vals[3], Z: vals[4]},
			V:        r3.Vec{X: vals[5], Y: vals[6], Z: vals[7]},
			A:        r3.Vec{X: vals[8], Y: vals[9], Z: vals[10]},
		})
	}
	return out, nil
}
