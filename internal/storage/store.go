// Package storage persists experiment results as run directories:
//
//	<base>/<run id>/metadata.json          run summary
//	<base>/<run id>/config.yaml            the config the run used
//	<base>/<run id>/states.csv             one row per recorded step
//	<base>/<run id>/trajectory.msgpack.zst full episodes, zstd-compressed msgpack
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/experiment"
	"github.com/san-kum/fwcbf/internal/log"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile   = "metadata.json"
	configFile     = "config.yaml"
	statesFile     = "states.csv"
	trajectoryFile = "trajectory.msgpack.zst"
)

var stateHeader = []string{
	"episode", "t",
	"x1", "y1", "th1", "z1", "x2", "y2", "th2", "z2",
	"v1", "w1", "dz1", "v2", "w2", "dz2",
	"nominal_v1", "nominal_w1", "nominal_dz1",
	"h", "overridden",
}

type Store struct {
	baseDir string
	logger  *log.Logger
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) SetLogger(l *log.Logger) { s.logger = l }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	MaxSimTime float64            `json:"max_sim_time"`
	SafetyDist float64            `json:"safety_dist"`
	Barrier    string             `json:"barrier"`
	Ownship    string             `json:"ownship"`
	Intruder   string             `json:"intruder"`
	Summary    experiment.Summary `json:"summary"`
	Metrics    map[string]float64 `json:"metrics"`
	Wall       time.Duration      `json:"wall"`
}

// StateRow is one parsed line of states.csv.
type StateRow struct {
	Episode    int
	T          float64
	State      dynamo.JointState
	Applied    dynamo.JointAction
	Nominal    dynamo.SingleAction
	H          float64
	Overridden bool
}

// Save writes res under a new run directory and returns its id.
func (s *Store) Save(name string, res *experiment.Result) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.Unix())
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(s.baseDir, runID)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		runID = fmt.Sprintf("%s_%d_%d", name, now.Unix(), n)
	}
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	cfg := res.Config
	meta := RunMetadata{
		ID:         runID,
		Name:       name,
		Timestamp:  now,
		Seed:       cfg.Seed,
		Dt:         cfg.Env.Dt,
		MaxSimTime: cfg.Env.MaxSimTime,
		SafetyDist: cfg.Env.SafetyDist,
		Barrier:    cfg.Barrier.Kind,
		Ownship:    cfg.Ownship.Controller,
		Intruder:   cfg.Intruder.Controller,
		Summary:    res.Summary,
		Metrics:    meanMetrics(res.Episodes),
		Wall:       res.Wall,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), res.Episodes); err != nil {
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, trajectoryFile), res.Episodes); err != nil {
		return "", err
	}

	s.logger.Info("run saved", slog.String("id", runID), slog.Int("episodes", len(res.Episodes)))
	return runID, nil
}

func meanMetrics(episodes []*experiment.Episode) map[string]float64 {
	out := make(map[string]float64)
	if len(episodes) == 0 {
		return out
	}
	for _, ep := range episodes {
		for k, v := range ep.Metrics {
			out[k] += v
		}
	}
	for k := range out {
		out[k] /= float64(len(episodes))
	}
	return out
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

func writeStates(path string, episodes []*experiment.Episode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(stateHeader); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, ep := range episodes {
		for _, st := range ep.Steps {
			row := make([]string, 0, len(stateHeader))
			row = append(row, strconv.Itoa(ep.Index), ff(st.T))
			for _, v := range st.State.Vector() {
				row = append(row, ff(v))
			}
			for _, v := range st.Applied.A1.Vector() {
				row = append(row, ff(v))
			}
			for _, v := range st.Applied.A2.Vector() {
				row = append(row, ff(v))
			}
			for _, v := range st.Nominal.A1.Vector() {
				row = append(row, ff(v))
			}
			row = append(row, ff(st.H), strconv.FormatBool(st.Overridden))
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeTrajectory(path string, episodes []*experiment.Episode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(episodes); err != nil {
		return fmt.Errorf("failed to encode trajectory: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return f.Close()
}

// List returns the metadata of every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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
			s.logger.Warn("skipping unreadable run", slog.String("dir", entry.Name()), slog.Any("error", err))
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].Timestamp.After(runs[j].Timestamp)
		}
		return runs[i].ID > runs[j].ID
	})
	return runs, nil
}

func (s *Store) open(runID, name string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return f, err
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	f, err := s.open(runID, metadataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var meta RunMetadata
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	path := filepath.Join(s.baseDir, runID, configFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return config.Load(path)
}

func (s *Store) LoadStates(runID string) ([]StateRow, error) {
	f, err := s.open(runID, statesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(stateHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	if len(records) < 2 {
		return []StateRow{}, nil
	}

	rows := make([]StateRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseStateRow(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", runID, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseStateRow(rec []string) (StateRow, error) {
	var row StateRow
	ep, err := strconv.Atoi(rec[0])
	if err != nil {
		return row, err
	}
	row.Episode = ep

	var vals [19]float64
	for j := range vals {
		if vals[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
			return row, err
		}
	}
	row.Overridden, err = strconv.ParseBool(rec[20])
	if err != nil {
		return row, err
	}

	row.T = vals[0]
	row.State = dynamo.JointStateFromVector([8]float64(vals[1:9]))
	row.Applied.A1 = dynamo.SingleActionFromVector([3]float64(vals[9:12]))
	row.Applied.A2 = dynamo.SingleActionFromVector([3]float64(vals[12:15]))
	row.Nominal = dynamo.SingleActionFromVector([3]float64(vals[15:18]))
	row.H = vals[18]
	return row, nil
}

// LoadTrajectory decodes the full episodes of a run, steps included.
func (s *Store) LoadTrajectory(runID string) ([]*experiment.Episode, error) {
	f, err := s.open(runID, trajectoryFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var episodes []*experiment.Episode
	if err := msgpack.NewDecoder(zr).Decode(&episodes); err != nil {
		return nil, fmt.Errorf("failed to decode trajectory: %w", err)
	}
	return episodes, nil
}
