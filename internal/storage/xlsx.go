package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	episodesSheet = "Episodes"
	stepsSheet    = "Steps"
)

// ExportXLSX writes a workbook for runID to path with the run summary, one
// row per episode and one row per recorded step.
func (s *Store) ExportXLSX(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	episodes, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("closing workbook", slog.Any("error", err))
		}
	}()

	for _, name := range []string{summarySheet, episodesSheet, stepsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	summary := [][]any{
		{"run", meta.ID},
		{"timestamp", meta.Timestamp.Format("2006-01-02 15:04:05")},
		{"barrier", meta.Barrier},
		{"ownship", meta.Ownship},
		{"intruder", meta.Intruder},
		{"dt", meta.Dt},
		{"safety_dist", meta.SafetyDist},
		{"episodes", meta.Summary.Episodes},
		{"collisions", meta.Summary.Collisions},
		{"goals", meta.Summary.Goals},
		{"timeouts", meta.Summary.Timeouts},
		{"overrides", meta.Summary.Overrides},
		{"min_separation", meta.Summary.MinSeparation},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	epHeader := []any{"episode", "cause", "t", "overrides", "dist_to_goal1", "dist_to_goal2", "dist_to_veh", "steps"}
	if err := f.SetSheetRow(episodesSheet, "A1", &epHeader); err != nil {
		return err
	}
	stepHeader := make([]any, len(stateHeader))
	for i, h := range stateHeader {
		stepHeader[i] = h
	}
	if err := f.SetSheetRow(stepsSheet, "A1", &stepHeader); err != nil {
		return err
	}

	stepRow := 2
	for i, ep := range episodes {
		row := []any{ep.Index, ep.Cause, ep.T, ep.Overrides,
			ep.Stats.DistToGoal1, ep.Stats.DistToGoal2, ep.Stats.DistToVeh, len(ep.Steps)}
		if err := f.SetSheetRow(episodesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}

		for _, st := range ep.Steps {
			v := st.State.Vector()
			a1, a2, n1 := st.Applied.A1, st.Applied.A2, st.Nominal.A1
			row := []any{ep.Index, st.T,
				v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7],
				a1.V, a1.W, a1.Dz, a2.V, a2.W, a2.Dz,
				n1.V, n1.W, n1.Dz,
				st.H, st.Overridden}
			if err := f.SetSheetRow(stepsSheet, fmt.Sprintf("A%d", stepRow), &row); err != nil {
				return err
			}
			stepRow++
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return err
	}
	s.logger.Info("workbook exported", slog.String("id", runID), slog.String("path", path))
	return nil
}
