package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/onsi/gomega"
	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/storage"
)

const scenarioYAML = `
name: smoke
description: collision and stationary episodes
steps:
  - name: crash
    preset: collision
    save_as: crash
  - name: from-file
    config: collision.yaml
    safety_dist: 1
  - preset: head_on_stationary
    episodes: 2
    workers: 2
sweeps:
  - name: safety
    preset: collision
    param: safety_dist
    values: [1, 5]
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := config.Save(filepath.Join(dir, "collision.yaml"), config.GetPreset("collision")); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAll(t *testing.T) {
	g := gomega.NewWithT(t)
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(sc.Name).To(gomega.Equal("smoke"))

	store := storage.New(t.TempDir())
	steps, sweeps, err := RunAll(context.Background(), sc, Options{Store: store})
	g.Expect(err).NotTo(gomega.HaveOccurred())

	g.Expect(steps).To(gomega.HaveLen(3))
	g.Expect(steps[0].Name).To(gomega.Equal("crash"))
	g.Expect(steps[0].Result.Summary.Collisions).To(gomega.Equal(1))
	g.Expect(steps[0].RunID).NotTo(gomega.BeEmpty())

	// a 1m safety distance leaves the 2m gap clear
	g.Expect(steps[1].Result.Summary.Collisions).To(gomega.BeZero())
	g.Expect(steps[1].Result.Summary.Timeouts).To(gomega.Equal(1))
	g.Expect(steps[1].RunID).To(gomega.BeEmpty())

	g.Expect(steps[2].Name).To(gomega.Equal("step3"))
	g.Expect(steps[2].Result.Episodes).To(gomega.HaveLen(2))

	clean, collided := CollisionCounts(steps)
	g.Expect(clean).To(gomega.Equal(2))
	g.Expect(collided).To(gomega.Equal(1))

	g.Expect(sweeps).To(gomega.HaveLen(1))
	g.Expect(sweeps[0]).To(gomega.HaveLen(2))
	g.Expect(sweeps[0][0].Summary.Collisions).To(gomega.BeZero())
	g.Expect(sweeps[0][1].Summary.Collisions).To(gomega.Equal(1))

	runs, err := store.List()
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(runs).To(gomega.HaveLen(1))
	g.Expect(runs[0].Name).To(gomega.Equal("crash"))
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "name: nothing\n"},
		{"both sources", "steps:\n  - preset: collision\n    config: collision.yaml\n"},
		{"no source", "steps:\n  - episodes: 3\n"},
		{"bad sweep param", "sweeps:\n  - preset: collision\n    param: gravity\n    values: [1]\n"},
		{"sweep without values", "sweeps:\n  - preset: collision\n    param: lambda\n"},
		{"not yaml", "steps: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			if !errors.Is(err, ErrInvalidScenario) {
				t.Errorf("expected ErrInvalidScenario, got %v", err)
			}
		})
	}
}

func TestStepConfig_Overrides(t *testing.T) {
	g := gomega.NewWithT(t)
	seed := int64(9)
	sc := &Scenario{}

	cfg, err := sc.StepConfig(ScenarioStep{
		Preset:    "random",
		Episodes:  3,
		Seed:      &seed,
		Selection: "nearest_safe",
		Lambda:    0.5,
	})
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(cfg.Episodes).To(gomega.Equal(3))
	g.Expect(cfg.Seed).To(gomega.Equal(int64(9)))
	g.Expect(cfg.Barrier.Selection).To(gomega.Equal("nearest_safe"))
	g.Expect(cfg.Barrier.Lambda).To(gomega.Equal(0.5))

	// presets are copied, not shared
	g.Expect(config.GetPreset("random").Episodes).To(gomega.Equal(20))

	_, err = sc.StepConfig(ScenarioStep{Preset: "nope"})
	g.Expect(err).To(gomega.MatchError(ErrInvalidScenario))
}

func TestRunSweep_UnknownPreset(t *testing.T) {
	_, err := RunSweep(context.Background(), Sweep{Preset: "nope", Param: "lambda", Values: []float64{0.5}}, Options{})
	if !errors.Is(err, ErrInvalidScenario) {
		t.Errorf("expected ErrInvalidScenario, got %v", err)
	}
}
