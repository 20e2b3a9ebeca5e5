package env

import (
	"fmt"
	"time"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// Snapshot is the complete episode state of a CollisionEnv.
type Snapshot struct {
	Config Config             `json:"config" msgpack:"config"`
	X1     dynamo.SingleState `json:"x1" msgpack:"x1"`
	X2     dynamo.SingleState `json:"x2" msgpack:"x2"`
	T      float64            `json:"t" msgpack:"t"`
	Steps  int                `json:"steps" msgpack:"steps"`
	Stats  Stats              `json:"stats" msgpack:"stats"`
	Ready  bool               `json:"ready" msgpack:"ready"`
}

func (e *CollisionEnv) Snapshot() Snapshot {
	return Snapshot{
		Config: e.cfg,
		X1:     e.x1,
		X2:     e.x2,
		T:      e.t,
		Steps:  e.steps,
		Stats:  e.stats,
		Ready:  e.ready,
	}
}

// Restore replaces the episode with s. Pacing restarts as if s had just
// been reset.
func (e *CollisionEnv) Restore(s Snapshot) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}
	if !s.X1.IsValid() || !s.X2.IsValid() {
		return fmt.Errorf("%w: snapshot states must be finite", ErrInvalidConfig)
	}
	e.cfg = s.Config
	e.x1 = s.X1
	e.x2 = s.X2
	e.t = s.T
	e.steps = s.Steps
	e.stats = s.Stats
	e.ready = s.Ready
	e.lastUpdate = e.now()
	return nil
}

func (e *CollisionEnv) MarshalBinary() ([]byte, error) {
	return dynamo.Marshal(e.Snapshot())
}

func (e *CollisionEnv) UnmarshalBinary(data []byte) error {
	var s Snapshot
	if err := dynamo.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("env: decode snapshot: %w", err)
	}
	if e.now == nil {
		e.now = time.Now
		e.sleep = time.Sleep
	}
	return e.Restore(s)
}
