package actions

import (
	"fmt"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// JointIndex flattens (ownship, intruder) action pairs into [0, N1*N2).
type JointIndex struct {
	own      *Catalog
	intruder *Catalog
}

func NewJointIndex(own, intruder *Catalog) *JointIndex {
	return &JointIndex{own: own, intruder: intruder}
}

// NewSymmetricJointIndex indexes pairs drawn from the same catalog.
func NewSymmetricJointIndex(c *Catalog) *JointIndex {
	return NewJointIndex(c, c)
}

func (j *JointIndex) Own() *Catalog      { return j.own }
func (j *JointIndex) Intruder() *Catalog { return j.intruder }

func (j *JointIndex) Len() int { return j.own.Len() * j.intruder.Len() }

func (j *JointIndex) Index(ac dynamo.JointAction) (int, error) {
	i1, err := j.own.Index(ac.A1)
	if err != nil {
		return 0, fmt.Errorf("ownship: %w", err)
	}
	i2, err := j.intruder.Index(ac.A2)
	if err != nil {
		return 0, fmt.Errorf("intruder: %w", err)
	}
	return i1*j.intruder.Len() + i2, nil
}

func (j *JointIndex) Action(idx int) (dynamo.JointAction, error) {
	if idx < 0 || idx >= j.Len() {
		return dynamo.JointAction{}, fmt.Errorf("%w: joint index %d not in [0, %d)", ErrIndexOutOfRange, idx, j.Len())
	}
	n2 := j.intruder.Len()
	a1, _ := j.own.Action(idx / n2)
	a2, _ := j.intruder.Action(idx % n2)
	return dynamo.JointAction{A1: a1, A2: a2}, nil
}
