package control

import (
	"fmt"

	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/dynamo"
)

// Hold always commands the same action.
type Hold struct {
	action dynamo.SingleAction
}

// NewHold checks that a is in the catalog so the commanded action can be
// indexed.
func NewHold(a dynamo.SingleAction, catalog *actions.Catalog) (*Hold, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidConfig)
	}
	if !catalog.Contains(a) {
		return nil, fmt.Errorf("%w: action %s not in %s", ErrInvalidConfig, a, catalog)
	}
	return &Hold{action: a}, nil
}

func (h *Hold) Calc(dynamo.SingleState) dynamo.SingleAction { return h.action }

// Set replaces the commanded action.
func (h *Hold) Set(a dynamo.SingleAction) { h.action = a }

func (h *Hold) String() string { return fmt.Sprintf("Hold(%s)", h.action) }
