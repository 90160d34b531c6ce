package detection

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Stage fixes where label substitution runs relative to filtering.
type Stage int

const (
	// AfterFilter substitutes labels on the kept detections only. The
	// allowlist then refers to model class names.
	AfterFilter Stage = iota
	// BeforeFilter substitutes first, so the allowlist refers to the
	// substituted names.
	BeforeFilter
)

func (s Stage) String() string {
	switch s {
	case AfterFilter:
		return "after_filter"
	case BeforeFilter:
		return "before_filter"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ParseStage parses the configuration name of a stage. Empty means AfterFilter.
func ParseStage(s string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "after_filter", "after":
		return AfterFilter, nil
	case "before_filter", "before":
		return BeforeFilter, nil
	default:
		return AfterFilter, errors.Errorf("unknown relabel stage %q", s)
	}
}

// Relabeler replaces class names using a fixed substitution table.
type Relabeler struct {
	Substitutions map[string]string
	Stage         Stage
}

// Apply returns a copy of dets with class names substituted. Confidence and
// boxes are carried over unchanged.
func (r Relabeler) Apply(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		if to, ok := r.Substitutions[d.ClassName]; ok {
			d = d.WithClassName(to)
		}
		out[i] = d
	}
	return out
}

// Pipeline is the post-inference stage: substitution and filtering in the
// order fixed by the relabeler's Stage.
type Pipeline struct {
	Policy    Policy
	Relabeler Relabeler
}

// Apply runs substitution and filtering over dets. The filter is the score
// filter followed by the class filter of the policy.
func (p Pipeline) Apply(dets []Detection) []Detection {
	relabel := p.Relabeler.Apply
	filter := Chain(ScoreFilter(p.Policy.Threshold), ClassFilter(p.Policy.Classes()...))
	if len(p.Relabeler.Substitutions) == 0 {
		return filter(dets)
	}
	if p.Relabeler.Stage == BeforeFilter {
		return Chain(relabel, filter)(dets)
	}
	return Chain(filter, relabel)(dets)
}
