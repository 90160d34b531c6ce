package detection

import (
	"sort"
	"strings"
)

// Policy decides which detections are kept. A detection passes when its
// confidence is at least Threshold and, if Allowed is non-empty, its class
// name is in Allowed.
type Policy struct {
	Threshold float64
	Allowed   map[string]struct{}
}

// NewPolicy builds a Policy from a threshold and an optional class allowlist.
func NewPolicy(threshold float64, classes ...string) Policy {
	p := Policy{Threshold: threshold}
	if len(classes) > 0 {
		p.Allowed = make(map[string]struct{}, len(classes))
		for _, c := range classes {
			p.Allowed[c] = struct{}{}
		}
	}
	return p
}

// Allows reports whether d passes the policy.
func (p Policy) Allows(d Detection) bool {
	if d.Confidence() < p.Threshold {
		return false
	}
	if len(p.Allowed) == 0 {
		return true
	}
	_, ok := p.Allowed[d.ClassName]
	return ok
}

// Classes returns the allowlist in sorted order, or nil when every class passes.
func (p Policy) Classes() []string {
	if len(p.Allowed) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.Allowed))
	for c := range p.Allowed {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (p Policy) String() string {
	if len(p.Allowed) == 0 {
		return "all classes"
	}
	return strings.Join(p.Classes(), ",")
}

// Filter returns the detections that pass p, in their original order.
// The input slice is not modified.
func Filter(dets []Detection, p Policy) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if p.Allows(d) {
			out = append(out, d)
		}
	}
	return out
}

// Postprocessor transforms a detection list.
type Postprocessor func([]Detection) []Detection

// ScoreFilter keeps detections whose confidence is at least threshold.
func ScoreFilter(threshold float64) Postprocessor {
	return func(in []Detection) []Detection {
		return Filter(in, Policy{Threshold: threshold})
	}
}

// ClassFilter keeps detections whose class is one of classes. No classes
// means no restriction.
func ClassFilter(classes ...string) Postprocessor {
	p := NewPolicy(0, classes...)
	return func(in []Detection) []Detection {
		return Filter(in, p)
	}
}

// Chain applies postprocessors left to right.
func Chain(pps ...Postprocessor) Postprocessor {
	return func(in []Detection) []Detection {
		out := in
		for _, pp := range pps {
			out = pp(out)
		}
		return out
	}
}
