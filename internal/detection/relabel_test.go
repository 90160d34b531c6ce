package detection

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{in: "", want: AfterFilter},
		{in: "after_filter", want: AfterFilter},
		{in: "BEFORE", want: BeforeFilter},
		{in: "before_filter", want: BeforeFilter},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseStage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipeline_StageOrdering(t *testing.T) {
	box := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	in := []Detection{
		MustNew("person", 0.9, box),
		MustNew("car", 0.8, box),
	}

	tests := []struct {
		name    string
		stage   Stage
		allowed []string
		want    []Detection
	}{
		{
			name:    "after filter matches model names",
			stage:   AfterFilter,
			allowed: []string{"person"},
			want:    []Detection{MustNew("driver", 0.9, box)},
		},
		{
			name:    "after filter ignores display names",
			stage:   AfterFilter,
			allowed: []string{"driver"},
			want:    []Detection{},
		},
		{
			name:    "before filter matches display names",
			stage:   BeforeFilter,
			allowed: []string{"driver"},
			want:    []Detection{MustNew("driver", 0.9, box)},
		},
		{
			name:    "before filter drops model names",
			stage:   BeforeFilter,
			allowed: []string{"person"},
			want:    []Detection{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Pipeline{
				Policy: NewPolicy(0.5, tt.allowed...),
				Relabeler: Relabeler{
					Substitutions: map[string]string{"person": "driver"},
					Stage:         tt.stage,
				},
			}
			got := p.Apply(in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPipeline_MatchesPolicyFilter(t *testing.T) {
	policies := []Policy{
		NewPolicy(0),
		NewPolicy(0.5),
		NewPolicy(0.5, "person"),
		NewPolicy(0.96, "dog"),
		NewPolicy(0.3, "person", "truck"),
	}
	for _, policy := range policies {
		got := Pipeline{Policy: policy}.Apply(sample())
		if diff := cmp.Diff(Filter(sample(), policy), got); diff != "" {
			t.Errorf("Apply() with %v mismatch (-want +got):\n%s", policy, diff)
		}
	}
}

func TestParseStage_ErrorNamesInput(t *testing.T) {
	_, err := ParseStage("sometimes")
	if err == nil || !strings.Contains(err.Error(), `"sometimes"`) {
		t.Errorf("ParseStage() error = %v, want it to name the input", err)
	}
}

func TestRelabeler_DoesNotModifyInput(t *testing.T) {
	box := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	in := []Detection{MustNew("person", 0.9, box)}

	out := Relabeler{Substitutions: map[string]string{"person": "Ayusman"}}.Apply(in)

	if in[0].ClassName != "person" {
		t.Errorf("input relabeled to %q", in[0].ClassName)
	}
	if out[0].ClassName != "Ayusman" {
		t.Errorf("output class = %q, want Ayusman", out[0].ClassName)
	}
}
