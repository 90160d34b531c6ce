package detector

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/ayusman/detecta/internal/detection"
)

// candidate is a decoded prediction before suppression.
type candidate struct {
	classID int
	score   float64
	box     detection.Box
}

// outputLayout is the arrangement of a YOLO output tensor.
type outputLayout int

const (
	// layoutAuto infers the layout from the shape and class count.
	layoutAuto outputLayout = iota
	// layoutAttributeMajor is [1, 4+C, N]: v8 and later, no objectness.
	layoutAttributeMajor
	// layoutRowMajor is [1, N, 5+C]: v5, with objectness.
	layoutRowMajor
)

// decodeParams maps network coordinates back to the source frame.
type decodeParams struct {
	threshold  float64
	scaleX     float64
	scaleY     float64
	frameW     int
	frameH     int
	layout     outputLayout
	numClasses int // 0 when unknown
}

// decodeYOLO parses a raw YOLO output tensor in the layout named by
// p.layout, or inferred when that is layoutAuto.
func decodeYOLO(data []float32, shape []int, p decodeParams) ([]candidate, error) {
	dims := shape
	if len(dims) == 3 {
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return nil, errors.Errorf("unexpected output shape %v", shape)
	}
	rows, cols := dims[0], dims[1]
	if len(data) < rows*cols {
		return nil, errors.Errorf("output has %d values, shape %v needs %d", len(data), shape, rows*cols)
	}

	layout := p.layout
	if layout == layoutAuto {
		layout = inferLayout(rows, cols, p.numClasses)
	}
	if layout == layoutAttributeMajor {
		return decodeAttributeMajor(data, rows, cols, p), nil
	}
	return decodeRowMajor(data, rows, cols, p), nil
}

// inferLayout matches the axes against the known class count. Without one,
// or when both axes match, the shorter axis is taken as the attributes.
func inferLayout(rows, cols, numClasses int) outputLayout {
	if numClasses > 0 {
		attrMajor := rows == 4+numClasses
		rowMajor := cols == 5+numClasses
		switch {
		case attrMajor && !rowMajor:
			return layoutAttributeMajor
		case rowMajor && !attrMajor:
			return layoutRowMajor
		}
	}
	if rows < cols {
		return layoutAttributeMajor
	}
	return layoutRowMajor
}

func decodeAttributeMajor(data []float32, attrs, n int, p decodeParams) []candidate {
	numClasses := attrs - 4
	if numClasses <= 0 {
		return nil
	}
	var out []candidate
	for i := 0; i < n; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := data[(4+c)*n+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < p.threshold {
			continue
		}
		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		if c, ok := makeCandidate(best, float64(bestScore), cx, cy, w, h, p); ok {
			out = append(out, c)
		}
	}
	return out
}

func decodeRowMajor(data []float32, n, attrs int, p decodeParams) []candidate {
	numClasses := attrs - 5
	if numClasses <= 0 {
		return nil
	}
	var out []candidate
	for i := 0; i < n; i++ {
		row := data[i*attrs : (i+1)*attrs]
		obj := row[4]
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := row[5+c]; s > bestScore {
				best, bestScore = c, s
			}
		}
		score := float64(obj * bestScore)
		if best < 0 || score < p.threshold {
			continue
		}
		if c, ok := makeCandidate(best, score, row[0], row[1], row[2], row[3], p); ok {
			out = append(out, c)
		}
	}
	return out
}

func makeCandidate(classID int, score float64, cx, cy, w, h float32, p decodeParams) (candidate, bool) {
	if score > 1 {
		score = 1
	}
	x1 := (float64(cx) - float64(w)/2) * p.scaleX
	y1 := (float64(cy) - float64(h)/2) * p.scaleY
	x2 := (float64(cx) + float64(w)/2) * p.scaleX
	y2 := (float64(cy) + float64(h)/2) * p.scaleY

	box := detection.Box{
		X1: int(math.Round(x1)),
		Y1: int(math.Round(y1)),
		X2: int(math.Round(x2)),
		Y2: int(math.Round(y2)),
	}.Clamp(p.frameW, p.frameH)
	if !box.Valid() {
		return candidate{}, false
	}
	return candidate{classID: classID, score: score, box: box}, true
}

// suppress runs greedy per-class non-maximum suppression and returns the
// survivors in descending score order.
func suppress(cands []candidate, iouThreshold float64) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if k.classID == c.classID && k.box.IoU(c.box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

func toDetections(cands []candidate, classes []string) []detection.Detection {
	out := make([]detection.Detection, 0, len(cands))
	for _, c := range cands {
		d, err := detection.New(className(classes, c.classID), c.score, c.box)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
