package opt

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ClipMode selects how gradients are bounded before an optimizer step.
type ClipMode string

const (
	// ClipNone leaves gradients untouched.
	ClipNone ClipMode = "none"
	// ClipNorm rescales all gradients together so that their global L2 norm is at most the limit.
	ClipNorm ClipMode = "norm"
	// ClipValue clamps every gradient component to [-limit, limit].
	ClipValue ClipMode = "value"
)

// ParseClipMode validates a clip mode name; the empty string means ClipNorm.
func ParseClipMode(s string) (ClipMode, error) {
	switch m := ClipMode(s); m {
	case "":
		return ClipNorm, nil
	case ClipNone, ClipNorm, ClipValue:
		return m, nil
	}
	return "", errors.Errorf("unknown clip mode %q", s)
}

// Clip applies mode with the given limit to groups, in place.
func Clip(mode ClipMode, limit float64, groups [][]float64) {
	switch mode {
	case ClipNorm:
		ClipGradNorm(groups, limit)
	case ClipValue:
		ClipGradValue(groups, limit)
	}
}

// GlobalNorm returns the L2 norm of all groups taken as one vector.
func GlobalNorm(groups [][]float64) float64 {
	var sumSq float64
	for _, g := range groups {
		sumSq += floats.Dot(g, g)
	}
	return math.Sqrt(sumSq)
}

// ClipGradNorm scales groups so their global L2 norm does not exceed maxNorm and returns the
// norm measured before clipping.
func ClipGradNorm(groups [][]float64, maxNorm float64) float64 {
	total := GlobalNorm(groups)
	if total <= maxNorm || total == 0 {
		return total
	}
	scale := maxNorm / (total + 1e-6)
	for _, g := range groups {
		floats.Scale(scale, g)
	}
	return total
}

// ClipGradValue clamps every component of groups to [-limit, limit].
func ClipGradValue(groups [][]float64, limit float64) {
	for _, g := range groups {
		for i, v := range g {
			g[i] = math.Max(-limit, math.Min(limit, v))
		}
	}
}
