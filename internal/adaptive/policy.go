package adaptive

import "math"

const (
	MinFactor = 0.1
	MaxFactor = 0.75

	// DefaultMinChunkLength is the shortest text worth simplifying or assessing.
	DefaultMinChunkLength = 100

	continuationDecay     = 0.9
	continuationThreshold = 0.5
)

// Path records which rule produced a Decision.
type Path string

const (
	PathNone         Path = "none"
	PathFirstChunk   Path = "first_chunk"
	PathFastPath     Path = "fast_path"
	PathCurve        Path = "curve"
	PathContinuation Path = "continuation"
	PathNeedsMerge   Path = "needs_merge"
)

// Decision is the policy output for one upcoming chunk.
type Decision struct {
	ShouldSimplify bool    `json:"should_simplify"`
	Factor         float64 `json:"factor"`
	NeedsMerge     bool    `json:"needs_merge"`
	Path           Path    `json:"path"`
}

// Policy decides how much to simplify the next chunk. It is stateless and
// safe for concurrent use.
type Policy struct {
	MinChunkLength int
}

func NewPolicy(minChunkLength int) Policy {
	if minChunkLength <= 0 {
		minChunkLength = DefaultMinChunkLength
	}
	return Policy{MinChunkLength: minChunkLength}
}

// FastPathFactor returns the forced factor for a negative single-chunk score.
// ok is false when the fast path does not apply.
func FastPathFactor(performance float64) (factor float64, ok bool) {
	if performance >= 0 {
		return 0, false
	}
	switch {
	case performance <= -150:
		return 0.4, true
	case performance <= -100:
		return 0.3, true
	default:
		return 0.2, true
	}
}

// EaseFactor maps a raw performance gap ratio onto the three-band curve and
// clamps the result to [MinFactor, MaxFactor].
func EaseFactor(raw float64) float64 {
	var eased float64
	switch {
	case raw < 0.3:
		eased = raw * 0.5
	case raw < 0.6:
		eased = 0.15 + (raw-0.3)*0.6
	default:
		eased = 0.33 + (raw-0.6)*0.7
	}
	return math.Max(MinFactor, math.Min(MaxFactor, eased))
}

// CurveDecision applies the running-average rule.
func (p Policy) CurveDecision(s State, difficulty float64, first bool) Decision {
	if first {
		return Decision{Path: PathFirstChunk}
	}

	underPerforming := difficulty > 0 && s.RunningPerformance < difficulty
	if underPerforming {
		raw := (difficulty - s.RunningPerformance) / difficulty
		return Decision{ShouldSimplify: true, Factor: EaseFactor(raw), Path: PathCurve}
	}

	if s.LastSimplified {
		factor := s.LastFactor
		if factor > continuationThreshold {
			factor *= continuationDecay
		}
		return Decision{ShouldSimplify: factor > 0, Factor: factor, Path: PathContinuation}
	}

	return Decision{Path: PathNone}
}

// Decide picks between the fast path and the curve. The fast path wins when
// the latest score is negative. A decision to simplify text shorter than
// MinChunkLength becomes a merge request instead.
func (p Policy) Decide(s State, latest, difficulty float64, first bool, textLen int) Decision {
	if first {
		return Decision{Path: PathFirstChunk}
	}

	d, fast := p.fastPath(latest)
	if !fast {
		d = p.CurveDecision(s, difficulty, false)
	}

	if d.ShouldSimplify && p.TooShort(textLen) {
		return Decision{NeedsMerge: true, Path: PathNeedsMerge}
	}
	return d
}

// TooShort reports whether text of length n is below the merge threshold.
func (p Policy) TooShort(n int) bool {
	return n < p.MinChunkLength
}

func (p Policy) fastPath(latest float64) (Decision, bool) {
	factor, ok := FastPathFactor(latest)
	if !ok {
		return Decision{}, false
	}
	return Decision{ShouldSimplify: true, Factor: factor, Path: PathFastPath}, true
}
