package rating

import "math"

const (
	// DefaultRating is assigned to new readers.
	DefaultRating = 1000
	// MinRating is the floor a reader's rating can never drop below.
	MinRating = 100

	// Spread is the logistic divisor for ExpectedScore. Chess Elo uses 400;
	// reading-level transitions are gentler.
	Spread = 500.0

	// MinPerformance and MaxPerformance bound a graded PerformanceScore.
	MinPerformance = -200.0
	MaxPerformance = 200.0

	// MaxDelta bounds the rating movement of a single graded chunk.
	MaxDelta = 40

	gapScale        = 400.0
	adjustmentBoost = 1.5
)

// ClampPerformance bounds a raw grader score to [MinPerformance, MaxPerformance].
func ClampPerformance(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(MinPerformance, math.Min(MaxPerformance, score))
}

// NormalizePerformance maps a performance score onto [0,1]:
// -200 → 0, 0 → 0.5, +200 → 1.
func NormalizePerformance(score float64) float64 {
	return (ClampPerformance(score) - MinPerformance) / (MaxPerformance - MinPerformance)
}

// ExpectedScore returns the probability-like expected result for a reader
// at readerLevel facing text at textDifficulty. Exactly 0.5 when the two match.
func ExpectedScore(readerLevel, textDifficulty float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (textDifficulty-readerLevel)/Spread))
}

// DifficultyAdjustment weights a rating change by how close the text sits to
// the reader's level. Peaks at 1.5 for a zero gap and decays as a Gaussian.
func DifficultyAdjustment(readerLevel, textDifficulty float64) float64 {
	gap := math.Abs(textDifficulty-readerLevel) / gapScale
	return math.Exp(-(gap * gap)) * adjustmentBoost
}

// Delta computes the integer rating change for one graded chunk, clamped
// to ±MaxDelta.
func Delta(readerLevel, textDifficulty, performance, kFactor float64) int {
	actual := NormalizePerformance(performance)
	expected := ExpectedScore(readerLevel, textDifficulty)
	adjustment := DifficultyAdjustment(readerLevel, textDifficulty)

	d := int(math.Round(kFactor * (actual - expected) * adjustment))
	if d > MaxDelta {
		return MaxDelta
	}
	if d < -MaxDelta {
		return -MaxDelta
	}
	return d
}

// KFactorForLevel returns the base adjustment strength for a reader's level.
// Less skilled readers move faster.
func KFactorForLevel(level float64) float64 {
	if level < 800 {
		return 32
	}
	if level < 1200 {
		return 24
	}
	return 16
}

// SessionKFactorMultiplier scales the K-factor by how many chunks the
// reader has completed overall.
func SessionKFactorMultiplier(completedChunks int) float64 {
	switch {
	case completedChunks < 5:
		return 1.5 // New reader: converge quickly
	case completedChunks < 15:
		return 1.2
	case completedChunks < 30:
		return 1.1
	default:
		return 1.0
	}
}

// KFactor combines the level tier and the history multiplier.
func KFactor(level float64, completedChunks int) float64 {
	return KFactorForLevel(level) * SessionKFactorMultiplier(completedChunks)
}

// Apply returns the new rating after adding delta, floored at MinRating.
func Apply(current, delta int) int {
	next := current + delta
	if next < MinRating {
		return MinRating
	}
	return next
}
