package adaptive

// State is the per-session adaptation state. Values are copied, never shared:
// every operation returns the next State and leaves its receiver untouched.
//
// RecordPerformance must be called exactly once per graded chunk, in chunk
// order. Callers serialize access per session; State does no locking.
type State struct {
	RunningPerformance float64 `json:"running_performance"`
	ChunksSeen         int     `json:"chunks_seen"`
	LastSimplified     bool    `json:"last_simplified"`
	LastFactor         float64 `json:"last_factor"`
}

// NewState returns the zero state used at session start.
func NewState() State {
	return State{}
}

// RecordPerformance folds a graded score into the running mean.
func (s State) RecordPerformance(score float64) State {
	seen := s.ChunksSeen + 1
	s.RunningPerformance = (s.RunningPerformance*float64(s.ChunksSeen) + score) / float64(seen)
	s.ChunksSeen = seen
	return s
}

// RecordAdaptation remembers the simplification decision for the chunk just prepared.
func (s State) RecordAdaptation(simplified bool, factor float64) State {
	s.LastSimplified = simplified
	s.LastFactor = factor
	return s
}

// Reset discards everything the session has learned.
func (s State) Reset() State {
	return NewState()
}
