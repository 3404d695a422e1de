package adaptive

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAssessor struct {
	values map[string]float64
	def    float64
	err    error
	calls  int
}

func (a *stubAssessor) AssessDifficulty(_ context.Context, text string) (float64, error) {
	a.calls++
	if a.err != nil {
		return 0, a.err
	}
	if v, ok := a.values[text]; ok {
		return v, nil
	}
	return a.def, nil
}

type stubSimplifier struct {
	err        error
	calls      int
	lastFactor float64
}

func (s *stubSimplifier) Simplify(_ context.Context, text string, factor float64) (string, error) {
	s.calls++
	s.lastFactor = factor
	if s.err != nil {
		return "", s.err
	}
	return "SIMPLE: " + text, nil
}

func ptr(f float64) *float64 { return &f }

func TestOnChunkGraded_FirstChunkUnchanged(t *testing.T) {
	simp := &stubSimplifier{}
	o := NewOrchestrator(&stubAssessor{def: 1200}, simp, DefaultConfig())

	state := NewState().RecordPerformance(-200).RecordAdaptation(true, 0.7)
	res, err := o.OnChunkGraded(context.Background(), state,
		GradedChunk{ID: 3, Text: longText, Performance: -200},
		NextChunk{ID: 1, Text: longText, First: true})
	require.NoError(t, err)

	assert.Equal(t, longText, res.Text)
	assert.False(t, res.Simplified)
	assert.Equal(t, 0.0, res.Factor)
	assert.Equal(t, 0, simp.calls)
	assert.Equal(t, 2, res.State.ChunksSeen)
}

func TestOnChunkGraded_FastPath(t *testing.T) {
	assessor := &stubAssessor{values: map[string]float64{longText: 1300, "SIMPLE: " + longText: 900}}
	simp := &stubSimplifier{}
	o := NewOrchestrator(assessor, simp, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: -160, Difficulty: 1000},
		NextChunk{ID: 2, Text: longText})
	require.NoError(t, err)

	assert.Equal(t, PathFastPath, res.Path)
	assert.True(t, res.Simplified)
	assert.Equal(t, 0.4, res.Factor)
	assert.Equal(t, 40, res.SimplificationLevel)
	assert.Equal(t, "SIMPLE: "+longText, res.Text)
	assert.Equal(t, 1300.0, res.OriginalDifficulty)
	assert.Equal(t, 900.0, res.NewDifficulty)
	assert.Equal(t, 0.4, simp.lastFactor)

	assert.Equal(t, -160.0, res.State.RunningPerformance)
	assert.True(t, res.State.LastSimplified)
	assert.Equal(t, 0.4, res.State.LastFactor)
}

func TestOnChunkGraded_SimplifierFailureKeepsSignal(t *testing.T) {
	assessor := &stubAssessor{def: 1100}
	simp := &stubSimplifier{err: errors.New("upstream 503")}
	o := NewOrchestrator(assessor, simp, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: -120},
		NextChunk{ID: 2, Text: longText})
	require.NoError(t, err)

	assert.True(t, res.Simplified)
	assert.Equal(t, 0.3, res.Factor)
	assert.Equal(t, longText, res.Text)
	assert.True(t, res.SimplifyFailed)
	assert.Equal(t, res.OriginalDifficulty, res.NewDifficulty)
	assert.Equal(t, 1, assessor.calls, "unchanged text is not reassessed")
}

func TestOnChunkGraded_SimplifierFailureReportedWhenToggled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReportSimplifiedOnFailure = false
	o := NewOrchestrator(&stubAssessor{def: 1100}, &stubSimplifier{err: errors.New("boom")}, cfg)

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: -120},
		NextChunk{ID: 2, Text: longText})
	require.NoError(t, err)

	assert.False(t, res.Simplified)
	assert.Equal(t, 0.0, res.Factor)
	assert.True(t, res.SimplifyFailed)
	assert.False(t, res.State.LastSimplified)
}

func TestOnChunkGraded_AssessorFailureFallsBack(t *testing.T) {
	o := NewOrchestrator(&stubAssessor{err: errors.New("timeout")}, &stubSimplifier{}, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: 20, Difficulty: 850},
		NextChunk{ID: 2, Text: longText})
	require.NoError(t, err)

	// Previous chunk's difficulty is carried forward for the original text,
	// then for the simplified text.
	assert.Equal(t, 850.0, res.OriginalDifficulty)
	assert.Equal(t, 850.0, res.NewDifficulty)
	assert.Equal(t, PathCurve, res.Path)
}

func TestOnChunkGraded_AssessorFailureWithoutHistory(t *testing.T) {
	o := NewOrchestrator(&stubAssessor{err: errors.New("timeout")}, nil, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: 20},
		NextChunk{ID: 2, Text: longText})
	require.NoError(t, err)
	assert.Equal(t, DefaultDifficulty, res.OriginalDifficulty)
}

func TestOnChunkGraded_UsesKnownDifficulty(t *testing.T) {
	assessor := &stubAssessor{def: 1}
	o := NewOrchestrator(assessor, &stubSimplifier{}, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: 250},
		NextChunk{ID: 2, Text: longText, Difficulty: ptr(150)})
	require.NoError(t, err)

	assert.Equal(t, 150.0, res.OriginalDifficulty)
	assert.Equal(t, 200.0, res.State.RunningPerformance, "score is clamped before use")
	assert.False(t, res.Simplified)
	assert.Equal(t, 0, assessor.calls)
}

func TestOnChunkGraded_ShortChunkMerged(t *testing.T) {
	simp := &stubSimplifier{}
	o := NewOrchestrator(&stubAssessor{def: 1000}, simp, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: -90},
		NextChunk{ID: 2, Text: "A short line.", Following: []string{longText}})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Merged)
	assert.True(t, strings.HasPrefix(res.Text, "SIMPLE: A short line. The river"))
	assert.Equal(t, 0.2, res.Factor)
}

func TestOnChunkGraded_ShortChunkNothingToMerge(t *testing.T) {
	simp := &stubSimplifier{}
	o := NewOrchestrator(&stubAssessor{def: 1000}, simp, DefaultConfig())

	res, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 4, Text: longText, Performance: -90},
		NextChunk{ID: 5, Text: "The end."})
	require.NoError(t, err)

	assert.Equal(t, "The end.", res.Text)
	assert.Equal(t, PathNeedsMerge, res.Path)
	assert.False(t, res.Simplified)
	assert.Equal(t, 0, simp.calls)
}

func TestOnChunkGraded_EmptyNextChunk(t *testing.T) {
	o := NewOrchestrator(&stubAssessor{}, &stubSimplifier{}, DefaultConfig())

	_, err := o.OnChunkGraded(context.Background(), NewState(),
		GradedChunk{ID: 1, Text: longText, Performance: 0},
		NextChunk{ID: 2, Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOnChunkGraded_SessionSequence(t *testing.T) {
	o := NewOrchestrator(&stubAssessor{def: 100}, &stubSimplifier{}, DefaultConfig())
	state := NewState()

	scores := []float64{10, -10, 20}
	for i, score := range scores {
		res, err := o.OnChunkGraded(context.Background(), state,
			GradedChunk{ID: i + 1, Text: longText, Performance: score},
			NextChunk{ID: i + 2, Text: longText})
		require.NoError(t, err)
		state = res.State
	}

	assert.Equal(t, 3, state.ChunksSeen)
	assert.InDelta(t, 20.0/3.0, state.RunningPerformance, 1e-12)
}
