package adaptive

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/adaptive-reader/backend/internal/rating"
)

// DefaultDifficulty is the scale midpoint used when a text cannot be assessed.
const DefaultDifficulty = 1000.0

// Assessor measures text difficulty on the rating scale.
type Assessor interface {
	AssessDifficulty(ctx context.Context, text string) (float64, error)
}

// Simplifier rewrites text to be easier by factor (0..1).
type Simplifier interface {
	Simplify(ctx context.Context, text string, factor float64) (string, error)
}

type Config struct {
	MinChunkLength    int
	DefaultDifficulty float64
	// ReportSimplifiedOnFailure keeps simplified=true and the chosen factor
	// when the simplifier fails and the original text is returned.
	ReportSimplifiedOnFailure bool
}

func DefaultConfig() Config {
	return Config{
		MinChunkLength:            DefaultMinChunkLength,
		DefaultDifficulty:         DefaultDifficulty,
		ReportSimplifiedOnFailure: true,
	}
}

// GradedChunk is the chunk the reader just answered questions about.
type GradedChunk struct {
	ID          int
	Text        string
	Performance float64
	Difficulty  float64
}

// NextChunk is the chunk about to be shown.
type NextChunk struct {
	ID   int
	Text string
	// Difficulty is an existing assessment of Text, if any.
	Difficulty *float64
	First      bool
	// Following holds the raw text of later chunks, in order, available
	// for merging when Text is too short.
	Following []string
}

// Result is the decision record for one graded chunk.
type Result struct {
	Text                string  `json:"text"`
	Simplified          bool    `json:"simplified"`
	Factor              float64 `json:"factor"`
	SimplificationLevel int     `json:"simplification_level"`
	OriginalDifficulty  float64 `json:"original_difficulty"`
	NewDifficulty       float64 `json:"new_difficulty"`
	Merged              int     `json:"merged"`
	Path                Path    `json:"path"`
	SimplifyFailed      bool    `json:"simplify_failed,omitempty"`
	State               State   `json:"-"`
}

type Orchestrator struct {
	assessor   Assessor
	simplifier Simplifier
	policy     Policy
	cfg        Config
}

func NewOrchestrator(assessor Assessor, simplifier Simplifier, cfg Config) *Orchestrator {
	if cfg.DefaultDifficulty <= 0 {
		cfg.DefaultDifficulty = DefaultDifficulty
	}
	return &Orchestrator{
		assessor:   assessor,
		simplifier: simplifier,
		policy:     NewPolicy(cfg.MinChunkLength),
		cfg:        cfg,
	}
}

// OnChunkGraded records the graded score and prepares the next chunk.
// Collaborator failures are logged and replaced by fallbacks; the only
// error returned is ErrInvalidInput.
func (o *Orchestrator) OnChunkGraded(ctx context.Context, state State, graded GradedChunk, next NextChunk) (*Result, error) {
	if strings.TrimSpace(next.Text) == "" {
		return nil, fmt.Errorf("next chunk %d has no text: %w", next.ID, ErrInvalidInput)
	}

	score := rating.ClampPerformance(graded.Performance)
	st := state.RecordPerformance(score)

	fallback := o.cfg.DefaultDifficulty
	if graded.Difficulty > 0 {
		fallback = graded.Difficulty
	}

	if next.First {
		d := o.difficulty(ctx, next.Text, next.Difficulty, fallback)
		return &Result{
			Text:               next.Text,
			OriginalDifficulty: d,
			NewDifficulty:      d,
			Path:               PathFirstChunk,
			State:              st,
		}, nil
	}

	text := next.Text
	known := next.Difficulty
	merged := 0
	merge := func() {
		text = text + " " + next.Following[merged]
		known = nil
		merged++
	}

	// A strongly negative score needs no difficulty to decide, so short
	// text is merged before paying for an assessment.
	if _, fast := FastPathFactor(score); fast {
		for o.policy.TooShort(len(text)) && merged < len(next.Following) {
			merge()
		}
	}

	original := o.difficulty(ctx, text, known, fallback)
	decision := o.policy.Decide(st, score, original, false, len(text))
	for decision.NeedsMerge && merged < len(next.Following) {
		merge()
		original = o.difficulty(ctx, text, known, fallback)
		decision = o.policy.Decide(st, score, original, false, len(text))
	}
	if decision.NeedsMerge {
		log.Printf("[adapt] chunk %d is %d chars with nothing left to merge, passing through", next.ID, len(text))
		decision = Decision{Path: PathNeedsMerge}
	}
	if merged > 0 {
		log.Printf("[adapt] merged %d following chunk(s) into chunk %d", merged, next.ID)
	}

	res := &Result{
		Text:               text,
		OriginalDifficulty: original,
		NewDifficulty:      original,
		Merged:             merged,
		Path:               decision.Path,
	}

	if decision.ShouldSimplify {
		res.Simplified = true
		res.Factor = decision.Factor

		out, err := o.simplify(ctx, text, decision.Factor)
		if err != nil {
			log.Printf("WARN: [adapt] %v; returning original text for chunk %d", err, next.ID)
			res.SimplifyFailed = true
			if !o.cfg.ReportSimplifiedOnFailure {
				res.Simplified = false
				res.Factor = 0
			}
		} else {
			res.Text = out
		}
	}

	if res.Text != text {
		res.NewDifficulty = o.difficulty(ctx, res.Text, nil, original)
	}

	res.SimplificationLevel = int(math.Round(res.Factor * 100))
	res.State = st.RecordAdaptation(res.Simplified, res.Factor)
	return res, nil
}

// AssessOrDefault measures text, falling back to the configured default.
func (o *Orchestrator) AssessOrDefault(ctx context.Context, text string) float64 {
	return o.difficulty(ctx, text, nil, o.cfg.DefaultDifficulty)
}

func (o *Orchestrator) difficulty(ctx context.Context, text string, known *float64, fallback float64) float64 {
	if known != nil {
		return *known
	}
	if o.assessor == nil {
		return fallback
	}
	d, err := o.assessor.AssessDifficulty(ctx, text)
	if err != nil {
		cerr := &CollaboratorError{Op: "assess difficulty", Err: err}
		log.Printf("WARN: [adapt] %v; using %.0f", cerr, fallback)
		return fallback
	}
	return d
}

func (o *Orchestrator) simplify(ctx context.Context, text string, factor float64) (string, error) {
	if o.simplifier == nil {
		return "", &CollaboratorError{Op: "simplify", Err: fmt.Errorf("no simplifier configured")}
	}
	out, err := o.simplifier.Simplify(ctx, text, factor)
	if err != nil {
		return "", &CollaboratorError{Op: "simplify", Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &CollaboratorError{Op: "simplify", Err: fmt.Errorf("empty output")}
	}
	return out, nil
}
