package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tutor runs the reading-tutor tasks on top of an LLMClient. It satisfies
// adaptive.Assessor and adaptive.Simplifier.
type Tutor struct {
	llm     LLMClient
	model   string
	timeout time.Duration
}

func NewTutor(llm LLMClient, model string, timeout time.Duration) *Tutor {
	return &Tutor{llm: llm, model: model, timeout: timeout}
}

func (t *Tutor) ModelName() string {
	return t.model
}

func (t *Tutor) generate(ctx context.Context, req Request) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	resp, err := t.llm.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (t *Tutor) GenerateQuestions(ctx context.Context, text string) ([]string, error) {
	content, err := t.generate(ctx, Request{
		System:      questionsSystem,
		Prompt:      BuildQuestionsPrompt(text),
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	questions, err := ParseQuestions(content)
	if err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return questions, nil
}

// Grade reviews answers to questions about text. The rating is clamped to
// [-200, 200].
func (t *Tutor) Grade(ctx context.Context, text string, questions, answers []string) (*Review, error) {
	content, err := t.generate(ctx, Request{
		System:      reviewSystem,
		Prompt:      BuildReviewPrompt(text, questions, answers),
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("grade answers: %w", err)
	}
	review, err := ParseReview(content)
	if err != nil {
		return nil, fmt.Errorf("parse review: %w", err)
	}
	return review, nil
}

func (t *Tutor) AssessDifficulty(ctx context.Context, text string) (float64, error) {
	content, err := t.generate(ctx, Request{
		System:      difficultySystem,
		Prompt:      BuildDifficultyPrompt(text),
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		return 0, fmt.Errorf("assess difficulty: %w", err)
	}
	score, err := ParseDifficulty(content)
	if err != nil {
		return 0, fmt.Errorf("parse difficulty: %w", err)
	}
	return score, nil
}

func (t *Tutor) Simplify(ctx context.Context, text string, factor float64) (string, error) {
	content, err := t.generate(ctx, Request{
		System:      simplifySystem,
		Prompt:      BuildSimplifyPrompt(text, factor),
		Temperature: 0.3,
		MaxTokens:   len(text)/2 + 256,
	})
	if err != nil {
		return "", fmt.Errorf("simplify text: %w", err)
	}
	simplified, err := ParseSimplified(content)
	if err != nil {
		return "", fmt.Errorf("parse simplified text: %w", err)
	}
	return simplified, nil
}

func (t *Tutor) Summarize(ctx context.Context, text string) (string, error) {
	content, err := t.generate(ctx, Request{
		System:      summarySystem,
		Prompt:      BuildSummaryPrompt(text),
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(stripCodeFences(content)), nil
}

func (t *Tutor) Hint(ctx context.Context, text string) (string, error) {
	content, err := t.generate(ctx, Request{
		System:      hintSystem,
		Prompt:      BuildHintPrompt(text),
		Temperature: 0.4,
		MaxTokens:   120,
	})
	if err != nil {
		return "", fmt.Errorf("generate hint: %w", err)
	}
	hint := strings.TrimSpace(content)
	if hint == "" {
		return "", &ValidationError{Errors: []string{"empty hint"}}
	}
	return hint, nil
}
