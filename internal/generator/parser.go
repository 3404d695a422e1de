package generator

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/adaptive-reader/backend/internal/rating"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Review is a graded set of answers. Rating is already clamped to the
// performance range.
type Review struct {
	Review string  `json:"review"`
	Rating float64 `json:"rating"`
}

func ParseReview(responseBody string) (*Review, error) {
	cleaned := stripCodeFences(responseBody)

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON review: %w", err)
	}
	if err := validateAgainst("review", reviewSchema, doc); err != nil {
		return nil, err
	}

	var review Review
	if err := json.Unmarshal([]byte(cleaned), &review); err != nil {
		return nil, fmt.Errorf("failed to decode review: %w", err)
	}
	review.Review = strings.TrimSpace(review.Review)
	review.Rating = rating.ClampPerformance(review.Rating)
	return &review, nil
}

// ParseQuestions accepts a JSON array of strings and falls back to one
// question per line when the model ignores the format.
func ParseQuestions(responseBody string) ([]string, error) {
	cleaned := stripCodeFences(responseBody)

	var questions []string
	if doc, err := jsonschema.UnmarshalJSON(strings.NewReader(cleaned)); err == nil &&
		validateAgainst("questions", questionsSchema, doc) == nil {
		if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
			return nil, fmt.Errorf("failed to decode questions: %w", err)
		}
	} else {
		questions = splitLines(cleaned)
	}

	questions = CleanQuestions(questions)
	if len(questions) == 0 {
		return nil, &ValidationError{Errors: []string{"no questions in response"}}
	}
	if len(questions) < MinQuestions {
		return nil, &ValidationError{Errors: []string{
			fmt.Sprintf("got %d usable questions, need at least %d", len(questions), MinQuestions),
		}}
	}
	return questions, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimLeft(line, "0123456789.)-*• ")
		line = strings.Trim(line, `",`)
		out = append(out, line)
	}
	return out
}

var firstNumber = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// ParseDifficulty reads a bare number, a JSON object with a difficulty
// key, or the first number in free text. The result is clamped to the
// lexile-like scale.
func ParseDifficulty(responseBody string) (float64, error) {
	cleaned := strings.Trim(stripCodeFences(responseBody), "` \n\t")

	var score float64
	var obj struct {
		Difficulty *float64 `json:"difficulty"`
	}
	switch {
	case cleaned != "null" && json.Unmarshal([]byte(cleaned), &score) == nil:
	case json.Unmarshal([]byte(cleaned), &obj) == nil && obj.Difficulty != nil:
		score = *obj.Difficulty
	default:
		m := firstNumber.FindString(cleaned)
		if m == "" {
			return 0, &ValidationError{Errors: []string{fmt.Sprintf("no difficulty score in %q", truncate(cleaned, 80))}}
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, fmt.Errorf("parse difficulty %q: %w", m, err)
		}
		score = v
	}

	if math.IsNaN(score) {
		return 0, &ValidationError{Errors: []string{"difficulty is not a number"}}
	}
	return math.Max(MinDifficulty, math.Min(MaxDifficulty, score)), nil
}

// ParseSimplified strips wrapping fences and rejects empty output.
func ParseSimplified(responseBody string) (string, error) {
	text := strings.Trim(stripCodeFences(responseBody), "` \n\t")
	if text == "" {
		return "", &ValidationError{Errors: []string{"empty simplified text"}}
	}
	return text, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
