package generator

import "strings"

const (
	MinQuestions = 2
	MaxQuestions = 5

	minQuestionLength = 8
)

// DefaultQuestions are served when question generation fails or yields
// nothing usable.
var DefaultQuestions = []string{
	"What is the main idea of this passage?",
	"What did you find most interesting about this text?",
	"How does this information connect to other knowledge you have?",
}

// CleanQuestions trims, drops fragments and duplicates, and keeps at most
// MaxQuestions in the order the model produced them. Callers reject a
// result shorter than MinQuestions.
func CleanQuestions(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.Join(strings.Fields(q), " ")
		if len(q) < minQuestionLength {
			continue
		}
		key := strings.ToLower(strings.TrimRight(q, "?.! "))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == MaxQuestions {
			break
		}
	}
	return out
}
