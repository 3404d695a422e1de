package generator

import (
	"fmt"
	"math"
	"strings"
)

const (
	MinDifficulty = 0
	MaxDifficulty = 2000
)

// System prompts double as task identifiers for MockClient.
const (
	questionsSystem = `You are a reading tutor. You write open-ended comprehension questions about a passage a learner has just read. Questions must be answerable from the passage alone and must not be yes/no questions.`

	reviewSystem = `You are a reading tutor reviewing a learner's answers to comprehension questions. Be encouraging and specific. Judge understanding of the passage, not spelling or grammar.`

	difficultySystem = `You rate the reading difficulty of English text on a lexile-like scale. You respond with a number only.`

	simplifySystem = `You rewrite text so it is easier to read. You keep the meaning, the facts and roughly the same length. You return only the rewritten text.`

	summarySystem = `You write short, neutral summaries of passages for a reading app.`

	hintSystem = `You are a helpful reading assistant. You point readers at what matters in a passage without giving away answers.`
)

func BuildQuestionsPrompt(chunk string) string {
	return fmt.Sprintf(`Read the following text and generate between %d and %d open-ended questions based on its content. Return the questions as a JSON array of strings.

%s`, MinQuestions, MaxQuestions, chunk)
}

// BuildReviewPrompt lists each question with the learner's answer. Missing
// answers are sent as empty responses.
func BuildReviewPrompt(chunk string, questions, answers []string) string {
	var b strings.Builder
	b.WriteString(chunk)
	b.WriteString("\n\n")
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		fmt.Fprintf(&b, "Question %d: %s\nResponse: %s\n", i+1, q, answer)
	}
	fmt.Fprintf(&b, `
Generate a JSON object with two keys: "review" (a short evaluation message for the learner) and "rating" (integer between %d and %d; positive for correct, negative for misunderstanding, 0 neutral). Respond with only the JSON object.`,
		-200, 200)
	return b.String()
}

func BuildDifficultyPrompt(chunk string) string {
	return fmt.Sprintf(`Rate the difficulty of the following text on a lexile-like scale from %d to %d. Respond with only the numeric score (no units, no text).

%s`, MinDifficulty, MaxDifficulty, chunk)
}

// BuildSimplifyPrompt asks for a rewrite easier by factor, expressed as a
// whole percentage.
func BuildSimplifyPrompt(text string, factor float64) string {
	percent := int(math.Round(factor * 100))
	return fmt.Sprintf(`Simplify the following text by %d%% while preserving its length and nuances. Return only the simplified text.

%s`, percent, text)
}

func BuildSummaryPrompt(chunk string) string {
	return fmt.Sprintf(`Summarize the following passage in one or two sentences. Return only the summary.

%s`, chunk)
}

func BuildHintPrompt(chunk string) string {
	return fmt.Sprintf(`Analyze the following text and give the reader ONE brief hint about what to pay attention to.

DO NOT summarize or explain the entire text.
DO NOT give away answers to potential questions.
DO NOT write more than 2-3 short sentences.

Instead:
- Identify 1-2 key sentences or phrases that are important for understanding the text
- Or suggest a specific concept, term or relationship to pay attention to
- Or point out a subtle detail that might be easily missed

Text to analyze:
"%s"

Hint (make it brief and helpful without giving away too much):`, chunk)
}
