// Package work holds the work function of the generate example: it drafts
// quiz questions for a topic.
package work

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

var templates = []string{
	"What is the main idea behind %s?",
	"Name one common mistake when working with %s.",
	"How would you explain %s to a beginner?",
	"Which tool would you pick for %s, and why?",
	"What changed recently in %s?",
}

var levels = map[string]bool{"easy": true, "medium": true, "hard": true}

// QuestionWork drafts one question per call. Templates repeat, so a run
// over a small topic list yields duplicates for the dedup hook to catch.
type QuestionWork struct {
	pick func(n int) int
}

// NewQuestionWork creates a QuestionWork choosing templates at random.
func NewQuestionWork() *QuestionWork {
	return &QuestionWork{pick: rand.IntN}
}

// NewQuestionWorkWithPicker creates a QuestionWork with a fixed template picker.
func NewQuestionWorkWithPicker(pick func(n int) int) *QuestionWork {
	return &QuestionWork{pick: pick}
}

// Call implements port.WorkFunc. It fails when the topic is blank or the
// difficulty is not one of easy, medium and hard.
func (w *QuestionWork) Call(ctx context.Context, input model.InputRecord) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic, _ := input["topic"].(string)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic must be a non-empty string, got %v", input["topic"])
	}
	difficulty := "medium"
	if d, ok := input["difficulty"].(string); ok && d != "" {
		difficulty = strings.ToLower(d)
	}
	if !levels[difficulty] {
		return nil, fmt.Errorf("unknown difficulty %q", difficulty)
	}
	return []interface{}{map[string]interface{}{
		"topic":      topic,
		"difficulty": difficulty,
		"question":   fmt.Sprintf(templates[w.pick(len(templates))], topic),
	}}, nil
}

// QuestionKey keys an output by its lower-cased question text, so the same
// question drafted for different difficulties counts as a duplicate.
func QuestionKey(output []interface{}) (string, error) {
	if len(output) == 0 {
		return "", fmt.Errorf("empty output")
	}
	item, ok := output[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected output item %T", output[0])
	}
	q, ok := item["question"].(string)
	if !ok {
		return "", fmt.Errorf("output item has no question")
	}
	return strings.ToLower(q), nil
}

// Parameters implements port.WorkFunc.
func (w *QuestionWork) Parameters() []port.Parameter {
	return []port.Parameter{port.Required("topic"), port.Optional("difficulty")}
}

var _ port.WorkFunc = (*QuestionWork)(nil)
