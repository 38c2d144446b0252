// Package service implements the generation core: answer providers,
// lab value synthesis, record assembly and the batch runner.
package service

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/patient-data-generator/internal/domain"
)

// Canned answers for free-text questions. Index 0 is the asymptomatic
// answer; abnormal patients draw from the rest.
var textTemplates = []string{
	"No specific concerns at this time",
	"Occasionally, but manageable",
	"Yes, I have noticed this",
	"Not applicable to my situation",
	"Varies from day to day",
}

// Probability that an abnormal patient picks a symptomatic (non-first)
// option on a multiple choice question.
const symptomaticBias = 0.7

// RuleProvider generates answers without any external call. It is the
// guaranteed-availability floor: GenerateAnswer never returns an error.
// All randomness flows from the injected source, so a fixed seed makes
// the provider fully deterministic.
type RuleProvider struct {
	rng    *rand.Rand
	logger *logrus.Logger
}

// NewRuleProvider creates a rule-based provider over the given source.
func NewRuleProvider(rng *rand.Rand, logger *logrus.Logger) *RuleProvider {
	return &RuleProvider{rng: rng, logger: logger}
}

// Name implements domain.AnswerProvider.
func (p *RuleProvider) Name() string {
	return "rules"
}

// GenerateAnswer implements domain.AnswerProvider. The answer shape
// follows the question type; abnormal health statuses skew toward
// symptomatic answers.
func (p *RuleProvider) GenerateAnswer(_ context.Context, _ domain.Form, q domain.Question, status domain.HealthStatus) (any, error) {
	p.logger.WithFields(logrus.Fields{
		"question": q.ID,
		"type":     q.Type,
	}).Debug("Generating rule-based answer")

	switch q.Type {
	case domain.QuestionMultipleChoice:
		return p.chooseOption(q.Options, status), nil
	case domain.QuestionCheckbox:
		return p.chooseCheckboxes(q.Options, status), nil
	case domain.QuestionGrid:
		return p.fillGrid(q.Rows, q.Columns), nil
	default:
		return p.chooseText(status), nil
	}
}

func (p *RuleProvider) chooseOption(options []string, status domain.HealthStatus) string {
	if len(options) == 0 {
		return "Yes"
	}
	// Option lists conventionally start with the benign choice
	// ("No", "Never"); symptomatic patients lean past it.
	if status != domain.StatusNormal && len(options) > 1 && p.rng.Float64() < symptomaticBias {
		return options[1+p.rng.Intn(len(options)-1)]
	}
	return options[p.rng.Intn(len(options))]
}

func (p *RuleProvider) chooseCheckboxes(options []string, status domain.HealthStatus) []string {
	maxPick := len(options)
	if maxPick > 3 {
		maxPick = 3
	}
	n := p.rng.Intn(maxPick + 1)
	if n == 0 && status != domain.StatusNormal && len(options) > 0 {
		n = 1
	}

	selected := make([]string, 0, n)
	for _, idx := range p.rng.Perm(len(options))[:n] {
		selected = append(selected, options[idx])
	}
	return selected
}

func (p *RuleProvider) fillGrid(rows, columns []string) map[string]string {
	answers := make(map[string]string, len(rows))
	if len(columns) == 0 {
		return answers
	}
	for _, row := range rows {
		answers[row] = columns[p.rng.Intn(len(columns))]
	}
	return answers
}

func (p *RuleProvider) chooseText(status domain.HealthStatus) string {
	if status != domain.StatusNormal {
		return textTemplates[1+p.rng.Intn(len(textTemplates)-1)]
	}
	return textTemplates[p.rng.Intn(len(textTemplates))]
}
