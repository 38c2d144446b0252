package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/patient-data-generator/internal/domain"
)

// AnswerService produces questionnaire answers. It tries the remote
// model first when one is configured and falls back to rule-based
// generation on any APIError, so it always produces an answer.
type AnswerService struct {
	remote domain.ModelClient // nil in fallback-only mode
	rules  *RuleProvider
	logger *logrus.Logger
}

// NewAnswerService creates the answer strategy. remote may be nil,
// which puts the service in fallback-only mode.
func NewAnswerService(remote domain.ModelClient, rules *RuleProvider, logger *logrus.Logger) *AnswerService {
	return &AnswerService{remote: remote, rules: rules, logger: logger}
}

// AnswersForForm answers every question of a form, keyed by question
// ID. Questions asking for the patient ID are filled with the
// generated identifier instead of a synthesized answer.
func (s *AnswerService) AnswersForForm(ctx context.Context, form domain.Form, status domain.HealthStatus, patientID string) map[string]any {
	answers := make(map[string]any, len(form.Questions))
	for _, q := range form.Questions {
		if strings.Contains(strings.ToLower(q.Text), "patient id") {
			answers[q.ID] = patientID
			continue
		}
		answers[q.ID] = s.answer(ctx, form, q, status, patientID)
	}
	return answers
}

func (s *AnswerService) answer(ctx context.Context, form domain.Form, q domain.Question, status domain.HealthStatus, patientID string) any {
	if s.remote != nil {
		answer, err := s.remoteAnswer(ctx, form, q, status, patientID)
		if err == nil {
			return answer
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"form":     form.FormTitle,
			"question": q.ID,
		}).Warn("Model answer failed, falling back to rules")
	}

	answer, _ := s.rules.GenerateAnswer(ctx, form, q, status)
	return answer
}

func (s *AnswerService) remoteAnswer(ctx context.Context, form domain.Form, q domain.Question, status domain.HealthStatus, patientID string) (any, error) {
	raw, err := s.remote.Complete(ctx, questionnaireSystemPrompt, BuildQuestionPrompt(form, q, status, patientID), 0.7, 200)
	if err != nil {
		return nil, err
	}
	return ParseModelAnswer(q, raw)
}
