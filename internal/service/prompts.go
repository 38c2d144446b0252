package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/patient-data-generator/internal/domain"
)

const questionnaireSystemPrompt = "You are a helpful assistant that generates realistic medical questionnaire responses."

// BuildQuestionPrompt renders the user prompt for one question. The
// wording asks for machine-parseable output per question type so the
// reply can be mapped back into the expected answer shape. The context
// line carries the patient ID and target health status: the model sees
// who it is answering for, and identical questions for different
// patients produce distinct prompts, so the completion cache never
// serves one patient's answer to another.
func BuildQuestionPrompt(form domain.Form, q domain.Question, status domain.HealthStatus, patientID string) string {
	context := fmt.Sprintf("Patient %s (overall health status: %s) filling out %s",
		patientID, status, form.FormTitle)

	switch q.Type {
	case domain.QuestionMultipleChoice:
		return fmt.Sprintf(`You are a healthcare patient filling out a medical questionnaire.
Answer the following question by selecting ONE option from the provided choices.
Be realistic and consider the context of a typical patient.

Question: %s
Options: %s

Context: %s

Respond with ONLY the selected option text, nothing else.`,
			q.Text, strings.Join(q.Options, ", "), context)

	case domain.QuestionCheckbox:
		return fmt.Sprintf(`You are a healthcare patient filling out a medical questionnaire.
Answer the following question by selecting ALL applicable options from the list.
Be realistic - select 0-3 options that are relevant.

Question: %s
Options: %s

Context: %s

Respond with a comma-separated list of selected options, or "None" if none apply.`,
			q.Text, strings.Join(q.Options, ", "), context)

	case domain.QuestionGrid:
		return fmt.Sprintf(`You are a healthcare patient filling out a medical questionnaire.
For each row item, select the most appropriate column option.

Question: %s
Rows: %s
Columns: %s

Context: %s

Respond with a JSON object mapping each row to a column, like: {"Row1": "Column1", "Row2": "Column2"}`,
			q.Text, strings.Join(q.Rows, ", "), strings.Join(q.Columns, ", "), context)

	default:
		placeholder := q.Placeholder
		if placeholder == "" {
			placeholder = "Your answer"
		}
		return fmt.Sprintf(`You are a healthcare patient filling out a medical questionnaire.
Provide a brief, realistic answer to the following question.

Question: %s
Placeholder hint: %s

Context: %s

Respond with a concise, realistic answer (1-2 sentences max).`,
			q.Text, placeholder, context)
	}
}

// ParseModelAnswer maps a raw completion into the answer shape the
// question expects. Unparseable content is an APIError so the caller
// falls back to rule-based generation for this question.
func ParseModelAnswer(q domain.Question, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.NewAPIError("openai", "empty answer", nil)
	}

	switch q.Type {
	case domain.QuestionMultipleChoice:
		for _, opt := range q.Options {
			if strings.EqualFold(raw, opt) {
				return opt, nil
			}
		}
		return nil, domain.NewAPIError("openai",
			fmt.Sprintf("answer %q is not one of the offered options", raw), nil)

	case domain.QuestionCheckbox:
		if strings.EqualFold(raw, "none") {
			return []string{}, nil
		}
		selected := make([]string, 0)
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			for _, opt := range q.Options {
				if strings.EqualFold(part, opt) {
					selected = append(selected, opt)
					break
				}
			}
		}
		return selected, nil

	case domain.QuestionGrid:
		// Models sometimes fence the JSON in markdown.
		cleaned := strings.TrimSpace(strings.Trim(raw, "`"))
		cleaned = strings.TrimPrefix(cleaned, "json")
		var mapping map[string]string
		if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &mapping); err != nil {
			return nil, domain.NewAPIError("openai", "grid answer is not a JSON object", err)
		}
		known := make(map[string]bool, len(q.Rows))
		for _, row := range q.Rows {
			known[row] = true
		}
		answers := make(map[string]string, len(mapping))
		for row, col := range mapping {
			if known[row] {
				answers[row] = col
			}
		}
		return answers, nil

	default:
		return raw, nil
	}
}
