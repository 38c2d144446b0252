// Package glossary reads the two reference JSON documents the
// generator consumes: questionnaire form definitions and lab test
// reference ranges. Both are loaded once and never mutated.
package glossary

import (
	"encoding/json"
	"os"

	"github.com/patient-data-generator/internal/domain"
)

// LoadQuestionnaires parses the questionnaire glossary at path. A
// missing file and malformed JSON are both ConfigErrors so the run
// aborts with a message naming the file.
func LoadQuestionnaires(path string) (*domain.QuestionnaireGlossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewConfigError(path, "questionnaire glossary not found", err)
		}
		return nil, domain.NewConfigError(path, "cannot read questionnaire glossary", err)
	}

	var g domain.QuestionnaireGlossary
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, domain.NewConfigError(path, "malformed questionnaire glossary", err)
	}
	return &g, nil
}

// LoadLabTests parses the lab test glossary at path.
func LoadLabTests(path string) (*domain.LabTestGlossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewConfigError(path, "lab test glossary not found", err)
		}
		return nil, domain.NewConfigError(path, "cannot read lab test glossary", err)
	}

	var g domain.LabTestGlossary
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, domain.NewConfigError(path, "malformed lab test glossary", err)
	}
	return &g, nil
}
