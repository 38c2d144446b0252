// Package domain defines the core types shared by the generator:
// glossary structures, health statuses, patient records, provider
// interfaces and the error taxonomy.
package domain

import (
	"sort"
	"time"
)

// HealthStatus is the target clinical profile for a generated patient.
// It drives both questionnaire answer tone and lab value placement.
type HealthStatus string

const (
	StatusNormal HealthStatus = "normal"
	StatusLow    HealthStatus = "low"
	StatusHigh   HealthStatus = "high"
)

func (s HealthStatus) String() string {
	return string(s)
}

// ResultLabel returns the lab-result status label for this health status.
func (s HealthStatus) ResultLabel() string {
	switch s {
	case StatusLow:
		return "Low"
	case StatusHigh:
		return "High"
	default:
		return "Normal"
	}
}

// QuestionType identifies the answer shape a question expects.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionGrid           QuestionType = "multiple_choice_grid"
)

// Question is a single question definition inside a form.
type Question struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`
	Rows        []string     `json:"rows,omitempty"`
	Columns     []string     `json:"columns,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// Form is an ordered sequence of questions under one questionnaire form.
type Form struct {
	FormTitle string     `json:"formTitle"`
	Category  string     `json:"category,omitempty"`
	Questions []Question `json:"questions"`
}

// QuestionnaireMetadata carries the glossary's own counts.
type QuestionnaireMetadata struct {
	TotalForms     int `json:"totalForms"`
	TotalQuestions int `json:"totalQuestions"`
}

// QuestionnaireGlossary is the parsed questionnaire glossary document.
// Loaded once per run and treated as read-only afterwards.
type QuestionnaireGlossary struct {
	Metadata          QuestionnaireMetadata `json:"metadata"`
	QuestionsGlossary struct {
		ByForm map[string]Form `json:"byForm"`
	} `json:"questionsGlossary"`
}

// FormKeys returns the form identifiers in sorted order. Generation
// iterates forms through this so a seeded run is reproducible.
func (g *QuestionnaireGlossary) FormKeys() []string {
	keys := make([]string, 0, len(g.QuestionsGlossary.ByForm))
	for k := range g.QuestionsGlossary.ByForm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabTest is one lab test definition with its documented reference range.
// Ranges are pointers because some glossary entries omit them.
type LabTest struct {
	TestGroupName     string   `json:"testGroupName"`
	TestAttributeName string   `json:"testAttributeName"`
	Unit              string   `json:"unit"`
	MinRange          *float64 `json:"minRange"`
	MaxRange          *float64 `json:"maxRange"`
}

// LabTestMetadata carries the lab glossary's own counts.
type LabTestMetadata struct {
	TotalTestGroups int `json:"totalTestGroups"`
	TotalTests      int `json:"totalTests"`
}

// LabTestGlossary is the parsed lab test glossary document.
type LabTestGlossary struct {
	Metadata      LabTestMetadata `json:"metadata"`
	TestsGlossary struct {
		AllTests []LabTest `json:"allTests"`
	} `json:"testsGlossary"`
}

// GroupNames returns the distinct test group names in glossary order.
func (g *LabTestGlossary) GroupNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, t := range g.TestsGlossary.AllTests {
		if !seen[t.TestGroupName] {
			seen[t.TestGroupName] = true
			names = append(names, t.TestGroupName)
		}
	}
	return names
}

// LabResult is one synthesized lab test value with its range context.
type LabResult struct {
	TestGroupName     string  `json:"testGroupName"`
	TestAttributeName string  `json:"testAttributeName"`
	Value             float64 `json:"value"`
	Unit              string  `json:"unit"`
	MinRange          float64 `json:"minRange"`
	MaxRange          float64 `json:"maxRange"`
	Status            string  `json:"status"`
}

// RecordMetadata holds per-record counts; these must equal the actual
// cardinalities of the record's collections.
type RecordMetadata struct {
	TotalForms    int       `json:"totalForms"`
	TotalLabTests int       `json:"totalLabTests"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// PatientRecord is one fully assembled synthetic patient. Records are
// populated once and never mutated after assembly.
type PatientRecord struct {
	PatientID              string                    `json:"patientId"`
	Timestamp              time.Time                 `json:"timestamp"`
	HealthStatus           HealthStatus              `json:"healthStatus"`
	QuestionnaireResponses map[string]map[string]any `json:"questionnaireResponses"`
	LabTestResults         []LabResult               `json:"labTestResults"`
	Metadata               RecordMetadata            `json:"metadata"`
}
