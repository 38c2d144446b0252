package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/patient-data-generator/internal/config"
	"github.com/patient-data-generator/internal/domain"
	"github.com/patient-data-generator/internal/glossary"
)

const profileSystemPrompt = "You are a medical professional creating detailed patient profiles based on lab tests and questionnaire data."

// ProfileService generates narrative patient-profile markdown documents
// via the model. Unlike batch generation it has no rule-based fallback:
// a credential is required.
type ProfileService struct {
	cfg    *config.Config
	model  domain.ModelClient
	logger *logrus.Logger
}

// NewProfileService creates a profile generator. model may be nil; Run
// then fails with a ConfigError.
func NewProfileService(cfg *config.Config, model domain.ModelClient, logger *logrus.Logger) *ProfileService {
	return &ProfileService{cfg: cfg, model: model, logger: logger}
}

// Run generates cfg.NumProfiles markdown profiles into the output
// directory, numbering them after any profiles already present. A
// single failed profile is logged and skipped.
func (s *ProfileService) Run(ctx context.Context) error {
	if s.model == nil {
		return domain.NewConfigError("", "profile generation requires an API key", nil)
	}
	if s.cfg.NumProfiles < 1 {
		return domain.NewConfigError("", "num_profiles must be at least 1", nil)
	}

	questionnaires, err := glossary.LoadQuestionnaires(s.cfg.QuestionnairePath)
	if err != nil {
		return err
	}
	labTests, err := glossary.LoadLabTests(s.cfg.LabTestPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return domain.NewWriteError(s.cfg.OutputDir, err)
	}

	prompt := buildProfilePrompt(questionnaires, labTests)
	start := nextProfileNumber(s.cfg.OutputDir)
	written := 0

	for i := 0; i < s.cfg.NumProfiles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		number := start + i
		name := fmt.Sprintf("patient_profile_%02d.md", number)
		s.logger.WithField("profile", name).Info("Generating patient profile")

		// Number each request so every profile gets its own completion
		// instead of a cached copy of the first.
		user := fmt.Sprintf("%s\n\nThis is patient profile #%d; make it distinct from any other profile in the set.", prompt, number)
		content, err := s.model.Complete(ctx, profileSystemPrompt, user, 0.8, 2000)
		if err != nil {
			s.logger.WithError(err).WithField("profile", name).Warn("Profile generation failed, skipping")
			continue
		}

		path := filepath.Join(s.cfg.OutputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return domain.NewWriteError(path, err)
		}
		written++
	}

	s.logger.WithFields(logrus.Fields{
		"written":   written,
		"requested": s.cfg.NumProfiles,
		"dir":       s.cfg.OutputDir,
	}).Info("Profile generation complete")
	return nil
}

// nextProfileNumber scans the output directory for existing
// patient_profile_NN.md files and returns the number after the highest.
func nextProfileNumber(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "patient_profile_*.md"))
	if err != nil || len(matches) == 0 {
		return 1
	}
	highest := 0
	for _, m := range matches {
		stem := strings.TrimSuffix(filepath.Base(m), ".md")
		parts := strings.Split(stem, "_")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// buildProfilePrompt renders the profile request from both glossaries:
// a sample of test groups, the questionnaire categories and the
// glossary totals, plus the exact output format the profile must follow.
func buildProfilePrompt(q *domain.QuestionnaireGlossary, labs *domain.LabTestGlossary) string {
	groups := labs.GroupNames()
	if len(groups) > 15 {
		groups = groups[:15]
	}

	categorySet := make(map[string]bool)
	categories := make([]string, 0)
	for _, key := range q.FormKeys() {
		form := q.QuestionsGlossary.ByForm[key]
		category := form.Category
		if category == "" {
			category = form.FormTitle
		}
		if category != "" && !categorySet[category] {
			categorySet[category] = true
			categories = append(categories, category)
		}
	}

	return fmt.Sprintf(`You are a medical professional creating a detailed patient profile. Generate a realistic patient profile in the exact format shown below, incorporating relevant information from the lab tests glossary and questionnaires provided.

Format the profile exactly like this example:

### *Patient Profile: [Patient Name]*

* *Demographics:* [Age, gender, brief background]

* *Chief Complaints:* [Main symptoms and concerns]

* *Metabolic Concerns:* [Metabolic-related issues if applicable]

* *Hormonal Symptoms:* [Hormonal-related symptoms if applicable]

* *Lifestyle & Symptoms:* [Lifestyle factors and related symptoms]

* *Dietary Triggers:* [Food sensitivities or dietary issues if applicable]

* *Lab Profile (Metabolic):* [Include 2-3 relevant metabolic lab tests with values and reference ranges]

* *Lab Profile (Hormonal):* [Include 2-3 relevant hormonal lab tests with values and reference ranges]

* *Lab Profile (Thyroid):* [Include thyroid tests if applicable]

* *Nutritional Status:* [Include relevant vitamin/mineral levels if applicable]

* *Inflammatory Markers:* [Include inflammatory markers if applicable]

* *Clinical Summary:* [Comprehensive summary connecting all findings]

Available Lab Test Categories (sample):
%s

Available Questionnaire Categories:
%s

Lab Tests Glossary Summary:
- Total test groups: %d
- Total tests: %d

Questionnaires Available:
- Total forms: %d
- Total questions: %d

Generate a unique, realistic patient profile with:
1. A realistic Indian name
2. Age between 30-65 years
3. Relevant lab test values (some normal, some abnormal) with proper reference ranges
4. Symptoms that correlate with the lab findings
5. A coherent clinical picture that connects symptoms, lab values, and questionnaire responses

Make sure lab values are realistic and include proper units and reference ranges in parentheses like: *Test Name* is *value* (Ref: range).

Use common lab tests such as:
- Metabolic: HbA1c, Fasting Blood Glucose, Fasting Insulin, Lipid Profile (Total Cholesterol, LDL, HDL, Triglycerides)
- Hormonal: Testosterone (Total/Free), Estradiol, Progesterone, Cortisol, DHEA-S
- Thyroid: TSH, Free T3, Free T4
- Vitamins: Vitamin D, Vitamin B12, Folate
- Inflammatory: hs-CRP, ESR`,
		strings.Join(groups, ", "),
		strings.Join(categories, ", "),
		labs.Metadata.TotalTestGroups,
		labs.Metadata.TotalTests,
		q.Metadata.TotalForms,
		q.Metadata.TotalQuestions)
}
