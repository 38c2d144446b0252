package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/patient-data-generator/internal/config"
	"github.com/patient-data-generator/internal/domain"
	"github.com/patient-data-generator/internal/glossary"
)

// OutputFileName is the per-run result file written to the output dir.
const OutputFileName = "generated_patient_data.json"

// RunState tracks the batch lifecycle.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateLoading     RunState = "loading"
	StateGenerating  RunState = "generating"
	StateAggregating RunState = "aggregating"
	StateWriting     RunState = "writing"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// Health status distribution across a run: 70% normal, 15% low,
// 15% high, sampled independently per patient.
const (
	normalWeight = 0.70
	lowWeight    = 0.15
)

// Runner drives the batch: load glossaries, generate patients one at a
// time, aggregate and write the output file. Glossary and write
// failures are fatal; a single patient's failure is logged and skipped.
type Runner struct {
	cfg    *config.Config
	model  domain.ModelClient // nil in fallback-only mode
	logger *logrus.Logger
	rng    *rand.Rand
	runID  string
	state  RunState
}

// NewRunner creates a batch runner. A zero seed derives one from the
// current time; any other value makes the run reproducible.
func NewRunner(cfg *config.Config, model domain.ModelClient, logger *logrus.Logger) *Runner {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Runner{
		cfg:    cfg,
		model:  model,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		runID:  uuid.NewString(),
		state:  StateIdle,
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() RunState {
	return r.state
}

// Run executes the whole batch. The returned error is nil on success,
// otherwise a ConfigError or WriteError describing the fatal failure.
func (r *Runner) Run(ctx context.Context) error {
	log := r.logger.WithField("run_id", r.runID)

	r.transition(StateLoading)
	questionnaires, err := glossary.LoadQuestionnaires(r.cfg.QuestionnairePath)
	if err != nil {
		return r.fail(err)
	}
	labTests, err := glossary.LoadLabTests(r.cfg.LabTestPath)
	if err != nil {
		return r.fail(err)
	}
	log.WithFields(logrus.Fields{
		"forms":     len(questionnaires.QuestionsGlossary.ByForm),
		"lab_tests": len(labTests.TestsGlossary.AllTests),
	}).Info("Glossaries loaded")

	labs := NewLabService(labTests, r.rng, r.logger)
	answers := NewAnswerService(r.model, NewRuleProvider(r.rng, r.logger), r.logger)
	formKeys := questionnaires.FormKeys()

	r.transition(StateGenerating)
	records := make([]domain.PatientRecord, 0, r.cfg.NumPatients)
	for i := 1; i <= r.cfg.NumPatients; i++ {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}

		status := sampleHealthStatus(r.rng)
		patientID := fmt.Sprintf("PAT_%04d", i)
		log.WithFields(logrus.Fields{
			"patient": patientID,
			"status":  status,
		}).Info("Generating patient")

		record, err := r.generatePatient(ctx, patientID, status, formKeys, questionnaires, answers, labs)
		if err != nil {
			if domain.IsConfigError(err) {
				return r.fail(err)
			}
			log.WithError(err).WithField("patient", patientID).Warn("Skipping patient")
			continue
		}
		records = append(records, *record)
	}

	r.transition(StateAggregating)
	totalForms, totalTests := 0, 0
	for _, rec := range records {
		totalForms += rec.Metadata.TotalForms
		totalTests += rec.Metadata.TotalLabTests
	}

	r.transition(StateWriting)
	outPath, err := r.writeOutput(records)
	if err != nil {
		return r.fail(err)
	}

	r.transition(StateDone)
	summary := log.WithFields(logrus.Fields{
		"patients":  len(records),
		"requested": r.cfg.NumPatients,
		"forms":     totalForms,
		"lab_tests": totalTests,
		"output":    outPath,
	})
	if len(records) > 0 {
		summary = summary.WithField("avg_tests_per_patient",
			fmt.Sprintf("%.1f", float64(totalTests)/float64(len(records))))
	}
	summary.Info("Run complete")
	return nil
}

func (r *Runner) generatePatient(ctx context.Context, patientID string, status domain.HealthStatus,
	formKeys []string, questionnaires *domain.QuestionnaireGlossary,
	answers *AnswerService, labs *LabService) (*domain.PatientRecord, error) {

	responses := make(map[string]map[string]any, len(formKeys))
	for _, key := range formKeys {
		form := questionnaires.QuestionsGlossary.ByForm[key]
		responses[key] = answers.AnswersForForm(ctx, form, status, patientID)
	}

	groups := labs.SelectRelevantGroups(responses)
	results, err := labs.GeneratePanel(groups, status)
	if err != nil {
		return nil, err
	}

	return AssembleRecord(patientID, time.Now().UTC(), status, responses, results)
}

func (r *Runner) writeOutput(records []domain.PatientRecord) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", domain.NewWriteError(r.cfg.OutputDir, err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", domain.NewWriteError(r.cfg.OutputDir, err)
	}

	path := filepath.Join(r.cfg.OutputDir, OutputFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.NewWriteError(path, err)
	}
	return path, nil
}

func (r *Runner) transition(next RunState) {
	r.logger.WithFields(logrus.Fields{
		"run_id": r.runID,
		"from":   r.state,
		"to":     next,
	}).Debug("Run state transition")
	r.state = next
}

func (r *Runner) fail(err error) error {
	r.transition(StateFailed)
	return err
}

// sampleHealthStatus draws one health status from the documented
// distribution using the run's seeded source.
func sampleHealthStatus(rng *rand.Rand) domain.HealthStatus {
	roll := rng.Float64()
	switch {
	case roll < normalWeight:
		return domain.StatusNormal
	case roll < normalWeight+lowWeight:
		return domain.StatusLow
	default:
		return domain.StatusHigh
	}
}
