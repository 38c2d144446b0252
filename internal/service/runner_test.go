package service

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patient-data-generator/internal/config"
	"github.com/patient-data-generator/internal/domain"
)

const runnerQuestionnaires = `{
  "metadata": {"totalForms": 2, "totalQuestions": 4},
  "questionsGlossary": {
    "byForm": {
      "general_health": {
        "formTitle": "General Health Questionnaire",
        "questions": [
          {"id": "q1", "text": "Please enter your Patient ID", "type": "text"},
          {"id": "q2", "text": "Do you smoke?", "type": "multiple_choice", "options": ["No", "Yes"]}
        ]
      },
      "lifestyle": {
        "formTitle": "Lifestyle Questionnaire",
        "questions": [
          {"id": "q1", "text": "Which symptoms apply?", "type": "checkbox", "options": ["Fatigue", "Headache", "Nausea"]},
          {"id": "q2", "text": "Anything else?", "type": "text"}
        ]
      }
    }
  }
}`

const runnerLabTests = `{
  "metadata": {"totalTestGroups": 3, "totalTests": 4},
  "testsGlossary": {
    "allTests": [
      {"testGroupName": "LIVER PROFILE", "testAttributeName": "SGOT (AST)", "unit": "U/L", "minRange": 5, "maxRange": 40},
      {"testGroupName": "LIVER PROFILE", "testAttributeName": "SGPT (ALT)", "unit": "U/L", "minRange": 7, "maxRange": 56},
      {"testGroupName": "DIABETES", "testAttributeName": "HbA1c", "unit": "%", "minRange": 4, "maxRange": 5.6},
      {"testGroupName": "THYROID", "testAttributeName": "TSH", "unit": "mIU/L", "minRange": 0.4, "maxRange": 4}
    ]
  }
}`

func writeRunnerFixtures(t *testing.T) (questionnairePath, labTestPath string) {
	t.Helper()
	dir := t.TempDir()
	questionnairePath = filepath.Join(dir, "questionnaires.json")
	labTestPath = filepath.Join(dir, "labs.json")
	require.NoError(t, os.WriteFile(questionnairePath, []byte(runnerQuestionnaires), 0o644))
	require.NoError(t, os.WriteFile(labTestPath, []byte(runnerLabTests), 0o644))
	return questionnairePath, labTestPath
}

func runnerConfig(t *testing.T, numPatients int, seed int64) *config.Config {
	t.Helper()
	qPath, lPath := writeRunnerFixtures(t)
	return &config.Config{
		QuestionnairePath: qPath,
		LabTestPath:       lPath,
		NumPatients:       numPatients,
		OutputDir:         filepath.Join(t.TempDir(), "out"),
		Seed:              seed,
		RequestTimeout:    time.Second,
		RateLimit:         3,
		CacheSize:         16,
	}
}

func readOutput(t *testing.T, cfg *config.Config) []domain.PatientRecord {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, OutputFileName))
	require.NoError(t, err)
	var records []domain.PatientRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func TestRunner_FallbackOnlySinglePatient(t *testing.T) {
	cfg := runnerConfig(t, 1, 42)
	runner := NewRunner(cfg, nil, testLogger())

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, StateDone, runner.State())

	records := readOutput(t, cfg)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "PAT_0001", rec.PatientID)
	assert.Contains(t, []domain.HealthStatus{domain.StatusNormal, domain.StatusLow, domain.StatusHigh}, rec.HealthStatus)

	// Every glossary form is answered.
	require.Len(t, rec.QuestionnaireResponses, 2)
	assert.Equal(t, "PAT_0001", rec.QuestionnaireResponses["general_health"]["q1"])

	// Metadata counts equal actual cardinalities.
	assert.Equal(t, len(rec.QuestionnaireResponses), rec.Metadata.TotalForms)
	assert.Equal(t, len(rec.LabTestResults), rec.Metadata.TotalLabTests)
	assert.NotEmpty(t, rec.LabTestResults)
}

func TestRunner_LabResultsHonorStatus(t *testing.T) {
	cfg := runnerConfig(t, 30, 7)
	runner := NewRunner(cfg, nil, testLogger())
	require.NoError(t, runner.Run(context.Background()))

	records := readOutput(t, cfg)
	assert.LessOrEqual(t, len(records), 30)

	for _, rec := range records {
		for _, res := range rec.LabTestResults {
			switch res.Status {
			case "Normal":
				assert.GreaterOrEqual(t, res.Value, res.MinRange)
				assert.LessOrEqual(t, res.Value, res.MaxRange)
			case "Low":
				assert.Less(t, res.Value, res.MinRange)
			case "High":
				assert.Greater(t, res.Value, res.MaxRange)
			default:
				t.Fatalf("unexpected status %q", res.Status)
			}
		}
	}
}

func TestRunner_SequentialUniqueIDs(t *testing.T) {
	cfg := runnerConfig(t, 5, 3)
	runner := NewRunner(cfg, nil, testLogger())
	require.NoError(t, runner.Run(context.Background()))

	records := readOutput(t, cfg)
	require.Len(t, records, 5)
	seen := make(map[string]bool)
	for _, rec := range records {
		assert.False(t, seen[rec.PatientID])
		seen[rec.PatientID] = true
	}
	assert.Equal(t, "PAT_0001", records[0].PatientID)
	assert.Equal(t, "PAT_0005", records[4].PatientID)
}

func TestRunner_DeterministicUnderFixedSeed(t *testing.T) {
	cfgA := runnerConfig(t, 4, 1234)
	cfgB := runnerConfig(t, 4, 1234)

	require.NoError(t, NewRunner(cfgA, nil, testLogger()).Run(context.Background()))
	require.NoError(t, NewRunner(cfgB, nil, testLogger()).Run(context.Background()))

	recordsA := readOutput(t, cfgA)
	recordsB := readOutput(t, cfgB)
	require.Len(t, recordsB, len(recordsA))

	// Timestamps are wall clock; everything generated must match.
	for i := range recordsA {
		recordsA[i].Timestamp = time.Time{}
		recordsA[i].Metadata.GeneratedAt = time.Time{}
		recordsB[i].Timestamp = time.Time{}
		recordsB[i].Metadata.GeneratedAt = time.Time{}
	}
	assert.Equal(t, recordsA, recordsB)
}

func TestRunner_MissingQuestionnaireGlossary(t *testing.T) {
	cfg := runnerConfig(t, 1, 1)
	cfg.QuestionnairePath = filepath.Join(t.TempDir(), "missing.json")
	runner := NewRunner(cfg, nil, testLogger())

	err := runner.Run(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Equal(t, StateFailed, runner.State())

	// No output file is written on a fatal load failure.
	_, statErr := os.Stat(filepath.Join(cfg.OutputDir, OutputFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_InvalidLabRangeIsFatal(t *testing.T) {
	cfg := runnerConfig(t, 1, 1)
	broken := filepath.Join(t.TempDir(), "labs.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{
	  "testsGlossary": {"allTests": [
	    {"testGroupName": "LIVER PROFILE", "testAttributeName": "SGOT (AST)", "unit": "U/L", "minRange": 40, "maxRange": 5}
	  ]}
	}`), 0o644))
	cfg.LabTestPath = broken
	runner := NewRunner(cfg, nil, testLogger())

	err := runner.Run(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Equal(t, StateFailed, runner.State())
}

func TestSampleHealthStatus_Distribution(t *testing.T) {
	rng := rand.New(rand.NewSource(2026))
	counts := make(map[domain.HealthStatus]int)
	const n = 1000
	for i := 0; i < n; i++ {
		counts[sampleHealthStatus(rng)]++
	}

	// Independent sampling: expect roughly 70/15/15 with slack.
	assert.InDelta(t, 0.70, float64(counts[domain.StatusNormal])/n, 0.05)
	assert.InDelta(t, 0.15, float64(counts[domain.StatusLow])/n, 0.05)
	assert.InDelta(t, 0.15, float64(counts[domain.StatusHigh])/n, 0.05)
}

func TestAssembleRecord_InvariantViolation(t *testing.T) {
	_, err := AssembleRecord("", time.Now(), domain.StatusNormal, nil, nil)
	require.Error(t, err)

	record, err := AssembleRecord("PAT_0001", time.Now(), domain.StatusNormal,
		map[string]map[string]any{"f": {"q": "a"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Metadata.TotalForms)
	assert.Equal(t, 0, record.Metadata.TotalLabTests)
}

func TestAssembleRecord_RejectsOutOfBandResult(t *testing.T) {
	results := []domain.LabResult{
		{TestAttributeName: "SGOT (AST)", Value: 30, MinRange: 5, MaxRange: 40, Status: "High"},
	}

	_, err := AssembleRecord("PAT_0001", time.Now(), domain.StatusHigh, nil, results)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not above")
}
