package service

import (
	"fmt"
	"time"

	"github.com/patient-data-generator/internal/domain"
)

// AssembleRecord composes one immutable patient record from generated
// parts. It is pure: no I/O, no randomness. An invariant violation is
// returned as an error so the runner can skip the patient.
func AssembleRecord(patientID string, timestamp time.Time, status domain.HealthStatus,
	responses map[string]map[string]any, labResults []domain.LabResult) (*domain.PatientRecord, error) {

	record := &domain.PatientRecord{
		PatientID:              patientID,
		Timestamp:              timestamp,
		HealthStatus:           status,
		QuestionnaireResponses: responses,
		LabTestResults:         labResults,
		Metadata: domain.RecordMetadata{
			TotalForms:    len(responses),
			TotalLabTests: len(labResults),
			GeneratedAt:   timestamp,
		},
	}

	if err := validateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

func validateRecord(r *domain.PatientRecord) error {
	if r.PatientID == "" {
		return fmt.Errorf("record has empty patient id")
	}
	if r.Metadata.TotalForms != len(r.QuestionnaireResponses) {
		return fmt.Errorf("record %s: totalForms %d does not match %d responses",
			r.PatientID, r.Metadata.TotalForms, len(r.QuestionnaireResponses))
	}
	if r.Metadata.TotalLabTests != len(r.LabTestResults) {
		return fmt.Errorf("record %s: totalLabTests %d does not match %d results",
			r.PatientID, r.Metadata.TotalLabTests, len(r.LabTestResults))
	}
	for _, result := range r.LabTestResults {
		if err := validateResult(r.PatientID, result); err != nil {
			return err
		}
	}
	return nil
}

func validateResult(patientID string, res domain.LabResult) error {
	switch res.Status {
	case "Normal":
		if res.Value < res.MinRange || res.Value > res.MaxRange {
			return fmt.Errorf("record %s: normal %s value %g outside [%g, %g]",
				patientID, res.TestAttributeName, res.Value, res.MinRange, res.MaxRange)
		}
	case "Low":
		if res.Value >= res.MinRange {
			return fmt.Errorf("record %s: low %s value %g not below %g",
				patientID, res.TestAttributeName, res.Value, res.MinRange)
		}
	case "High":
		if res.Value <= res.MaxRange {
			return fmt.Errorf("record %s: high %s value %g not above %g",
				patientID, res.TestAttributeName, res.Value, res.MaxRange)
		}
	}
	return nil
}
