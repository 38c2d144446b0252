package service

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/patient-data-generator/internal/domain"
)

// defaultPanelGroups is the comprehensive panel every patient receives.
var defaultPanelGroups = []string{
	"GENERAL PATHOLOGY",
	"LIVER PROFILE",
	"RENAL PROFILE",
	"LIPID PROFILE",
	"DIABETES",
	"THYROID",
	"VITAMINS",
}

// groupTriggers maps questionnaire answer keywords to additional test
// groups. This is the explicit form-to-test-group mapping; keyword
// matching runs over the flattened, lowercased answers.
var groupTriggers = []struct {
	keywords []string
	groups   []string
}{
	{
		keywords: []string{"hormone", "menstrual", "fertility"},
		groups:   []string{"FERTILITY (FEMALE)", "FERTILITY (MALE)", "ADRENAL HORMONES"},
	},
	{
		keywords: []string{"allergy", "allergic", "sensitivity"},
		groups:   []string{"ALLERGY - SPECIFIC IgE"},
	},
	{
		keywords: []string{"heart", "cardiac", "chest"},
		groups:   []string{"CARDIAC MARKERS"},
	},
	{
		keywords: []string{"joint", "arthritis", "pain"},
		groups:   []string{"ARTHRITIS", "AUTOIMMUNE"},
	},
}

// Panel size bounds; clamped down when fewer tests are available.
const (
	minPanelSize = 10
	maxPanelSize = 20
)

// LabService selects relevant lab tests and synthesizes values placed
// inside or outside the documented reference ranges.
type LabService struct {
	glossary *domain.LabTestGlossary
	rng      *rand.Rand
	logger   *logrus.Logger
}

// NewLabService creates a lab service over the loaded glossary.
func NewLabService(glossary *domain.LabTestGlossary, rng *rand.Rand, logger *logrus.Logger) *LabService {
	return &LabService{glossary: glossary, rng: rng, logger: logger}
}

// SelectRelevantGroups returns the test groups relevant to a patient
// given their questionnaire answers: the default panel plus any
// keyword-triggered additions, sorted so identical answers always
// yield the same selection.
func (s *LabService) SelectRelevantGroups(responses map[string]map[string]any) []string {
	flat := flattenAnswers(responses)

	selected := make(map[string]bool, len(defaultPanelGroups))
	for _, g := range defaultPanelGroups {
		selected[g] = true
	}
	for _, trigger := range groupTriggers {
		for _, kw := range trigger.keywords {
			if strings.Contains(flat, kw) {
				for _, g := range trigger.groups {
					selected[g] = true
				}
				break
			}
		}
	}

	groups := make([]string, 0, len(selected))
	for g := range selected {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// GeneratePanel draws a panel of results from the selected groups. The
// number of tests is 10-20, clamped to availability. A test with a
// missing or inverted reference range is a ConfigError.
func (s *LabService) GeneratePanel(groups []string, status domain.HealthStatus) ([]domain.LabResult, error) {
	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}

	available := make([]domain.LabTest, 0)
	for _, t := range s.glossary.TestsGlossary.AllTests {
		if wanted[t.TestGroupName] {
			available = append(available, t)
		}
	}

	upper := maxPanelSize
	if len(available) < upper {
		upper = len(available)
	}
	lower := minPanelSize
	if upper < lower {
		lower = upper
	}
	count := lower + s.rng.Intn(upper-lower+1)

	results := make([]domain.LabResult, 0, count)
	for _, idx := range s.rng.Perm(len(available))[:count] {
		test := available[idx]
		value, err := s.generateValue(test, status)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.LabResult{
			TestGroupName:     test.TestGroupName,
			TestAttributeName: test.TestAttributeName,
			Value:             value,
			Unit:              test.Unit,
			MinRange:          *test.MinRange,
			MaxRange:          *test.MaxRange,
			Status:            status.ResultLabel(),
		})
	}

	s.logger.WithFields(logrus.Fields{
		"groups": len(groups),
		"tests":  len(results),
		"status": status,
	}).Debug("Generated lab panel")

	return results, nil
}

// generateValue synthesizes one value for the target status. Normal
// values are a bounded normal draw clamped into the range; low and high
// values land strictly outside the corresponding bound even after
// rounding to one decimal place.
func (s *LabService) generateValue(test domain.LabTest, status domain.HealthStatus) (float64, error) {
	if test.MinRange == nil || test.MaxRange == nil {
		return 0, domain.NewConfigError("", fmt.Sprintf("lab test %q has no reference range", test.TestAttributeName), nil)
	}
	min, max := *test.MinRange, *test.MaxRange
	if min >= max {
		return 0, domain.NewConfigError("",
			fmt.Sprintf("lab test %q has invalid range [%g, %g]", test.TestAttributeName, min, max), nil)
	}
	span := max - min

	switch status {
	case domain.StatusLow:
		value := min - math.Abs(s.rng.NormFloat64())*span*0.2
		floor := min / 2
		if min <= 0 {
			// No physiological headroom below a bound at or under
			// zero; allow only the one step strictness needs.
			floor = min - strictStep(span)
		}
		if value < floor {
			value = floor
		}
		value = round1(value)
		if value >= min {
			value = round1(min - strictStep(span))
		}
		return value, nil

	case domain.StatusHigh:
		value := max + math.Abs(s.rng.NormFloat64())*span*0.2
		ceiling := max + span
		if value > ceiling {
			value = ceiling
		}
		value = round1(value)
		if value <= max {
			value = round1(max + strictStep(span))
		}
		return value, nil

	default:
		value := s.rng.NormFloat64()*span/6 + (min+max)/2
		value = round1(value)
		if value < min {
			value = min
		}
		if value > max {
			value = max
		}
		return value, nil
	}
}

// strictStep is the offset applied when a rounded low/high value would
// land on the boundary; large enough that one-decimal rounding cannot
// pull it back onto the bound.
func strictStep(span float64) float64 {
	step := span * 0.05
	if step < 0.1 {
		step = 0.1
	}
	return step
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// flattenAnswers joins every answer value into one lowercased string
// for keyword matching; non-string answers are JSON-encoded first.
func flattenAnswers(responses map[string]map[string]any) string {
	var b strings.Builder
	formKeys := make([]string, 0, len(responses))
	for k := range responses {
		formKeys = append(formKeys, k)
	}
	sort.Strings(formKeys)

	for _, fk := range formKeys {
		answers := responses[fk]
		questionIDs := make([]string, 0, len(answers))
		for id := range answers {
			questionIDs = append(questionIDs, id)
		}
		sort.Strings(questionIDs)
		for _, id := range questionIDs {
			switch v := answers[id].(type) {
			case string:
				b.WriteString(v)
			default:
				if encoded, err := json.Marshal(v); err == nil {
					b.Write(encoded)
				}
			}
			b.WriteByte(' ')
		}
	}
	return strings.ToLower(b.String())
}
