package glossary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patient-data-generator/internal/domain"
)

const questionnaireFixture = `{
  "metadata": {"totalForms": 1, "totalQuestions": 2},
  "questionsGlossary": {
    "byForm": {
      "general_health": {
        "formTitle": "General Health Questionnaire",
        "questions": [
          {"id": "q1", "text": "Do you smoke?", "type": "multiple_choice", "options": ["No", "Yes"]},
          {"id": "q2", "text": "Any other concerns?", "type": "text", "placeholder": "Your answer"}
        ]
      }
    }
  }
}`

const labTestFixture = `{
  "metadata": {"totalTestGroups": 1, "totalTests": 1},
  "testsGlossary": {
    "allTests": [
      {"testGroupName": "LIVER PROFILE", "testAttributeName": "SGOT (AST)", "unit": "U/L", "minRange": 5, "maxRange": 40}
    ]
  }
}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadQuestionnaires(t *testing.T) {
	path := writeFixture(t, "questionnaires.json", questionnaireFixture)

	g, err := LoadQuestionnaires(path)
	require.NoError(t, err)

	assert.Equal(t, 1, g.Metadata.TotalForms)
	require.Contains(t, g.QuestionsGlossary.ByForm, "general_health")

	form := g.QuestionsGlossary.ByForm["general_health"]
	assert.Equal(t, "General Health Questionnaire", form.FormTitle)
	require.Len(t, form.Questions, 2)
	assert.Equal(t, domain.QuestionMultipleChoice, form.Questions[0].Type)
	assert.Equal(t, []string{"No", "Yes"}, form.Questions[0].Options)
}

func TestLoadQuestionnaires_NotFound(t *testing.T) {
	_, err := LoadQuestionnaires(filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Contains(t, err.Error(), "missing.json")
}

func TestLoadQuestionnaires_MalformedJSON(t *testing.T) {
	path := writeFixture(t, "broken.json", "{not json")

	_, err := LoadQuestionnaires(path)

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Contains(t, err.Error(), "malformed")
}

func TestLoadLabTests(t *testing.T) {
	path := writeFixture(t, "labs.json", labTestFixture)

	g, err := LoadLabTests(path)
	require.NoError(t, err)

	require.Len(t, g.TestsGlossary.AllTests, 1)
	test := g.TestsGlossary.AllTests[0]
	assert.Equal(t, "LIVER PROFILE", test.TestGroupName)
	assert.Equal(t, "SGOT (AST)", test.TestAttributeName)
	assert.Equal(t, "U/L", test.Unit)
	require.NotNil(t, test.MinRange)
	require.NotNil(t, test.MaxRange)
	assert.Equal(t, 5.0, *test.MinRange)
	assert.Equal(t, 40.0, *test.MaxRange)
}

func TestLoadLabTests_NotFound(t *testing.T) {
	_, err := LoadLabTests(filepath.Join(t.TempDir(), "nope.json"))

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestLoadLabTests_MissingRangesParse(t *testing.T) {
	// Entries without ranges still parse; the lab service rejects them
	// only when a value is requested.
	path := writeFixture(t, "labs.json", `{
	  "testsGlossary": {"allTests": [
	    {"testGroupName": "THYROID", "testAttributeName": "TSH", "unit": "mIU/L"}
	  ]}
	}`)

	g, err := LoadLabTests(path)
	require.NoError(t, err)
	require.Len(t, g.TestsGlossary.AllTests, 1)
	assert.Nil(t, g.TestsGlossary.AllTests[0].MinRange)
}
