package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ontology"
)

func TestParseExtraction(t *testing.T) {
	raw := `{
		"entities": [
			{"name": "Socrates", "type": "Person", "description": "Greek philosopher", "keywords": ["philosophy"], "confidence": 0.95}
		],
		"relationships": [
			{"machine_name": "teaches", "source_entity": "Socrates", "target_entity": "Plato",
			 "semantic_properties": {}, "usage_context": "historical_report",
			 "evidence_span": "Socrates teaches Plato.", "uncertainty": "Low", "confidence": 0.8}
		]
	}`

	result, err := ParseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, ontology.EntityPerson, result.Entities[0].Type)
	assert.Equal(t, "teaches", result.Relationships[0].MachineName)
	assert.Equal(t, ontology.ContextHistoricalReport, result.Relationships[0].UsageContext)
}

func TestParseExtractionStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"entities\": [], \"relationships\": []}\n```"
	result, err := ParseExtraction(raw)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
}

func TestParseExtractionMalformedIsOracleFailure(t *testing.T) {
	for _, raw := range []string{
		"I could not find any entities, sorry!",
		`{"entities": [{"name": "X", "type": "Animal", "confidence": 1}]}`,
		`{"entities": [{"type": "Person", "confidence": 1}]}`,
	} {
		_, err := ParseExtraction(raw)
		require.Error(t, err, "input: %s", raw)
		assert.True(t, errors.IsOracleFailure(err), "input: %s", raw)
	}
}

func TestParseSynthesis(t *testing.T) {
	result, err := ParseSynthesis(`{"new_description": "Merged description.", "new_keywords": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Merged description.", result.NewDescription)
	assert.Equal(t, []string{"a", "b"}, result.NewKeywords)

	_, err = ParseSynthesis(`{"new_keywords": []}`)
	assert.True(t, errors.IsOracleFailure(err))
}

func TestTypeConstraintsRendering(t *testing.T) {
	defs := []*ontology.RelationshipType{
		{MachineName: "is_a", Category: "hierarchical", Description: "Hierarchical classification"},
		{
			MachineName: "teaches", Category: "social", Description: "Didactic component",
			AllowedEntityTypes: map[string][]ontology.EntityType{
				"source": {ontology.EntityPerson, ontology.EntityOrganization},
				"target": {ontology.EntityPerson},
			},
		},
	}

	rendered := typeConstraints(defs)
	assert.Contains(t, rendered, "- is_a (hierarchical)")
	assert.Contains(t, rendered, "- teaches (social)")
	assert.Contains(t, rendered, "Person")

	assert.Equal(t, "No predefined types.", typeConstraints(nil))
}

func TestRelationExtractionPromptMentionsEntities(t *testing.T) {
	entities := []ExtractedEntity{
		{Name: "Virtue", Type: ontology.EntityConcept},
		{Name: "Socrates", Type: ontology.EntityPerson},
	}
	prompt := relationExtractionPrompt("some text", entityContext(entities), "No predefined types.")
	assert.True(t, strings.Contains(prompt, "- Virtue (Concept)"))
	assert.True(t, strings.Contains(prompt, "- Socrates (Person)"))
}
