package oracle

import (
	"fmt"
	"strings"

	"github.com/noemakb/noema/ontology"
)

// entityExtractionPrompt asks for candidate entities only (phase 1).
func entityExtractionPrompt(text string) string {
	return fmt.Sprintf(`Analyze the text: %q

You are an expert Knowledge Graph Engineer performing epistemic extraction.

Task: Identify all important entities.
- Assign a type: Concept, Event, Process, Object, Person, Organization, Place.
- Provide a brief description and keywords.
- Identify "doctrinal_context" if applicable (underlying principle).
- Identify explicit "goals" and "non_goals" if stated.
- Estimate confidence (0.0 to 1.0).

Respond with JSON only, no prose, in this shape:
{"entities": [{"name": "...", "type": "...", "description": "...", "keywords": ["..."], "confidence": 0.9, "doctrinal_context": null, "goals": [], "non_goals": []}], "relationships": []}`, text)
}

// relationExtractionPrompt asks for relationships between already-extracted
// entities (phase 2), constrained to the active relationship types.
func relationExtractionPrompt(text, entityContext, typeConstraints string) string {
	return fmt.Sprintf(`Analyze the text: %q

You are an expert Knowledge Graph Engineer performing epistemic extraction.

Known entities:
%s

STEP 0: EPISTEMIC ANALYSIS (MANDATORY)
Before extracting any relationship, classify each relevant sentence into ONE of:
factual_assertion, definition, instruction/command/advice, question/inquiry,
comparison/contrast, refutation/denial, report of belief or teaching.

DO NOT extract factual relationships from questions, commands or advice, or
hypothetical examples, unless the text EXPLICITLY states the fact as true.

RELATION EXTRACTION RULES:
- Only extract ontology relationships from factual assertions and explicit definitions.
- instruction/advice: do NOT use relations like "performs", "causes", "is_a".
- question: do NOT assert the relation as true.
- report of belief: mark "usage_context" as "doctrinal_claim" and reduce confidence.
- If unsure whether the action actually occurred, do NOT extract the relation.

IMPORTANT DISTINCTIONS:
1. "Teaches" vs "student of": "X teaches Y" requires evidence that X actively
   instructs Y. "student of", "pupil of", or questions about teaching do NOT
   imply an actual teaching event.
2. STRICT RULE for is_a / instance_of: only extract when the evidence contains
   explicit definitional language ("X is a Y", "X refers to Y", "X is defined
   as Y"). Explanations answering "how" without explicit class assignment must
   NOT be mapped to is_a.

Use ONLY these allowed types:
%s

For each relationship fill: machine_name, source_entity, target_entity,
semantic_properties, usage_context (definition, doctrinal_claim,
historical_report, observation, hypothesis, interpretation, comparison,
refutation), evidence_span (EXACT sentence or phrase from the text),
uncertainty (Low/Medium/High), axis, polarity (Positive/Negative/Neutral),
and confidence (0.0 to 1.0).

Respond with JSON only, no prose:
{"entities": [], "relationships": [{"machine_name": "...", "source_entity": "...", "target_entity": "...", "semantic_properties": {}, "usage_context": "...", "evidence_span": "...", "uncertainty": "Low", "axis": null, "polarity": null, "confidence": 0.9}]}`,
		text, entityContext, typeConstraints)
}

// synthesisPrompt asks for a merged description and keyword set for two
// records of the same underlying entity.
func synthesisPrompt(master, duplicate *ontology.Entity) string {
	return fmt.Sprintf(`Merge knowledge for the entity: %q.

1. Old data: %q
   (Keywords: %s)
2. New data: %q
   (Keywords: %s)

Task: Write a new synthesized description, preserving historical information,
adding new details, and removing duplicates.

Respond with JSON only, no prose:
{"new_description": "...", "new_keywords": ["..."]}`,
		master.Name,
		master.Description, strings.Join(master.Keywords, ", "),
		duplicate.Description, strings.Join(duplicate.Keywords, ", "))
}

// typeConstraints renders the active relationship types for the phase-2 prompt.
func typeConstraints(defs []*ontology.RelationshipType) string {
	if len(defs) == 0 {
		return "No predefined types."
	}
	var lines []string
	for _, def := range defs {
		line := fmt.Sprintf("- %s (%s): %s.", def.MachineName, def.Category, def.Description)
		if def.AllowedEntityTypes != nil {
			line += fmt.Sprintf(" Source: %v. Target: %v.",
				def.AllowedEntityTypes["source"], def.AllowedEntityTypes["target"])
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// entityContext renders the phase-1 entities for the phase-2 prompt.
func entityContext(entities []ExtractedEntity) string {
	var lines []string
	for _, e := range entities {
		lines = append(lines, fmt.Sprintf("- %s (%s)", e.Name, e.Type))
	}
	return strings.Join(lines, "\n")
}
