// Package validation decides admission of candidate relationships into the
// knowledge graph and scores ontology confidence.
//
// Rules are organized in three ordered tiers: hard constraints (a 0.0 score
// rejects outright), heuristics (soft penalties), and evidence checks. Every
// rule score folds into a running minimum; a violation is a ceiling on
// trust, never a partial deduction.
package validation

import (
	"strings"

	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/oracle"
)

// CheckFunc evaluates one rule against a candidate relationship, its
// resolved type, and its resolved endpoint entities. It returns a score in
// [0,1] and a human-readable reason when the score is below 1.0.
type CheckFunc func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string)

// Rule is one predicate/scoring rule with a stable id for diagnostics.
type Rule struct {
	ID          string
	Description string
	Check       CheckFunc
}

// Evaluate runs the rule.
func (r Rule) Evaluate(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
	return r.Check(cand, typ, src, tgt)
}

// actingRelations are relations that require an agent-capable source.
var actingRelations = map[string]bool{
	"causes":   true,
	"teaches":  true,
	"performs": true,
}

// imperativeCues mark advice or instruction rather than factual assertion.
var imperativeCues = []string{"practice ", "do not ", "don't ", "try to ", "let us ", "you must ", "should "}

// definitionalCues are the phrasings required for an is_a assertion.
var definitionalCues = []string{"is a", "belongs to", "type of", "kind of", "class of"}

// Constraints returns the tier-1 hard constraints. Any 0.0 score rejects the
// candidate unconditionally.
func Constraints() []Rule {
	return []Rule{
		{
			ID:          "R1",
			Description: "instance_of target must be a Concept",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.MachineName == "instance_of" && tgt.Type != ontology.EntityConcept {
					return 0.0, "Target must be Concept"
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R2",
			Description: "subclass_of requires Concept -> Concept",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.MachineName == "subclass_of" && (src.Type != ontology.EntityConcept || tgt.Type != ontology.EntityConcept) {
					return 0.0, "Requires Concept->Concept"
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R5",
			Description: "deterministic types require probability 1.0",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.Deterministic {
					if prob, ok := numericProperty(cand.SemanticProperties, "probability"); ok && prob < 1.0 {
						return 0.0, "Deterministic means prob 1.0"
					}
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R6",
			Description: "temporal types require a temporal_lag property",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.Category == "temporal" {
					if _, ok := cand.SemanticProperties["temporal_lag"]; !ok {
						return 0.0, "Missing temporal_lag"
					}
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R10",
			Description: "hypothesis context excludes deterministic types",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if cand.UsageContext == ontology.ContextHypothesis && typ.Deterministic {
					return 0.0, "Hypothesis cannot be deterministic"
				}
				return 1.0, ""
			},
		},
		{
			// Strict by intent: an is_a lacking definitional phrasing is a
			// hard rejection even though it superficially looks like a
			// heuristic.
			ID:          "R11",
			Description: "is_a evidence must explicitly indicate type",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.MachineName == "is_a" && !hasDefinitionalCue(cand.EvidenceSpan) {
					return 0.0, "Evidence does not support is_a"
				}
				return 1.0, ""
			},
		},
	}
}

// Heuristics returns the tier-2 soft scoring rules.
func Heuristics() []Rule {
	return []Rule{
		{
			ID:          "R3",
			Description: "causal relations should not target a Person",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.Category == "causal" && tgt.Type == ontology.EntityPerson {
					return 0.5, "Causal target Person (Heuristic)"
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R7",
			Description: "a Concept cannot act",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if src.Type == ontology.EntityConcept && actingRelations[typ.MachineName] {
					return 0.5, "Concept cannot Act (Heuristic)"
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R8",
			Description: "teaches requires an agent source",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.MachineName == "teaches" && src.Type != ontology.EntityPerson && src.Type != ontology.EntityOrganization {
					return 0.5, "Teacher must be Agent (Heuristic)"
				}
				return 1.0, ""
			},
		},
		{
			ID:          "R4",
			Description: "imperative evidence contradicts a factual performs",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				if typ.MachineName == "performs" {
					span := strings.ToLower(cand.EvidenceSpan)
					for _, cue := range imperativeCues {
						if strings.Contains(span, cue) {
							return 0.3, "Imperative/Advice evidence implies no factual 'performs'"
						}
					}
				}
				return 1.0, ""
			},
		},
	}
}

// EvidenceRules returns the tier-3 evidence checks.
func EvidenceRules() []Rule {
	return []Rule{
		{
			ID:          "R9",
			Description: "evidence should mention both endpoint entities",
			Check: func(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, string) {
				span := strings.ToLower(cand.EvidenceSpan)
				if !strings.Contains(span, strings.ToLower(src.Name)) || !strings.Contains(span, strings.ToLower(tgt.Name)) {
					return 0.6, "Evidence missing entity names"
				}
				return 1.0, ""
			},
		},
	}
}

// hasDefinitionalCue reports whether the evidence span contains explicit
// definitional phrasing.
func hasDefinitionalCue(evidence string) bool {
	span := strings.ToLower(evidence)
	for _, cue := range definitionalCues {
		if strings.Contains(span, cue) {
			return true
		}
	}
	return false
}

// numericProperty extracts a numeric semantic property, tolerating the
// int/float ambiguity of decoded JSON.
func numericProperty(props map[string]interface{}, key string) (float64, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
