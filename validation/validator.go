package validation

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/oracle"
)

// DefaultThreshold is the minimum ontology confidence for admission.
const DefaultThreshold = 0.5

// interrogativeOpeners are auxiliaries/verbs that open a question.
var interrogativeOpeners = map[string]bool{
	"does": true,
	"is":   true,
	"are":  true,
	"can":  true,
}

// Guard is a pre-validation predicate applied before ontology scoring.
// It returns false with a reason to reject the candidate outright.
type Guard struct {
	ID    string
	Check func(cand *oracle.ExtractedRelationship) (bool, string)
}

// Guards returns the pre-validation guards in evaluation order.
func Guards() []Guard {
	return []Guard{
		{
			ID: "block_invalid_is_a",
			Check: func(cand *oracle.ExtractedRelationship) (bool, string) {
				if cand.MachineName == "is_a" && !hasDefinitionalCue(cand.EvidenceSpan) {
					return false, "is_a without definitional evidence phrasing"
				}
				return true, ""
			},
		},
		{
			ID: "block_question_evidence",
			Check: func(cand *oracle.ExtractedRelationship) (bool, string) {
				text := strings.TrimSpace(cand.EvidenceSpan)
				if strings.HasSuffix(text, "?") {
					return false, "question-form evidence"
				}
				fields := strings.Fields(strings.ToLower(text))
				if len(fields) > 0 && interrogativeOpeners[fields[0]] {
					return false, "evidence opens with an interrogative"
				}
				return true, ""
			},
		},
	}
}

// Decision is the outcome of the full admission gate.
type Decision struct {
	Admitted           bool
	OntologyConfidence float64
	Reason             string   // rejection reason, empty when admitted
	Diagnostics        []string // triggered rule reasons, admitted or not
}

// Validator is the admission gate combining pre-validation guards, ontology
// confidence scoring, and schema conformance.
type Validator struct {
	engine *Engine
	guards []Guard
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	threshold float64
}

// NewValidator builds the admission gate. A zero threshold falls back to
// DefaultThreshold.
func NewValidator(engine *Engine, threshold float64, logger *zap.SugaredLogger) *Validator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Validator{
		engine:    engine,
		guards:    Guards(),
		threshold: threshold,
		logger:    logger,
	}
}

// SetThreshold replaces the admission threshold, used by config reload.
// A zero or negative value falls back to DefaultThreshold.
func (v *Validator) SetThreshold(threshold float64) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	v.mu.Lock()
	v.threshold = threshold
	v.mu.Unlock()
}

// Admit runs the full admission gate on one candidate relationship.
// A rejected candidate produces no records anywhere; the caller skips it.
func (v *Validator) Admit(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) Decision {
	// 1. Pre-validation guards
	for _, guard := range v.guards {
		if ok, reason := guard.Check(cand); !ok {
			v.logger.Warnw("Guard rejected relationship",
				"guard", guard.ID,
				"type", cand.MachineName,
				"reason", reason,
			)
			return Decision{Reason: fmt.Sprintf("%s: %s", guard.ID, reason)}
		}
	}

	// 2. Ontology confidence threshold. A score at the threshold is not
	// enough: a bare 0.5 heuristic penalty (e.g. a Concept used as an
	// acting source) must reject the candidate.
	v.mu.RLock()
	threshold := v.threshold
	v.mu.RUnlock()

	conf, diagnostics := v.engine.OntologyConfidence(cand, typ, src, tgt)
	if conf <= threshold {
		return Decision{
			OntologyConfidence: conf,
			Reason:             fmt.Sprintf("ontology confidence %.2f below threshold %.2f", conf, threshold),
			Diagnostics:        diagnostics,
		}
	}

	// 3. Schema conformance
	if reason := checkSchema(cand, typ, src, tgt); reason != "" {
		return Decision{
			OntologyConfidence: conf,
			Reason:             reason,
			Diagnostics:        diagnostics,
		}
	}

	return Decision{
		Admitted:           true,
		OntologyConfidence: conf,
		Diagnostics:        diagnostics,
	}
}

// checkSchema validates endpoint entity types and semantic properties
// against the relationship type's declared schema. Empty result means
// conformant.
func checkSchema(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) string {
	if typ.AllowedEntityTypes != nil {
		if allowed, ok := typ.AllowedEntityTypes["source"]; ok && !containsType(allowed, src.Type) {
			return fmt.Sprintf("source type %s not in allowed set %v", src.Type, allowed)
		}
		if allowed, ok := typ.AllowedEntityTypes["target"]; ok && !containsType(allowed, tgt.Type) {
			return fmt.Sprintf("target type %s not in allowed set %v", tgt.Type, allowed)
		}
	}

	for key, schema := range typ.PropertiesSchema {
		value, present := cand.SemanticProperties[key]
		if !present {
			return fmt.Sprintf("missing declared property %q", key)
		}
		if schema.Type == "enum" && !containsValue(schema.Values, value) {
			return fmt.Sprintf("property %q value %v not in declared values", key, value)
		}
	}

	return ""
}

func containsType(set []ontology.EntityType, t ontology.EntityType) bool {
	for _, a := range set {
		if a == t {
			return true
		}
	}
	return false
}

func containsValue(values []interface{}, v interface{}) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
