package validation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/oracle"
)

// Engine holds the three ordered rule tiers, constructed once at startup.
type Engine struct {
	constraints []Rule
	heuristics  []Rule
	evidence    []Rule
	logger      *zap.SugaredLogger
}

// NewEngine builds an engine with the canonical rule set.
func NewEngine(logger *zap.SugaredLogger) *Engine {
	return &Engine{
		constraints: Constraints(),
		heuristics:  Heuristics(),
		evidence:    EvidenceRules(),
		logger:      logger,
	}
}

// OntologyConfidence evaluates all tiers against the candidate and returns
// the confidence in [0,1] with the triggered reasons.
//
// Tier 1 runs first; any 0.0 short-circuits to 0.0 immediately. Otherwise
// every rule score folds into a running minimum starting at 1.0 — scores are
// never summed or averaged.
func (e *Engine) OntologyConfidence(cand *oracle.ExtractedRelationship, typ *ontology.RelationshipType, src, tgt *ontology.Entity) (float64, []string) {
	score := 1.0
	var reasons []string

	for _, rule := range e.constraints {
		s, reason := rule.Evaluate(cand, typ, src, tgt)
		if s == 0.0 {
			e.logger.Warnw("Constraint violated",
				"rule", rule.ID,
				"type", typ.MachineName,
				"reason", reason,
			)
			return 0.0, []string{fmt.Sprintf("[Constraint] %s: %s", rule.ID, reason)}
		}
		if s < score {
			score = s
		}
		if s < 1.0 && reason != "" {
			reasons = append(reasons, fmt.Sprintf("[Constraint] %s: %s", rule.ID, reason))
		}
	}

	for _, rule := range e.heuristics {
		s, reason := rule.Evaluate(cand, typ, src, tgt)
		if s < score {
			score = s
		}
		if s < 1.0 && reason != "" {
			reasons = append(reasons, fmt.Sprintf("[Heuristic] %s: %s", rule.ID, reason))
		}
	}

	for _, rule := range e.evidence {
		s, reason := rule.Evaluate(cand, typ, src, tgt)
		if s < score {
			score = s
		}
		if s < 1.0 && reason != "" {
			reasons = append(reasons, fmt.Sprintf("[Evidence] %s: %s", rule.ID, reason))
		}
	}

	if score < 1.0 {
		e.logger.Debugw("Ontology confidence reduced",
			"type", typ.MachineName,
			"score", score,
			"reasons", reasons,
		)
	}
	return score, reasons
}
