// Package oracle defines the external text-generation collaborators: the
// extraction oracle that turns free text into candidate entities and
// relationships, and the synthesis oracle that merges entity descriptions.
//
// Both collaborators are all-or-nothing: a failed or unparseable call is
// reported as an oracle failure and never retried here.
package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ontology"
)

// ExtractedEntity is one candidate entity from an extraction run.
type ExtractedEntity struct {
	Name             string              `json:"name"`
	Type             ontology.EntityType `json:"type"`
	Description      string              `json:"description"`
	Keywords         []string            `json:"keywords"`
	Confidence       float64             `json:"confidence"`
	DoctrinalContext string              `json:"doctrinal_context,omitempty"`
	Goals            []string            `json:"goals,omitempty"`
	NonGoals         []string            `json:"non_goals,omitempty"`
}

// ExtractedRelationship is one candidate relationship from an extraction run.
// Entity endpoints are referenced by name; the pipeline resolves them against
// the entities of the same run.
type ExtractedRelationship struct {
	MachineName        string                    `json:"machine_name"`
	SourceEntityName   string                    `json:"source_entity"`
	TargetEntityName   string                    `json:"target_entity"`
	SemanticProperties map[string]interface{}    `json:"semantic_properties"`
	UsageContext       ontology.UsageContext     `json:"usage_context"`
	EvidenceSpan       string                    `json:"evidence_span"`
	Uncertainty        ontology.UncertaintyLevel `json:"uncertainty,omitempty"`
	Axis               string                    `json:"axis,omitempty"`
	Polarity           string                    `json:"polarity,omitempty"`
	Confidence         float64                   `json:"confidence"`
}

// RawExtraction is the combined result of one extraction call.
type RawExtraction struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// SynthesisResult is the merged description produced for an entity pair.
type SynthesisResult struct {
	NewDescription string   `json:"new_description"`
	NewKeywords    []string `json:"new_keywords"`
}

// Extractor produces extraction candidates from free text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*RawExtraction, error)
}

// Synthesizer merges the descriptions and keywords of two entities.
type Synthesizer interface {
	Synthesize(ctx context.Context, master, duplicate *ontology.Entity) (*SynthesisResult, error)
}

// ParseExtraction decodes an oracle response into a RawExtraction.
// The response may be wrapped in a markdown code fence. Malformed JSON or
// an unknown entity type is an oracle failure.
func ParseExtraction(raw string) (*RawExtraction, error) {
	var result RawExtraction
	if err := json.Unmarshal([]byte(stripFence(raw)), &result); err != nil {
		return nil, errors.Wrap(errors.ErrOracleFailure, err.Error())
	}
	for _, e := range result.Entities {
		if e.Name == "" {
			return nil, errors.Wrap(errors.ErrOracleFailure, "extracted entity with empty name")
		}
		if !ontology.ValidEntityType(string(e.Type)) {
			return nil, errors.Wrapf(errors.ErrOracleFailure, "unknown entity type %q for %q", e.Type, e.Name)
		}
	}
	return &result, nil
}

// ParseSynthesis decodes an oracle response into a SynthesisResult.
func ParseSynthesis(raw string) (*SynthesisResult, error) {
	var result SynthesisResult
	if err := json.Unmarshal([]byte(stripFence(raw)), &result); err != nil {
		return nil, errors.Wrap(errors.ErrOracleFailure, err.Error())
	}
	if result.NewDescription == "" {
		return nil, errors.Wrap(errors.ErrOracleFailure, "synthesis returned empty description")
	}
	return &result, nil
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
