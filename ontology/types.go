// Package ontology defines the persistent data model of the knowledge graph:
// entities, knowledge entries, evidence, relationship types, and relation
// assertions, plus the read-only relationship-type registry.
package ontology

import (
	"strings"
	"time"
)

// EntityType is the closed set of entity classifications.
type EntityType string

const (
	EntityConcept      EntityType = "Concept"
	EntityEvent        EntityType = "Event"
	EntityProcess      EntityType = "Process"
	EntityObject       EntityType = "Object"
	EntityPerson       EntityType = "Person"
	EntityOrganization EntityType = "Organization"
	EntityPlace        EntityType = "Place"
)

// ValidEntityType reports whether s names a known entity type.
func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityConcept, EntityEvent, EntityProcess, EntityObject,
		EntityPerson, EntityOrganization, EntityPlace:
		return true
	}
	return false
}

// UsageContext is the logical role a relationship plays in its source text.
type UsageContext string

const (
	ContextDefinition       UsageContext = "definition"
	ContextDoctrinalClaim   UsageContext = "doctrinal_claim"
	ContextHistoricalReport UsageContext = "historical_report"
	ContextObservation      UsageContext = "observation"
	ContextHypothesis       UsageContext = "hypothesis"
	ContextInterpretation   UsageContext = "interpretation"
	ContextComparison       UsageContext = "comparison"
	ContextRefutation       UsageContext = "refutation"
)

// UncertaintyLevel grades how tentative an extracted relationship is.
type UncertaintyLevel string

const (
	UncertaintyLow    UncertaintyLevel = "Low"
	UncertaintyMedium UncertaintyLevel = "Medium"
	UncertaintyHigh   UncertaintyLevel = "High"
)

// StatusExtracted is the lifecycle status every assertion starts in.
const StatusExtracted = "extracted"

// Entity is a node in the knowledge graph.
//
// Entities are created only as new rows during ingestion (extraction never
// updates an existing entity in place), mutated only by the merge engine,
// and destroyed only when merged away.
type Entity struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Type             EntityType `json:"type"`
	Description      string     `json:"description"`
	Keywords         []string   `json:"keywords"`
	SourceIDs        []string   `json:"source_knowledge_ids"`
	Confidence       float64    `json:"confidence"`
	DoctrinalContext string     `json:"doctrinal_context,omitempty"`
	Goals            []string   `json:"goals,omitempty"`
	NonGoals         []string   `json:"non_goals,omitempty"`
}

// KnowledgeEntry records one verbatim ingested text. Immutable after creation.
type KnowledgeEntry struct {
	ID               string    `json:"id"`
	RawContent       string    `json:"content_raw"`
	Timestamp        time.Time `json:"timestamp"`
	RelatedEntityIDs []string  `json:"related_entity_ids"`
}

// Evidence is a verbatim text span asserted to support a relationship.
// Immutable once created; multiple assertions may reference the same span.
type Evidence struct {
	ID                string `json:"id"`
	SourceKnowledgeID string `json:"source_knowledge_id"`
	TextSpan          string `json:"text_span"`
}

// PropertySchema declares the expected shape of one semantic property.
// Type is free-form ("string", "number", "enum"); Values constrains enums.
type PropertySchema struct {
	Type   string        `json:"type"`
	Values []interface{} `json:"values,omitempty"`
}

// RelationshipType defines one admissible relationship kind.
//
// Multiple versions of the same MachineName may coexist; at most one
// non-deprecated version is active and used for resolution.
type RelationshipType struct {
	ID                 string                    `json:"id"`
	MachineName        string                    `json:"machine_name"`
	Description        string                    `json:"description"`
	Category           string                    `json:"category"`
	Directional        bool                      `json:"directional"`
	Deterministic      bool                      `json:"deterministic"`
	AllowedEntityTypes map[string][]EntityType   `json:"allowed_entity_types,omitempty"` // keys: "source", "target"
	PropertiesSchema   map[string]PropertySchema `json:"properties_schema,omitempty"`
	Version            string                    `json:"version"`
	Deprecated         bool                      `json:"deprecated"`
}

// RelationAssertion is one admitted, confidence-scored graph fact.
//
// Assertions are never mutated after creation except that the endpoint ids
// are rewritten in place when an endpoint entity is merged away.
type RelationAssertion struct {
	ID                 string                 `json:"id"`
	KnowledgeID        string                 `json:"knowledge_id"`
	RelationshipTypeID string                 `json:"relationship_type_id"`
	SourceEntityID     string                 `json:"source_entity_id"`
	TargetEntityID     string                 `json:"target_entity_id"`
	SemanticProperties map[string]interface{} `json:"semantic_properties"`
	EvidenceIDs        []string               `json:"evidence_ids"`

	Axis     string `json:"axis,omitempty"`
	Polarity string `json:"polarity,omitempty"`

	ExtractionConfidence float64      `json:"extraction_confidence"`
	OntologyConfidence   float64      `json:"ontology_confidence"`
	SystemConfidence     float64      `json:"system_confidence"`
	Status               string       `json:"status"`
	CreatedAt            time.Time    `json:"created_at"`
	UsageContext         UsageContext `json:"usage_context,omitempty"`
}

// NormalizeName folds an entity name for per-run resolution:
// lower-cased, surrounding whitespace stripped.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
