// Package ingest implements the ingestion pipeline: oracle extraction,
// per-run reference resolution, admission validation, confidence scoring,
// and the single all-or-nothing durable write.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/oracle"
	"github.com/noemakb/noema/storage"
	"github.com/noemakb/noema/validation"
)

// Rejection records one candidate relationship that did not survive
// admission, for the ingestion report. Err wraps ErrUnresolvedReference or
// ErrValidationRejected so callers can classify with errors.Is.
type Rejection struct {
	MachineName string
	Source      string
	Target      string
	Err         error
}

// Report summarizes one ingestion run.
type Report struct {
	KnowledgeID        string
	EntitiesCreated    int
	AssertionsAdmitted int
	Rejections         []Rejection
}

// Pipeline turns free text into committed knowledge graph records.
//
// Extraction is immutable: every run creates fresh entity rows even when
// entities of the same name already exist. Reconciliation is the merge
// engine's job, not ingestion's.
type Pipeline struct {
	extractor oracle.Extractor
	registry  *ontology.Registry
	validator *validation.Validator
	store     *storage.SQLStore
	mirror    *storage.Mirror
	logger    *zap.SugaredLogger
}

// NewPipeline wires the ingestion pipeline.
func NewPipeline(extractor oracle.Extractor, registry *ontology.Registry, validator *validation.Validator,
	store *storage.SQLStore, mirror *storage.Mirror, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		registry:  registry,
		validator: validator,
		store:     store,
		mirror:    mirror,
		logger:    logger,
	}
}

// Ingest runs the full pipeline for one text. On oracle failure or an empty
// extraction nothing is written; otherwise all surviving records commit in a
// single transaction and the mirror is updated after commit.
func (p *Pipeline) Ingest(ctx context.Context, text string) (*Report, error) {
	extraction, err := p.extractor.Extract(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "extraction failed")
	}
	if len(extraction.Entities) == 0 {
		return nil, errors.Wrap(errors.ErrNothingToIngest, "extraction produced no entities")
	}

	knowledgeID := uuid.New().String()
	now := time.Now().UTC()

	// Fresh entities for every run. The byName index resolves relationship
	// endpoints within this run only; pre-existing entities are invisible.
	entities := make([]*ontology.Entity, 0, len(extraction.Entities))
	byName := make(map[string]*ontology.Entity, len(extraction.Entities))
	for _, cand := range extraction.Entities {
		entity := &ontology.Entity{
			ID:               uuid.New().String(),
			Name:             cand.Name,
			Type:             cand.Type,
			Description:      cand.Description,
			Keywords:         cand.Keywords,
			SourceIDs:        []string{knowledgeID},
			Confidence:       cand.Confidence,
			DoctrinalContext: cand.DoctrinalContext,
			Goals:            cand.Goals,
			NonGoals:         cand.NonGoals,
		}
		entities = append(entities, entity)
		byName[ontology.NormalizeName(entity.Name)] = entity
	}

	report := &Report{KnowledgeID: knowledgeID, EntitiesCreated: len(entities)}
	var evidence []*ontology.Evidence
	var assertions []*ontology.RelationAssertion

	for i := range extraction.Relationships {
		cand := &extraction.Relationships[i]

		typ, err := p.registry.Resolve(cand.MachineName)
		if err != nil {
			p.skip(report, cand, errors.Wrapf(errors.ErrUnresolvedReference,
				"unknown relationship type %q", cand.MachineName))
			continue
		}
		src, ok := byName[ontology.NormalizeName(cand.SourceEntityName)]
		if !ok {
			p.skip(report, cand, errors.Wrapf(errors.ErrUnresolvedReference,
				"source entity %q not extracted in this run", cand.SourceEntityName))
			continue
		}
		tgt, ok := byName[ontology.NormalizeName(cand.TargetEntityName)]
		if !ok {
			p.skip(report, cand, errors.Wrapf(errors.ErrUnresolvedReference,
				"target entity %q not extracted in this run", cand.TargetEntityName))
			continue
		}

		decision := p.validator.Admit(cand, typ, src, tgt)
		if !decision.Admitted {
			p.skip(report, cand, errors.Wrap(errors.ErrValidationRejected, decision.Reason))
			continue
		}

		ev := &ontology.Evidence{
			ID:                uuid.New().String(),
			SourceKnowledgeID: knowledgeID,
			TextSpan:          cand.EvidenceSpan,
		}
		evidence = append(evidence, ev)

		assertions = append(assertions, &ontology.RelationAssertion{
			ID:                 uuid.New().String(),
			KnowledgeID:        knowledgeID,
			RelationshipTypeID: typ.ID,
			SourceEntityID:     src.ID,
			TargetEntityID:     tgt.ID,
			SemanticProperties: cand.SemanticProperties,
			EvidenceIDs:        []string{ev.ID},

			Axis:     cand.Axis,
			Polarity: cand.Polarity,

			ExtractionConfidence: cand.Confidence,
			OntologyConfidence:   decision.OntologyConfidence,
			SystemConfidence:     systemConfidence(cand.Confidence, src.Confidence, tgt.Confidence, decision.OntologyConfidence),
			Status:               ontology.StatusExtracted,
			CreatedAt:            now,
			UsageContext:         cand.UsageContext,
		})
	}
	report.AssertionsAdmitted = len(assertions)

	relatedIDs := make([]string, 0, len(entities))
	for _, e := range entities {
		relatedIDs = append(relatedIDs, e.ID)
	}
	batch := &storage.IngestionBatch{
		Entry: &ontology.KnowledgeEntry{
			ID:               knowledgeID,
			RawContent:       text,
			Timestamp:        now,
			RelatedEntityIDs: relatedIDs,
		},
		Entities:   entities,
		Evidence:   evidence,
		Assertions: assertions,
	}

	if err := p.store.WriteIngestion(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "failed to persist ingestion")
	}
	p.mirror.ApplyIngestion(batch)

	p.logger.Infow("Ingestion complete",
		"knowledge_id", knowledgeID,
		"entities", report.EntitiesCreated,
		"admitted", report.AssertionsAdmitted,
		"rejected", len(report.Rejections),
	)
	return report, nil
}

func (p *Pipeline) skip(report *Report, cand *oracle.ExtractedRelationship, reason error) {
	p.logger.Warnw("Relationship skipped",
		"type", cand.MachineName,
		"source", cand.SourceEntityName,
		"target", cand.TargetEntityName,
		"reason", reason,
	)
	report.Rejections = append(report.Rejections, Rejection{
		MachineName: cand.MachineName,
		Source:      cand.SourceEntityName,
		Target:      cand.TargetEntityName,
		Err:         reason,
	})
}

// systemConfidence is the running minimum over every confidence the
// assertion depends on. Scores never combine by sum or average.
func systemConfidence(extraction, source, target, ontologyConf float64) float64 {
	min := extraction
	for _, v := range []float64{source, target, ontologyConf} {
		if v < min {
			min = v
		}
	}
	return min
}
