// Package storage provides SQLite persistence for the knowledge graph and
// the in-memory mirror derived from it. The durable store is the single
// source of truth; the mirror is a rebuildable cache updated only after
// commit.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ontology"
)

// Query constants
const (
	entityInsertQuery = `
		INSERT INTO entities (id, name, type, description, keywords, source_knowledge_ids, confidence, doctrinal_context, goals, non_goals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	knowledgeInsertQuery = `
		INSERT INTO knowledge (id, content_raw, timestamp, related_entity_ids)
		VALUES (?, ?, ?, ?)`

	evidenceInsertQuery = `
		INSERT INTO evidence (id, source_knowledge_id, text_span)
		VALUES (?, ?, ?)`

	assertionInsertQuery = `
		INSERT INTO relation_assertions
		(id, knowledge_id, relationship_type_id, source_entity_id, target_entity_id, usage_context, semantic_properties, evidence_ids,
		 extraction_confidence, ontology_confidence, system_confidence, status, created_at, axis, polarity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	typeInsertQuery = `
		INSERT INTO relationship_types (id, machine_name, description, category, directional, deterministic, allowed_entity_types, properties_schema, version, deprecated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// IngestionBatch is the set of records produced by one ingestion run,
// persisted in a single transaction.
type IngestionBatch struct {
	Entry      *ontology.KnowledgeEntry
	Entities   []*ontology.Entity
	Evidence   []*ontology.Evidence
	Assertions []*ontology.RelationAssertion
}

// MergeRewrite is the set of durable changes one entity merge performs,
// applied in a single transaction and mirrored only after commit.
type MergeRewrite struct {
	MasterID    string
	DuplicateID string
	Description string
	Keywords    []string
	SourceIDs   []string
}

// Snapshot is the complete durable state, used to build the mirror.
type Snapshot struct {
	Entities   []*ontology.Entity
	Knowledge  []*ontology.KnowledgeEntry
	Evidence   []*ontology.Evidence
	Types      []*ontology.RelationshipType
	Assertions []*ontology.RelationAssertion
}

// SQLStore implements durable knowledge graph storage over SQLite.
type SQLStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLStore creates a new SQL-backed store.
func NewSQLStore(db *sql.DB, logger *zap.SugaredLogger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger,
	}
}

// WriteIngestion persists an ingestion batch atomically. On any failure all
// writes for the batch are rolled back; nothing partial is ever visible.
func (s *SQLStore) WriteIngestion(ctx context.Context, batch *IngestionBatch) error {
	if batch == nil || batch.Entry == nil {
		return errors.AssertionFailedf("ingestion batch without knowledge entry")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() // Rollback if not committed

	for _, entity := range batch.Entities {
		if err := insertEntity(ctx, tx, entity); err != nil {
			return err
		}
	}

	for _, ev := range batch.Evidence {
		if _, err := tx.ExecContext(ctx, evidenceInsertQuery, ev.ID, ev.SourceKnowledgeID, ev.TextSpan); err != nil {
			return errors.Wrapf(err, "failed to insert evidence %s", ev.ID)
		}
	}

	for _, assertion := range batch.Assertions {
		if err := insertAssertion(ctx, tx, assertion); err != nil {
			return err
		}
	}

	relatedJSON, err := json.Marshal(batch.Entry.RelatedEntityIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal related entity ids")
	}
	_, err = tx.ExecContext(ctx, knowledgeInsertQuery,
		batch.Entry.ID, batch.Entry.RawContent, batch.Entry.Timestamp.Format(time.RFC3339Nano), string(relatedJSON))
	if err != nil {
		return errors.Wrapf(err, "failed to insert knowledge entry %s", batch.Entry.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit ingestion")
	}

	s.logger.Debugw("Ingestion batch committed",
		"knowledge_id", batch.Entry.ID,
		"entities", len(batch.Entities),
		"assertions", len(batch.Assertions),
	)
	return nil
}

// ApplyMerge performs the durable half of an entity merge atomically:
// repoint assertions off the duplicate, overwrite the master, delete the
// duplicate.
func (s *SQLStore) ApplyMerge(ctx context.Context, rw *MergeRewrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE relation_assertions SET source_entity_id = ? WHERE source_entity_id = ?",
		rw.MasterID, rw.DuplicateID); err != nil {
		return errors.Wrap(err, "failed to repoint assertion sources")
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE relation_assertions SET target_entity_id = ? WHERE target_entity_id = ?",
		rw.MasterID, rw.DuplicateID); err != nil {
		return errors.Wrap(err, "failed to repoint assertion targets")
	}

	keywordsJSON, err := json.Marshal(rw.Keywords)
	if err != nil {
		return errors.Wrap(err, "failed to marshal keywords")
	}
	sourceIDsJSON, err := json.Marshal(rw.SourceIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal source ids")
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE entities SET description = ?, keywords = ?, source_knowledge_ids = ? WHERE id = ?",
		rw.Description, string(keywordsJSON), string(sourceIDsJSON), rw.MasterID); err != nil {
		return errors.Wrapf(err, "failed to update master entity %s", rw.MasterID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", rw.DuplicateID); err != nil {
		return errors.Wrapf(err, "failed to delete duplicate entity %s", rw.DuplicateID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit merge")
	}

	s.logger.Infow("Entity merge committed",
		"master_id", rw.MasterID,
		"duplicate_id", rw.DuplicateID,
	)
	return nil
}

// GetEntity loads one entity by id.
func (s *SQLStore) GetEntity(ctx context.Context, id string) (*ontology.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, description, keywords, source_knowledge_ids, confidence, doctrinal_context, goals, non_goals
		FROM entities WHERE id = ?`, id)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("entity %q", id)
	}
	return entity, err
}

// LoadAll reads the complete durable state, used to rebuild the mirror.
func (s *SQLStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, description, keywords, source_knowledge_ids, confidence, doctrinal_context, goals, non_goals
		FROM entities`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query entities")
	}
	defer rows.Close()
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		snapshot.Entities = append(snapshot.Entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "entity rows")
	}

	if snapshot.Knowledge, err = s.loadKnowledge(ctx); err != nil {
		return nil, err
	}
	if snapshot.Evidence, err = s.loadEvidence(ctx); err != nil {
		return nil, err
	}
	if snapshot.Types, err = s.LoadRelationshipTypes(ctx); err != nil {
		return nil, err
	}
	if snapshot.Assertions, err = s.loadAssertions(ctx); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// LoadRelationshipTypes reads every relationship type definition, including
// deprecated and superseded versions. The registry decides which is active.
func (s *SQLStore) LoadRelationshipTypes(ctx context.Context) ([]*ontology.RelationshipType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, machine_name, description, category, directional, deterministic, allowed_entity_types, properties_schema, version, deprecated
		FROM relationship_types`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query relationship types")
	}
	defer rows.Close()

	var defs []*ontology.RelationshipType
	for rows.Next() {
		def := &ontology.RelationshipType{}
		var allowedJSON, propsJSON sql.NullString
		if err := rows.Scan(&def.ID, &def.MachineName, &def.Description, &def.Category,
			&def.Directional, &def.Deterministic, &allowedJSON, &propsJSON, &def.Version, &def.Deprecated); err != nil {
			return nil, errors.Wrap(err, "failed to scan relationship type")
		}
		if allowedJSON.Valid && allowedJSON.String != "" {
			if err := json.Unmarshal([]byte(allowedJSON.String), &def.AllowedEntityTypes); err != nil {
				return nil, errors.Wrapf(err, "bad allowed_entity_types for %s", def.ID)
			}
		}
		if propsJSON.Valid && propsJSON.String != "" {
			if err := json.Unmarshal([]byte(propsJSON.String), &def.PropertiesSchema); err != nil {
				return nil, errors.Wrapf(err, "bad properties_schema for %s", def.ID)
			}
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// CreateRelationshipType persists a new type definition. The import
// workflow that drives this is external; the pipeline only reads types.
func (s *SQLStore) CreateRelationshipType(ctx context.Context, def *ontology.RelationshipType) error {
	var allowedJSON, propsJSON interface{}
	if def.AllowedEntityTypes != nil {
		b, err := json.Marshal(def.AllowedEntityTypes)
		if err != nil {
			return errors.Wrap(err, "failed to marshal allowed entity types")
		}
		allowedJSON = string(b)
	}
	if def.PropertiesSchema != nil {
		b, err := json.Marshal(def.PropertiesSchema)
		if err != nil {
			return errors.Wrap(err, "failed to marshal properties schema")
		}
		propsJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx, typeInsertQuery,
		def.ID, def.MachineName, def.Description, def.Category,
		def.Directional, def.Deterministic, allowedJSON, propsJSON, def.Version, def.Deprecated)
	return errors.Wrapf(err, "failed to insert relationship type %s", def.MachineName)
}

// UpdateRelationshipTypeDescription rewrites one type's description.
func (s *SQLStore) UpdateRelationshipTypeDescription(ctx context.Context, id, description string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE relationship_types SET description = ? WHERE id = ?", description, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update relationship type %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("relationship type id %q", id)
	}
	return nil
}

// DeleteRelationshipType removes a type definition and, transactionally,
// every assertion referencing it.
func (s *SQLStore) DeleteRelationshipType(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM relationship_types WHERE id = ?", id); err != nil {
		return errors.Wrapf(err, "failed to delete relationship type %s", id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM relation_assertions WHERE relationship_type_id = ?", id); err != nil {
		return errors.Wrapf(err, "failed to delete assertions for type %s", id)
	}

	return errors.Wrap(tx.Commit(), "failed to commit type deletion")
}

func (s *SQLStore) loadKnowledge(ctx context.Context) ([]*ontology.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content_raw, timestamp, related_entity_ids FROM knowledge")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query knowledge")
	}
	defer rows.Close()

	var entries []*ontology.KnowledgeEntry
	for rows.Next() {
		entry := &ontology.KnowledgeEntry{}
		var ts, relatedJSON string
		if err := rows.Scan(&entry.ID, &entry.RawContent, &ts, &relatedJSON); err != nil {
			return nil, errors.Wrap(err, "failed to scan knowledge entry")
		}
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, errors.Wrapf(err, "bad timestamp for knowledge %s", entry.ID)
		}
		if err := json.Unmarshal([]byte(relatedJSON), &entry.RelatedEntityIDs); err != nil {
			return nil, errors.Wrapf(err, "bad related_entity_ids for knowledge %s", entry.ID)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLStore) loadEvidence(ctx context.Context) ([]*ontology.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, source_knowledge_id, text_span FROM evidence")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query evidence")
	}
	defer rows.Close()

	var spans []*ontology.Evidence
	for rows.Next() {
		ev := &ontology.Evidence{}
		if err := rows.Scan(&ev.ID, &ev.SourceKnowledgeID, &ev.TextSpan); err != nil {
			return nil, errors.Wrap(err, "failed to scan evidence")
		}
		spans = append(spans, ev)
	}
	return spans, rows.Err()
}

func (s *SQLStore) loadAssertions(ctx context.Context) ([]*ontology.RelationAssertion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, knowledge_id, relationship_type_id, source_entity_id, target_entity_id, usage_context,
		       semantic_properties, evidence_ids, extraction_confidence, ontology_confidence, system_confidence,
		       status, created_at, axis, polarity
		FROM relation_assertions`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query assertions")
	}
	defer rows.Close()

	var assertions []*ontology.RelationAssertion
	for rows.Next() {
		a := &ontology.RelationAssertion{}
		var propsJSON, evidenceJSON, createdAt string
		var usage, axis, polarity sql.NullString
		if err := rows.Scan(&a.ID, &a.KnowledgeID, &a.RelationshipTypeID, &a.SourceEntityID, &a.TargetEntityID,
			&usage, &propsJSON, &evidenceJSON, &a.ExtractionConfidence, &a.OntologyConfidence, &a.SystemConfidence,
			&a.Status, &createdAt, &axis, &polarity); err != nil {
			return nil, errors.Wrap(err, "failed to scan assertion")
		}
		a.UsageContext = ontology.UsageContext(usage.String)
		a.Axis = axis.String
		a.Polarity = polarity.String
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, errors.Wrapf(err, "bad created_at for assertion %s", a.ID)
		}
		if err := json.Unmarshal([]byte(propsJSON), &a.SemanticProperties); err != nil {
			return nil, errors.Wrapf(err, "bad semantic_properties for assertion %s", a.ID)
		}
		if err := json.Unmarshal([]byte(evidenceJSON), &a.EvidenceIDs); err != nil {
			return nil, errors.Wrapf(err, "bad evidence_ids for assertion %s", a.ID)
		}
		assertions = append(assertions, a)
	}
	return assertions, rows.Err()
}

func insertEntity(ctx context.Context, tx *sql.Tx, entity *ontology.Entity) error {
	keywordsJSON, err := json.Marshal(entity.Keywords)
	if err != nil {
		return errors.Wrap(err, "failed to marshal keywords")
	}
	sourceIDsJSON, err := json.Marshal(entity.SourceIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal source ids")
	}
	goalsJSON, err := json.Marshal(entity.Goals)
	if err != nil {
		return errors.Wrap(err, "failed to marshal goals")
	}
	nonGoalsJSON, err := json.Marshal(entity.NonGoals)
	if err != nil {
		return errors.Wrap(err, "failed to marshal non-goals")
	}

	var doctrinal interface{}
	if entity.DoctrinalContext != "" {
		doctrinal = entity.DoctrinalContext
	}

	_, err = tx.ExecContext(ctx, entityInsertQuery,
		entity.ID, entity.Name, string(entity.Type), entity.Description,
		string(keywordsJSON), string(sourceIDsJSON), entity.Confidence,
		doctrinal, string(goalsJSON), string(nonGoalsJSON))
	return errors.Wrapf(err, "failed to insert entity %s", entity.ID)
}

func insertAssertion(ctx context.Context, tx *sql.Tx, a *ontology.RelationAssertion) error {
	propsJSON, err := json.Marshal(a.SemanticProperties)
	if err != nil {
		return errors.Wrap(err, "failed to marshal semantic properties")
	}
	evidenceJSON, err := json.Marshal(a.EvidenceIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal evidence ids")
	}

	var axis, polarity interface{}
	if a.Axis != "" {
		axis = a.Axis
	}
	if a.Polarity != "" {
		polarity = a.Polarity
	}

	_, err = tx.ExecContext(ctx, assertionInsertQuery,
		a.ID, a.KnowledgeID, a.RelationshipTypeID, a.SourceEntityID, a.TargetEntityID,
		string(a.UsageContext), string(propsJSON), string(evidenceJSON),
		a.ExtractionConfidence, a.OntologyConfidence, a.SystemConfidence,
		a.Status, a.CreatedAt.Format(time.RFC3339Nano), axis, polarity)
	return errors.Wrapf(err, "failed to insert assertion %s", a.ID)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row scanner) (*ontology.Entity, error) {
	entity := &ontology.Entity{}
	var entityType, keywordsJSON, sourceIDsJSON, goalsJSON, nonGoalsJSON string
	var doctrinal sql.NullString
	err := row.Scan(&entity.ID, &entity.Name, &entityType, &entity.Description,
		&keywordsJSON, &sourceIDsJSON, &entity.Confidence, &doctrinal, &goalsJSON, &nonGoalsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan entity")
	}
	entity.Type = ontology.EntityType(entityType)
	entity.DoctrinalContext = doctrinal.String
	if err := json.Unmarshal([]byte(keywordsJSON), &entity.Keywords); err != nil {
		return nil, errors.Wrapf(err, "bad keywords for entity %s", entity.ID)
	}
	if err := json.Unmarshal([]byte(sourceIDsJSON), &entity.SourceIDs); err != nil {
		return nil, errors.Wrapf(err, "bad source ids for entity %s", entity.ID)
	}
	if err := json.Unmarshal([]byte(goalsJSON), &entity.Goals); err != nil {
		return nil, errors.Wrapf(err, "bad goals for entity %s", entity.ID)
	}
	if err := json.Unmarshal([]byte(nonGoalsJSON), &entity.NonGoals); err != nil {
		return nil, errors.Wrapf(err, "bad non-goals for entity %s", entity.ID)
	}
	return entity, nil
}
