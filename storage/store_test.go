package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noemakb/noema/errors"
	qtesting "github.com/noemakb/noema/internal/testing"
	"github.com/noemakb/noema/ontology"
)

func testStore(t *testing.T) *SQLStore {
	t.Helper()
	return NewSQLStore(qtesting.CreateTestDB(t), zap.NewNop().Sugar())
}

func sampleBatch(t *testing.T) *IngestionBatch {
	t.Helper()

	knowledgeID := uuid.New().String()
	source := &ontology.Entity{
		ID:          uuid.New().String(),
		Name:        "Socrates",
		Type:        ontology.EntityPerson,
		Description: "Athenian philosopher",
		Keywords:    []string{"philosophy", "dialectic"},
		SourceIDs:   []string{knowledgeID},
		Confidence:  0.95,
	}
	target := &ontology.Entity{
		ID:          uuid.New().String(),
		Name:        "virtue",
		Type:        ontology.EntityConcept,
		Description: "Moral excellence",
		Keywords:    []string{"ethics"},
		SourceIDs:   []string{knowledgeID},
		Confidence:  0.9,
	}
	ev := &ontology.Evidence{
		ID:                uuid.New().String(),
		SourceKnowledgeID: knowledgeID,
		TextSpan:          "Socrates teaches that virtue is knowledge.",
	}
	assertion := &ontology.RelationAssertion{
		ID:                 uuid.New().String(),
		KnowledgeID:        knowledgeID,
		RelationshipTypeID: "2f1f3a6e-8f33-4a3e-9a41-0f6c1d2b9005",
		SourceEntityID:     source.ID,
		TargetEntityID:     target.ID,
		SemanticProperties: map[string]interface{}{},
		EvidenceIDs:        []string{ev.ID},

		ExtractionConfidence: 0.9,
		OntologyConfidence:   1.0,
		SystemConfidence:     0.9,
		Status:               ontology.StatusExtracted,
		CreatedAt:            time.Now().UTC(),
		UsageContext:         ontology.ContextDoctrinalClaim,
	}
	return &IngestionBatch{
		Entry: &ontology.KnowledgeEntry{
			ID:               knowledgeID,
			RawContent:       "Socrates teaches that virtue is knowledge.",
			Timestamp:        time.Now().UTC(),
			RelatedEntityIDs: []string{source.ID, target.ID},
		},
		Entities:   []*ontology.Entity{source, target},
		Evidence:   []*ontology.Evidence{ev},
		Assertions: []*ontology.RelationAssertion{assertion},
	}
}

func TestWriteIngestionRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	batch := sampleBatch(t)
	require.NoError(t, store.WriteIngestion(ctx, batch))

	snapshot, err := store.LoadAll(ctx)
	require.NoError(t, err)

	require.Len(t, snapshot.Entities, 2)
	require.Len(t, snapshot.Knowledge, 1)
	require.Len(t, snapshot.Evidence, 1)
	require.Len(t, snapshot.Assertions, 1)

	got, err := store.GetEntity(ctx, batch.Entities[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Socrates", got.Name)
	assert.Equal(t, ontology.EntityPerson, got.Type)
	assert.Equal(t, []string{"philosophy", "dialectic"}, got.Keywords)
	assert.Equal(t, []string{batch.Entry.ID}, got.SourceIDs)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)

	a := snapshot.Assertions[0]
	assert.Equal(t, batch.Assertions[0].ID, a.ID)
	assert.Equal(t, ontology.ContextDoctrinalClaim, a.UsageContext)
	assert.Equal(t, ontology.StatusExtracted, a.Status)
	assert.InDelta(t, 0.9, a.SystemConfidence, 1e-9)
	assert.Equal(t, []string{batch.Evidence[0].ID}, a.EvidenceIDs)
}

func TestWriteIngestionIsAtomic(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// Duplicate assertion id makes the last insert of the batch fail.
	batch := sampleBatch(t)
	dup := *batch.Assertions[0]
	batch.Assertions = append(batch.Assertions, &dup)

	err := store.WriteIngestion(ctx, batch)
	require.Error(t, err)

	snapshot, loadErr := store.LoadAll(ctx)
	require.NoError(t, loadErr)
	assert.Empty(t, snapshot.Entities, "failed batch must leave no entities behind")
	assert.Empty(t, snapshot.Knowledge)
	assert.Empty(t, snapshot.Evidence)
	assert.Empty(t, snapshot.Assertions)
}

func TestWriteIngestionRollsBackOnFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	store := NewSQLStore(conn, zap.NewNop().Sugar())
	batch := sampleBatch(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO entities").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO entities").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = store.WriteIngestion(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEntityNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetEntity(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestApplyMergeRepointsAndDeletes(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := sampleBatch(t)
	second := sampleBatch(t)
	require.NoError(t, store.WriteIngestion(ctx, first))
	require.NoError(t, store.WriteIngestion(ctx, second))

	master := first.Entities[0]
	duplicate := second.Entities[0]

	err := store.ApplyMerge(ctx, &MergeRewrite{
		MasterID:    master.ID,
		DuplicateID: duplicate.ID,
		Description: master.Description,
		Keywords:    []string{"philosophy", "dialectic", "ethics"},
		SourceIDs:   []string{first.Entry.ID, second.Entry.ID},
	})
	require.NoError(t, err)

	_, err = store.GetEntity(ctx, duplicate.ID)
	assert.True(t, errors.IsNotFoundError(err), "duplicate must be gone")

	merged, err := store.GetEntity(ctx, master.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.Entry.ID, second.Entry.ID}, merged.SourceIDs)
	assert.Contains(t, merged.Keywords, "ethics")

	snapshot, err := store.LoadAll(ctx)
	require.NoError(t, err)
	for _, a := range snapshot.Assertions {
		assert.NotEqual(t, duplicate.ID, a.SourceEntityID)
		assert.NotEqual(t, duplicate.ID, a.TargetEntityID)
	}
}

func TestRelationshipTypeCRUD(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	defs, err := store.LoadRelationshipTypes(ctx)
	require.NoError(t, err)
	seeded := len(defs)
	require.GreaterOrEqual(t, seeded, 8, "default types must be seeded")

	def := &ontology.RelationshipType{
		ID:          uuid.New().String(),
		MachineName: "refutes",
		Description: "Source argues against target",
		Category:    "Epistemic",
		Directional: true,
		AllowedEntityTypes: map[string][]ontology.EntityType{
			"source": {ontology.EntityPerson, ontology.EntityOrganization},
		},
		Version: "1.0.0",
	}
	require.NoError(t, store.CreateRelationshipType(ctx, def))

	defs, err = store.LoadRelationshipTypes(ctx)
	require.NoError(t, err)
	require.Len(t, defs, seeded+1)

	var loaded *ontology.RelationshipType
	for _, d := range defs {
		if d.ID == def.ID {
			loaded = d
		}
	}
	require.NotNil(t, loaded)
	assert.Equal(t, "refutes", loaded.MachineName)
	assert.Equal(t, []ontology.EntityType{ontology.EntityPerson, ontology.EntityOrganization},
		loaded.AllowedEntityTypes["source"])

	require.NoError(t, store.UpdateRelationshipTypeDescription(ctx, def.ID, "updated"))
	err = store.UpdateRelationshipTypeDescription(ctx, uuid.New().String(), "nope")
	assert.True(t, errors.IsNotFoundError(err))

	require.NoError(t, store.DeleteRelationshipType(ctx, def.ID))
	defs, err = store.LoadRelationshipTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, seeded)
}
