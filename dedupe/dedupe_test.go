package dedupe

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noemakb/noema/errors"
	qtesting "github.com/noemakb/noema/internal/testing"
	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/oracle"
	"github.com/noemakb/noema/storage"
)

type fakeSynthesizer struct {
	result *oracle.SynthesisResult
	err    error
	called bool
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, master, duplicate *ontology.Entity) (*oracle.SynthesisResult, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func entity(name, description string, keywords ...string) *ontology.Entity {
	return &ontology.Entity{
		ID:          uuid.New().String(),
		Name:        name,
		Type:        ontology.EntityConcept,
		Description: description,
		Keywords:    keywords,
		Confidence:  0.9,
	}
}

func TestFindDuplicatesFlagsSimilarPairs(t *testing.T) {
	virtue := entity("virtue", "moral excellence of character", "ethics", "morality")
	virtueDup := entity("virtue", "excellence of moral character", "ethics", "morality")
	socrates := entity("Socrates", "Athenian philosopher", "philosophy")

	candidates := FindDuplicates([]*ontology.Entity{virtue, virtueDup, socrates}, 0)

	require.Len(t, candidates, 1)
	assert.Equal(t, virtue.ID, candidates[0].A.ID)
	assert.Equal(t, virtueDup.ID, candidates[0].B.ID)
	assert.Greater(t, candidates[0].Score.Total, DefaultThreshold)
	assert.InDelta(t, 1.0, candidates[0].Score.Name, 1e-9)
}

func TestFindDuplicatesThresholdIsStrict(t *testing.T) {
	a := entity("virtue", "moral excellence", "ethics")
	b := entity("virtue", "moral excellence", "ethics")

	// Identical entities score exactly 1.0; a threshold of 1.0 excludes them.
	assert.Empty(t, FindDuplicates([]*ontology.Entity{a, b}, 1.0))
	assert.Len(t, FindDuplicates([]*ontology.Entity{a, b}, 0.99), 1)
}

func TestFindDuplicatesOrdersByScore(t *testing.T) {
	exact := entity("courage", "facing fear well", "ethics")
	exactDup := entity("courage", "facing fear well", "ethics")
	near := entity("temperance", "moderation in action and feeling", "ethics", "virtue")
	nearDup := entity("temperance", "moderation of appetite", "ethics")

	candidates := FindDuplicates([]*ontology.Entity{near, nearDup, exact, exactDup}, 0)
	require.GreaterOrEqual(t, len(candidates), 2)
	assert.Equal(t, "courage", candidates[0].A.Name)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score.Total, candidates[i].Score.Total)
	}
}

type mergeHarness struct {
	merger *Merger
	store  *storage.SQLStore
	mirror *storage.Mirror
	synth  *fakeSynthesizer
	db     *sql.DB
}

func newMergeHarness(t *testing.T, synth *fakeSynthesizer) *mergeHarness {
	t.Helper()

	logger := zap.NewNop().Sugar()
	conn := qtesting.CreateTestDB(t)
	store := storage.NewSQLStore(conn, logger)
	mirror := storage.NewMirror()
	return &mergeHarness{
		merger: NewMerger(synth, store, mirror, logger),
		store:  store,
		mirror: mirror,
		synth:  synth,
		db:     conn,
	}
}

// seedPair writes two entities linked by one assertion each and returns them.
func seedPair(t *testing.T, h *mergeHarness) (*ontology.Entity, *ontology.Entity) {
	t.Helper()
	ctx := context.Background()

	master := entity("virtue", "moral excellence", "ethics")
	duplicate := entity("virtue", "excellence of character", "morality")
	other := entity("Socrates", "Athenian philosopher", "philosophy")

	knowledgeID := uuid.New().String()
	master.SourceIDs = []string{knowledgeID}
	duplicate.SourceIDs = []string{knowledgeID}
	other.SourceIDs = []string{knowledgeID}

	batch := &storage.IngestionBatch{
		Entry: &ontology.KnowledgeEntry{
			ID:               knowledgeID,
			RawContent:       "seed",
			Timestamp:        time.Now().UTC(),
			RelatedEntityIDs: []string{master.ID, duplicate.ID, other.ID},
		},
		Entities: []*ontology.Entity{master, duplicate, other},
		Assertions: []*ontology.RelationAssertion{
			{
				ID:                 uuid.New().String(),
				KnowledgeID:        knowledgeID,
				RelationshipTypeID: "2f1f3a6e-8f33-4a3e-9a41-0f6c1d2b9005",
				SourceEntityID:     other.ID,
				TargetEntityID:     duplicate.ID,
				SemanticProperties: map[string]interface{}{},
				EvidenceIDs:        []string{},
				Status:             ontology.StatusExtracted,
				CreatedAt:          time.Now().UTC(),
			},
		},
	}
	require.NoError(t, h.store.WriteIngestion(ctx, batch))
	h.mirror.ApplyIngestion(batch)
	return master, duplicate
}

func TestMergeWithSynthesis(t *testing.T) {
	synth := &fakeSynthesizer{result: &oracle.SynthesisResult{
		NewDescription: "Moral excellence of character.",
		NewKeywords:    []string{"ethics", "morality", "character"},
	}}
	h := newMergeHarness(t, synth)
	master, duplicate := seedPair(t, h)
	ctx := context.Background()

	merged, err := h.merger.Merge(ctx, master.ID, duplicate.ID)
	require.NoError(t, err)
	assert.True(t, synth.called)
	assert.Equal(t, "Moral excellence of character.", merged.Description)
	assert.Equal(t, []string{"ethics", "morality", "character"}, merged.Keywords)

	_, err = h.store.GetEntity(ctx, duplicate.ID)
	assert.True(t, errors.IsNotFoundError(err))

	snapshot, err := h.store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Assertions, 1)
	assert.Equal(t, master.ID, snapshot.Assertions[0].TargetEntityID, "assertion repointed to master")

	assert.Nil(t, h.mirror.Entity(duplicate.ID))
	require.NotNil(t, h.mirror.Entity(master.ID))
	assert.Equal(t, "Moral excellence of character.", h.mirror.Entity(master.ID).Description)
}

func TestMergeSurvivesSynthesisFailure(t *testing.T) {
	synth := &fakeSynthesizer{err: errors.Wrap(errors.ErrOracleFailure, "model unavailable")}
	h := newMergeHarness(t, synth)
	master, duplicate := seedPair(t, h)
	ctx := context.Background()

	merged, err := h.merger.Merge(ctx, master.ID, duplicate.ID)
	require.NoError(t, err, "oracle failure must not abort a merge")

	assert.Equal(t, "moral excellence", merged.Description, "master description kept")
	assert.ElementsMatch(t, []string{"ethics", "morality"}, merged.Keywords, "keywords unioned")

	_, err = h.store.GetEntity(ctx, duplicate.ID)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestFailedMergeWriteLeavesMirrorUntouched(t *testing.T) {
	synth := &fakeSynthesizer{result: &oracle.SynthesisResult{NewDescription: "merged"}}
	h := newMergeHarness(t, synth)
	master, duplicate := seedPair(t, h)
	ctx := context.Background()

	// Make the durable merge write fail on its first statement.
	_, err := h.db.Exec("DROP TABLE relation_assertions")
	require.NoError(t, err)

	_, err = h.merger.Merge(ctx, master.ID, duplicate.ID)
	require.Error(t, err)

	// The mirror still shows the pre-merge state.
	require.NotNil(t, h.mirror.Entity(duplicate.ID), "duplicate must survive a failed merge")
	got := h.mirror.Entity(master.ID)
	require.NotNil(t, got)
	assert.Equal(t, "moral excellence", got.Description)
	assert.Equal(t, []string{"ethics"}, got.Keywords)
}

func TestMergeRejectsSelfMerge(t *testing.T) {
	h := newMergeHarness(t, &fakeSynthesizer{})
	master, _ := seedPair(t, h)

	_, err := h.merger.Merge(context.Background(), master.ID, master.ID)
	require.Error(t, err)
	assert.False(t, h.synth.called)
}

func TestMergeUnknownEntity(t *testing.T) {
	h := newMergeHarness(t, &fakeSynthesizer{})
	master, _ := seedPair(t, h)

	_, err := h.merger.Merge(context.Background(), master.ID, uuid.New().String())
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestMergeUnionsSourceIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, unionStrings([]string{"a", "b"}, []string{"b", "c"}))
	assert.Equal(t, []string{"a"}, unionStrings([]string{"a"}, nil))
	assert.Nil(t, unionStrings(nil, nil))
}
