// Package dedupe implements the entity similarity scan and the merge
// engine that collapses duplicate entities into a single master.
package dedupe

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ontology"
	"github.com/noemakb/noema/oracle"
	"github.com/noemakb/noema/similarity"
	"github.com/noemakb/noema/storage"
)

// DefaultThreshold is the similarity score a pair must exceed (strictly)
// to be reported as a duplicate candidate.
const DefaultThreshold = 0.6

// Candidate is one entity pair flagged by the duplicate scan.
type Candidate struct {
	A     *ontology.Entity
	B     *ontology.Entity
	Score similarity.Breakdown
}

// FindDuplicates scores every unordered entity pair and returns those whose
// composite score strictly exceeds the threshold, highest score first.
// A threshold <= 0 falls back to DefaultThreshold.
func FindDuplicates(entities []*ontology.Entity, threshold float64) []Candidate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var candidates []Candidate
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			score := similarity.Score(entities[i], entities[j])
			if score.Total > threshold {
				candidates = append(candidates, Candidate{
					A:     entities[i],
					B:     entities[j],
					Score: score,
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score.Total > candidates[j].Score.Total
	})
	return candidates
}

// Merger collapses duplicate entities into a master entity.
type Merger struct {
	synthesizer oracle.Synthesizer
	store       *storage.SQLStore
	mirror      *storage.Mirror
	logger      *zap.SugaredLogger
}

// NewMerger wires the merge engine.
func NewMerger(synthesizer oracle.Synthesizer, store *storage.SQLStore, mirror *storage.Mirror, logger *zap.SugaredLogger) *Merger {
	return &Merger{
		synthesizer: synthesizer,
		store:       store,
		mirror:      mirror,
		logger:      logger,
	}
}

// Merge collapses duplicate into master. The synthesis oracle proposes the
// merged description; if it fails, the merge falls back to the master's
// description plus unioned keywords rather than failing. Only a failed
// durable write aborts the merge, before the mirror is touched.
func (m *Merger) Merge(ctx context.Context, masterID, duplicateID string) (*ontology.Entity, error) {
	if masterID == duplicateID {
		return nil, errors.New("cannot merge an entity into itself")
	}

	master, err := m.store.GetEntity(ctx, masterID)
	if err != nil {
		return nil, errors.Wrap(err, "master entity")
	}
	duplicate, err := m.store.GetEntity(ctx, duplicateID)
	if err != nil {
		return nil, errors.Wrap(err, "duplicate entity")
	}

	description := master.Description
	keywords := unionStrings(master.Keywords, duplicate.Keywords)

	synthesis, err := m.synthesizer.Synthesize(ctx, master, duplicate)
	if err != nil {
		m.logger.Warnw("Synthesis failed, merging without oracle",
			"master_id", masterID,
			"duplicate_id", duplicateID,
			"error", err,
		)
	} else {
		description = synthesis.NewDescription
		if len(synthesis.NewKeywords) > 0 {
			keywords = synthesis.NewKeywords
		}
	}

	rewrite := &storage.MergeRewrite{
		MasterID:    masterID,
		DuplicateID: duplicateID,
		Description: description,
		Keywords:    keywords,
		SourceIDs:   unionStrings(master.SourceIDs, duplicate.SourceIDs),
	}

	if err := m.store.ApplyMerge(ctx, rewrite); err != nil {
		return nil, errors.Wrap(err, "merge write failed")
	}
	m.mirror.ApplyMerge(rewrite)

	master.Description = rewrite.Description
	master.Keywords = rewrite.Keywords
	master.SourceIDs = rewrite.SourceIDs
	return master, nil
}

// unionStrings unions two slices preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
