package storage

import (
	"sync"

	"github.com/noemakb/noema/ontology"
)

// Mirror is the in-memory view of the durable knowledge graph. It is
// derived state: rebuilt from a Snapshot at startup and updated only
// after the corresponding transaction has committed, so it never shows
// writes the database could still roll back.
type Mirror struct {
	mu         sync.RWMutex
	entities   map[string]*ontology.Entity
	knowledge  map[string]*ontology.KnowledgeEntry
	evidence   map[string]*ontology.Evidence
	assertions map[string]*ontology.RelationAssertion
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		entities:   make(map[string]*ontology.Entity),
		knowledge:  make(map[string]*ontology.KnowledgeEntry),
		evidence:   make(map[string]*ontology.Evidence),
		assertions: make(map[string]*ontology.RelationAssertion),
	}
}

// Rebuild replaces the mirror's contents with a durable snapshot.
func (m *Mirror) Rebuild(snapshot *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entities = make(map[string]*ontology.Entity, len(snapshot.Entities))
	for _, e := range snapshot.Entities {
		m.entities[e.ID] = e
	}
	m.knowledge = make(map[string]*ontology.KnowledgeEntry, len(snapshot.Knowledge))
	for _, k := range snapshot.Knowledge {
		m.knowledge[k.ID] = k
	}
	m.evidence = make(map[string]*ontology.Evidence, len(snapshot.Evidence))
	for _, ev := range snapshot.Evidence {
		m.evidence[ev.ID] = ev
	}
	m.assertions = make(map[string]*ontology.RelationAssertion, len(snapshot.Assertions))
	for _, a := range snapshot.Assertions {
		m.assertions[a.ID] = a
	}
}

// ApplyIngestion folds a committed ingestion batch into the mirror.
// Callers must only invoke this after the durable write succeeded.
func (m *Mirror) ApplyIngestion(batch *IngestionBatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range batch.Entities {
		m.entities[e.ID] = e
	}
	for _, ev := range batch.Evidence {
		m.evidence[ev.ID] = ev
	}
	for _, a := range batch.Assertions {
		m.assertions[a.ID] = a
	}
	if batch.Entry != nil {
		m.knowledge[batch.Entry.ID] = batch.Entry
	}
}

// ApplyMerge folds a committed merge into the mirror: assertions are
// repointed at the master, the master is overwritten, the duplicate is
// removed.
func (m *Mirror) ApplyMerge(rw *MergeRewrite) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.assertions {
		if a.SourceEntityID == rw.DuplicateID {
			a.SourceEntityID = rw.MasterID
		}
		if a.TargetEntityID == rw.DuplicateID {
			a.TargetEntityID = rw.MasterID
		}
	}
	if master, ok := m.entities[rw.MasterID]; ok {
		master.Description = rw.Description
		master.Keywords = rw.Keywords
		master.SourceIDs = rw.SourceIDs
	}
	delete(m.entities, rw.DuplicateID)
}

// Entity returns the mirrored entity with the given id, or nil.
func (m *Mirror) Entity(id string) *ontology.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities[id]
}

// Entities returns all mirrored entities in unspecified order.
func (m *Mirror) Entities() []*ontology.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ontology.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	return out
}

// Assertions returns all mirrored relation assertions in unspecified order.
func (m *Mirror) Assertions() []*ontology.RelationAssertion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ontology.RelationAssertion, 0, len(m.assertions))
	for _, a := range m.assertions {
		out = append(out, a)
	}
	return out
}

// Knowledge returns the mirrored knowledge entry with the given id, or nil.
func (m *Mirror) Knowledge(id string) *ontology.KnowledgeEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.knowledge[id]
}

// Stats summarizes the mirror's contents.
func (m *Mirror) Stats() (entities, knowledge, evidence, assertions int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities), len(m.knowledge), len(m.evidence), len(m.assertions)
}
