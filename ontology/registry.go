package ontology

import (
	"github.com/Masterminds/semver/v3"

	"github.com/noemakb/noema/errors"
)

// Registry is the read-only view of relationship-type definitions the
// pipeline resolves against. It is built from the durable store at startup
// and rebuilt whenever the external type import workflow mutates the table;
// the pipeline itself never writes through it.
type Registry struct {
	byID    map[string]*RelationshipType
	active  map[string]*RelationshipType // machine name -> active version
	ordered []*RelationshipType
}

// NewRegistry indexes the given type definitions.
//
// The active definition for a machine name is the non-deprecated version
// with the highest semantic version. Unparseable versions sort lowest, so a
// well-formed version always wins over a malformed one.
func NewRegistry(defs []*RelationshipType) *Registry {
	r := &Registry{
		byID:   make(map[string]*RelationshipType, len(defs)),
		active: make(map[string]*RelationshipType),
	}
	for _, def := range defs {
		r.byID[def.ID] = def
		r.ordered = append(r.ordered, def)
		if def.Deprecated {
			continue
		}
		current, ok := r.active[def.MachineName]
		if !ok || versionLess(current.Version, def.Version) {
			r.active[def.MachineName] = def
		}
	}
	return r
}

// versionLess reports whether semantic version a sorts before b.
func versionLess(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil {
		return errB == nil // malformed loses to well-formed, ties keep first
	}
	if errB != nil {
		return false
	}
	return va.LessThan(vb)
}

// Resolve returns the active definition for a machine name.
func (r *Registry) Resolve(machineName string) (*RelationshipType, error) {
	def, ok := r.active[machineName]
	if !ok {
		return nil, errors.NewNotFoundError("relationship type %q", machineName)
	}
	return def, nil
}

// ByID returns a definition by its identity, active or not.
func (r *Registry) ByID(id string) (*RelationshipType, error) {
	def, ok := r.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("relationship type id %q", id)
	}
	return def, nil
}

// Active returns the active (non-deprecated) definitions in registration order.
func (r *Registry) Active() []*RelationshipType {
	var defs []*RelationshipType
	for _, def := range r.ordered {
		if r.active[def.MachineName] == def {
			defs = append(defs, def)
		}
	}
	return defs
}

// Len returns the total number of registered definitions, including
// deprecated and superseded versions.
func (r *Registry) Len() int {
	return len(r.byID)
}
