// Package store owns the particle data and the tag-to-index mapping.
//
// Tags are permanent particle identifiers; indices are positions in the
// store's current ordering and change whenever particles migrate. Anything
// that keeps per-particle arrays outside the store must re-derive its layout
// from the tag order after a remap, via OnRemap.
package store

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/components"
)

// Tag is a particle's permanent identity, stable across reindexing.
type Tag uint32

// Store holds particle state in an ECS world keyed by stable tags.
type Store struct {
	world *ecs.World

	mapper    *ecs.Map4[components.Position, components.Orientation, components.Force, components.Torque]
	posMap    *ecs.Map1[components.Position]
	oriMap    *ecs.Map1[components.Orientation]
	forceMap  *ecs.Map1[components.Force]
	torqueMap *ecs.Map1[components.Torque]

	order    []Tag
	index    map[Tag]int
	entities map[Tag]ecs.Entity
	nextTag  Tag

	remapFns []func()
}

// NewStore creates an empty particle store.
func NewStore() *Store {
	s := &Store{
		world:    ecs.NewWorld(),
		index:    make(map[Tag]int),
		entities: make(map[Tag]ecs.Entity),
	}
	s.mapper = ecs.NewMap4[components.Position, components.Orientation, components.Force, components.Torque](s.world)
	s.posMap = ecs.NewMap1[components.Position](s.world)
	s.oriMap = ecs.NewMap1[components.Orientation](s.world)
	s.forceMap = ecs.NewMap1[components.Force](s.world)
	s.torqueMap = ecs.NewMap1[components.Torque](s.world)
	return s
}

// AddParticle creates a particle and returns its tag.
func (s *Store) AddParticle(pos r3.Vec, orient r3.Rotation) Tag {
	tag := s.nextTag
	s.nextTag++

	p := components.Position{Vec: pos}
	o := components.Orientation{Quat: orient}
	f := components.Force{}
	t := components.Torque{}
	e := s.mapper.NewEntity(&p, &o, &f, &t)

	s.entities[tag] = e
	s.index[tag] = len(s.order)
	s.order = append(s.order, tag)
	return tag
}

// N returns the number of particles.
func (s *Store) N() int { return len(s.order) }

// Tags returns the tags in current index order. The slice is owned by the
// store and valid until the next AddParticle or Permute.
func (s *Store) Tags() []Tag { return s.order }

// Index resolves a tag to its current index.
func (s *Store) Index(tag Tag) (int, bool) {
	i, ok := s.index[tag]
	return i, ok
}

// Position returns a particle's position.
func (s *Store) Position(tag Tag) (r3.Vec, bool) {
	e, ok := s.entities[tag]
	if !ok {
		return r3.Vec{}, false
	}
	return s.posMap.Get(e).Vec, true
}

// SetPosition overwrites a particle's position.
func (s *Store) SetPosition(tag Tag, v r3.Vec) bool {
	e, ok := s.entities[tag]
	if !ok {
		return false
	}
	s.posMap.Get(e).Vec = v
	return true
}

// Orientation returns a particle's orientation quaternion.
func (s *Store) Orientation(tag Tag) (r3.Rotation, bool) {
	e, ok := s.entities[tag]
	if !ok {
		return r3.Rotation{}, false
	}
	return s.oriMap.Get(e).Quat, true
}

// SetOrientation overwrites a particle's orientation quaternion.
func (s *Store) SetOrientation(tag Tag, q r3.Rotation) bool {
	e, ok := s.entities[tag]
	if !ok {
		return false
	}
	s.oriMap.Get(e).Quat = q
	return true
}

// Force returns the particle's global force slot.
func (s *Store) Force(tag Tag) (r3.Vec, bool) {
	e, ok := s.entities[tag]
	if !ok {
		return r3.Vec{}, false
	}
	return s.forceMap.Get(e).Vec, true
}

// SetForce overwrites the particle's global force slot.
func (s *Store) SetForce(tag Tag, f r3.Vec) bool {
	e, ok := s.entities[tag]
	if !ok {
		return false
	}
	s.forceMap.Get(e).Vec = f
	return true
}

// Torque returns the particle's global torque slot.
func (s *Store) Torque(tag Tag) (r3.Vec, bool) {
	e, ok := s.entities[tag]
	if !ok {
		return r3.Vec{}, false
	}
	return s.torqueMap.Get(e).Vec, true
}

// SetTorque overwrites the particle's global torque slot.
func (s *Store) SetTorque(tag Tag, t r3.Vec) bool {
	e, ok := s.entities[tag]
	if !ok {
		return false
	}
	s.torqueMap.Get(e).Vec = t
	return true
}

// OnRemap registers a callback invoked after every index reordering.
// Consumers holding tag-ordered arrays rebuild them here.
func (s *Store) OnRemap(fn func()) {
	s.remapFns = append(s.remapFns, fn)
}

// Permute reorders the store's index layout: after the call, index i holds
// the particle that perm[i] pointed at. Tags are untouched. This is the
// migration hook: domain decomposition changes reduce to a permutation of
// the index order.
func (s *Store) Permute(perm []int) error {
	if len(perm) != len(s.order) {
		return fmt.Errorf("store: permutation length %d does not match particle count %d", len(perm), len(s.order))
	}
	newOrder := make([]Tag, len(s.order))
	seen := make([]bool, len(s.order))
	for i, j := range perm {
		if j < 0 || j >= len(s.order) || seen[j] {
			return fmt.Errorf("store: invalid permutation entry %d at position %d", j, i)
		}
		seen[j] = true
		newOrder[i] = s.order[j]
	}
	s.order = newOrder
	for i, tag := range s.order {
		s.index[tag] = i
	}
	for _, fn := range s.remapFns {
		fn()
	}
	return nil
}
