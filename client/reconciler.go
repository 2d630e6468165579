// Package client implements the consumer side of the entity delta stream: a
// reconciler that applies batched updates and smooths positions between
// ticks so rendering never snaps.
package client

import (
	"sort"

	server "emberwake/server"
)

// EntityView is the renderable state of one entity.
type EntityView struct {
	ID     string
	X      float64
	Y      float64
	Health int
	State  string
}

type trackedEntity struct {
	view    EntityView
	targetX float64
	targetY float64
}

// Reconciler converts the server's per-tick deltas into smoothly moving
// views. Health and state changes apply immediately; positions converge on
// the latest authoritative value over roughly one tick interval.
type Reconciler struct {
	entities     map[string]*trackedEntity
	tickInterval float64
}

// NewReconciler builds a reconciler for a stream produced at the given tick
// rate.
func NewReconciler(tickRate int) *Reconciler {
	if tickRate <= 0 {
		tickRate = 15
	}
	return &Reconciler{
		entities:     make(map[string]*trackedEntity),
		tickInterval: 1.0 / float64(tickRate),
	}
}

// ApplyUpdates merges one tick's batch. Unknown ids create new entities at
// their reported position with no interpolation.
func (r *Reconciler) ApplyUpdates(updates []server.EntityUpdate) {
	for _, update := range updates {
		entity, known := r.entities[update.ID]
		if !known {
			entity = &trackedEntity{view: EntityView{ID: update.ID}}
			if update.X != nil {
				entity.view.X = *update.X
				entity.view.Y = *update.Y
			}
			entity.targetX = entity.view.X
			entity.targetY = entity.view.Y
			r.entities[update.ID] = entity
		} else if update.X != nil {
			entity.targetX = *update.X
			entity.targetY = *update.Y
		}
		if update.Health != nil {
			entity.view.Health = *update.Health
		}
		if update.State != nil {
			entity.view.State = *update.State
		}
	}
}

// SetSnapshot replaces an entity wholesale, e.g. from the join snapshot.
func (r *Reconciler) SetSnapshot(view EntityView) {
	r.entities[view.ID] = &trackedEntity{
		view:    view,
		targetX: view.X,
		targetY: view.Y,
	}
}

// Remove forgets an entity, typically on entityDied or playerLeft.
func (r *Reconciler) Remove(id string) {
	delete(r.entities, id)
}

// Update advances interpolation by dt seconds. Each entity covers the
// remaining gap to its target at the rate required to close it within one
// tick interval.
func (r *Reconciler) Update(dt float64) {
	if dt <= 0 {
		return
	}
	fraction := dt / r.tickInterval
	if fraction > 1 {
		fraction = 1
	}
	for _, entity := range r.entities {
		entity.view.X += (entity.targetX - entity.view.X) * fraction
		entity.view.Y += (entity.targetY - entity.view.Y) * fraction
	}
}

// Entity returns the current view for an id.
func (r *Reconciler) Entity(id string) (EntityView, bool) {
	entity, ok := r.entities[id]
	if !ok {
		return EntityView{}, false
	}
	return entity.view, true
}

// Entities lists every view in id order.
func (r *Reconciler) Entities() []EntityView {
	views := make([]EntityView, 0, len(r.entities))
	for _, entity := range r.entities {
		views = append(views, entity.view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}
