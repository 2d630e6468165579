package client

import (
	"math"
	"testing"

	server "emberwake/server"
)

func positionUpdate(id string, x, y float64) server.EntityUpdate {
	return server.EntityUpdate{ID: id, X: &x, Y: &y}
}

func TestApplyUpdatesCreatesEntitiesAtReportedPosition(t *testing.T) {
	r := NewReconciler(15)
	r.ApplyUpdates([]server.EntityUpdate{positionUpdate("e1", 100, 200)})

	view, ok := r.Entity("e1")
	if !ok {
		t.Fatalf("expected entity created from first update")
	}
	if view.X != 100 || view.Y != 200 {
		t.Fatalf("expected new entity placed immediately, got (%v,%v)", view.X, view.Y)
	}
}

func TestHealthAndStateApplyImmediately(t *testing.T) {
	r := NewReconciler(15)
	r.SetSnapshot(EntityView{ID: "e1", X: 0, Y: 0, Health: 100, State: "idle"})

	health := 40
	stateLabel := "attacking"
	r.ApplyUpdates([]server.EntityUpdate{{ID: "e1", Health: &health, State: &stateLabel}})

	view, _ := r.Entity("e1")
	if view.Health != 40 {
		t.Fatalf("expected immediate health application, got %d", view.Health)
	}
	if view.State != "attacking" {
		t.Fatalf("expected immediate state application, got %s", view.State)
	}
}

func TestPositionInterpolatesTowardTarget(t *testing.T) {
	r := NewReconciler(10) // 100ms interval
	r.SetSnapshot(EntityView{ID: "e1", X: 0, Y: 0})
	r.ApplyUpdates([]server.EntityUpdate{positionUpdate("e1", 100, 0)})

	view, _ := r.Entity("e1")
	if view.X != 0 {
		t.Fatalf("expected position unchanged before Update, got %v", view.X)
	}

	r.Update(0.05)
	view, _ = r.Entity("e1")
	if math.Abs(view.X-50) > 1e-9 {
		t.Fatalf("expected halfway point after half an interval, got %v", view.X)
	}

	r.Update(0.05)
	r.Update(0.05)
	view, _ = r.Entity("e1")
	if view.X <= 50 || view.X > 100 {
		t.Fatalf("expected continued convergence toward 100, got %v", view.X)
	}
}

func TestUpdateFractionCapsAtOneInterval(t *testing.T) {
	r := NewReconciler(10)
	r.SetSnapshot(EntityView{ID: "e1", X: 0, Y: 0})
	r.ApplyUpdates([]server.EntityUpdate{positionUpdate("e1", 100, 0)})

	// A frame longer than a tick must not overshoot.
	r.Update(1.0)
	view, _ := r.Entity("e1")
	if view.X != 100 {
		t.Fatalf("expected exact arrival on a long frame, got %v", view.X)
	}
}

func TestRemoveForgetsEntity(t *testing.T) {
	r := NewReconciler(15)
	r.SetSnapshot(EntityView{ID: "e1"})
	r.Remove("e1")
	if _, ok := r.Entity("e1"); ok {
		t.Fatalf("expected entity forgotten")
	}
}

func TestEntitiesListedInStableOrder(t *testing.T) {
	r := NewReconciler(15)
	r.SetSnapshot(EntityView{ID: "zed"})
	r.SetSnapshot(EntityView{ID: "abe"})
	r.SetSnapshot(EntityView{ID: "mid"})

	views := r.Entities()
	if len(views) != 3 {
		t.Fatalf("expected three entities, got %d", len(views))
	}
	if views[0].ID != "abe" || views[1].ID != "mid" || views[2].ID != "zed" {
		t.Fatalf("expected id-ordered listing, got %v", []string{views[0].ID, views[1].ID, views[2].ID})
	}
}
