package entities

import "testing"

func TestTrail_PushAndSnapshotWithinCapacity(t *testing.T) {
	var tr Trail
	tr.Push(Vec2{X: 1, Y: 1})
	tr.Push(Vec2{X: 2, Y: 2})

	got := tr.Snapshot()
	want := []Vec2{{X: 1, Y: 1}, {X: 2, Y: 2}}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTrail_EvictsOldestOnceFull(t *testing.T) {
	var tr Trail
	for i := 0; i < TrailCapacity+3; i++ {
		tr.Push(Vec2{X: float32(i), Y: 0})
	}

	got := tr.Snapshot()
	if len(got) != TrailCapacity {
		t.Fatalf("expected Snapshot() to cap at %d entries, got %d", TrailCapacity, len(got))
	}
	if got[0].X != 3 {
		t.Errorf("expected oldest retained entry to be index 3 after %d pushes, got %v", TrailCapacity+3, got[0].X)
	}
	if got[len(got)-1].X != float32(TrailCapacity+2) {
		t.Errorf("expected newest entry to be %d, got %v", TrailCapacity+2, got[len(got)-1].X)
	}
}

func TestNewBallState(t *testing.T) {
	b := NewBallState(800, 220)
	if b.Position != (Vec2{X: 800, Y: 220}) {
		t.Errorf("expected spawn position {800 220}, got %+v", b.Position)
	}
	if b.Velocity != (Vec2{}) {
		t.Errorf("expected zero velocity at spawn, got %+v", b.Velocity)
	}
	if len(b.Trail()) != 0 {
		t.Errorf("expected empty trail at spawn, got %d entries", len(b.Trail()))
	}
}
