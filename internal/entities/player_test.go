package entities

import "testing"

func TestNewPlayerState_SeatsWithCorrectFacing(t *testing.T) {
	tests := []struct {
		name       string
		seat       Seat
		wantFacing int8
	}{
		{"left faces right", SeatLeft, 1},
		{"right faces left", SeatRight, -1},
		{"unseated defaults to facing right", SeatNone, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlayerState("alice", "ninja", tt.seat)
			if p.Facing != tt.wantFacing {
				t.Errorf("Facing = %v, want %v", p.Facing, tt.wantFacing)
			}
			if p.ID != "alice" || p.Character != "ninja" || p.Seat != tt.seat {
				t.Errorf("unexpected player state %+v", p)
			}
			if p.Position != (Vec2{}) || p.Velocity != (Vec2{}) {
				t.Errorf("expected a freshly seated player to have zeroed physical state, got pos=%+v vel=%+v", p.Position, p.Velocity)
			}
		})
	}
}
