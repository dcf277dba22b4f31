package router

import (
	"testing"

	"github.com/headsoccer/server/internal/ratelimit"
)

func TestRegistry_LookupKnownAndUnknownEvents(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Lookup("authenticate"); !ok {
		t.Fatalf("expected authenticate to be a known schema")
	}
	if _, ok := reg.Lookup("does_not_exist"); ok {
		t.Fatalf("expected an unregistered event to be unknown")
	}
}

func TestDefaultClassOf(t *testing.T) {
	tests := []struct {
		event string
		want  ratelimit.Class
	}{
		{"chat_message", ratelimit.ClassChat},
		{"player_input", ratelimit.ClassMovement},
		{"player_movement", ratelimit.ClassMovement},
		{"ball_update", ratelimit.ClassMovement},
		{"goal_attempt", ratelimit.ClassMovement},
		{"join_matchmaking", ratelimit.ClassMatchmaking},
		{"leave_matchmaking", ratelimit.ClassMatchmaking},
		{"ready_up", ratelimit.ClassMatchmaking},
		{"authenticate", ratelimit.ClassGeneral},
		{"ping_latency", ratelimit.ClassGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			if got := DefaultClassOf(tt.event); got != tt.want {
				t.Errorf("DefaultClassOf(%q) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestValidate_RequiredFieldMissing(t *testing.T) {
	schema, _ := NewRegistry().Lookup("authenticate")

	errs := validate(schema, map[string]interface{}{})
	if len(errs) == 0 {
		t.Fatalf("expected missing required fields to produce errors")
	}
	found := false
	for _, e := range errs {
		if e.Field == "playerId" && e.Reason == "required" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a required error for playerId, got %+v", errs)
	}
}

func TestValidate_EnumRejectsUnknownValue(t *testing.T) {
	schema, _ := NewRegistry().Lookup("join_matchmaking")

	errs := validate(schema, map[string]interface{}{"gameMode": "blitz"})
	if len(errs) != 1 || errs[0].Field != "gameMode" {
		t.Fatalf("expected one gameMode enum error, got %+v", errs)
	}
}

func TestValidate_StringExceedsMaxLen(t *testing.T) {
	schema, _ := NewRegistry().Lookup("chat_message")

	longMessage := make([]byte, 500)
	for i := range longMessage {
		longMessage[i] = 'a'
	}
	errs := validate(schema, map[string]interface{}{
		"message": string(longMessage),
		"type":    "all",
	})
	if len(errs) != 1 || errs[0].Field != "message" {
		t.Fatalf("expected one message length error, got %+v", errs)
	}
}

func TestValidate_NumberOutOfRange(t *testing.T) {
	schema, _ := NewRegistry().Lookup("goal_attempt")

	errs := validate(schema, map[string]interface{}{
		"position":  map[string]interface{}{"x": 1.0, "y": 2.0},
		"direction": map[string]interface{}{"x": 1.0, "y": 0.0},
		"power":     float64(150),
	})
	found := false
	for _, e := range errs {
		if e.Field == "power" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an out-of-range error for power, got %+v", errs)
	}
}

func TestValidate_NestedPathLookup(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Path: "position.x", Kind: KindNumber, Required: true, HasRange: true, Min: 0, Max: 1600},
	}}

	errs := validate(schema, map[string]interface{}{
		"position": map[string]interface{}{"x": float64(2000)},
	})
	if len(errs) != 1 || errs[0].Field != "position.x" {
		t.Fatalf("expected one nested-path range error, got %+v", errs)
	}
}

func TestSanitize_StripsDisallowedCharsAndTrims(t *testing.T) {
	data := map[string]interface{}{
		"message": "  <script>alert('x')</script>  ",
	}
	sanitize(data)
	got := data["message"].(string)
	if got != "scriptalert(x)/script" {
		t.Errorf("expected disallowed chars stripped and string trimmed, got %q", got)
	}
}

func TestSanitize_CapsOverlongStrings(t *testing.T) {
	long := make([]byte, sanitizeMaxLen+50)
	for i := range long {
		long[i] = 'a'
	}
	data := map[string]interface{}{"message": string(long)}
	sanitize(data)
	got := data["message"].(string)
	if len(got) != sanitizeMaxLen {
		t.Errorf("expected string capped to %d chars, got %d", sanitizeMaxLen, len(got))
	}
}

func TestSanitize_RecursesIntoNestedObjects(t *testing.T) {
	data := map[string]interface{}{
		"nested": map[string]interface{}{
			"value": "  <b>hi</b>  ",
		},
	}
	sanitize(data)
	nested := data["nested"].(map[string]interface{})
	if nested["value"].(string) != "bhi/b" {
		t.Errorf("expected nested string sanitized, got %q", nested["value"])
	}
}
