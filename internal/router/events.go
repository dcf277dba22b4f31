package router

import "github.com/headsoccer/server/internal/ratelimit"

// DefaultClassOf maps each ingress event to its rate-limit class
// (spec §4.3 defaults: general/chat/movement/matchmaking).
func DefaultClassOf(event string) ratelimit.Class {
	switch event {
	case "chat_message":
		return ratelimit.ClassChat
	case "player_input", "player_movement", "ball_update", "goal_attempt":
		return ratelimit.ClassMovement
	case "join_matchmaking", "leave_matchmaking", "ready_up":
		return ratelimit.ClassMatchmaking
	default:
		return ratelimit.ClassGeneral
	}
}

// builtinSchemas enumerates the ingress event schemas of spec §6.1.
func builtinSchemas() []Schema {
	return []Schema{
		{Event: "authenticate", Fields: []Field{
			{Path: "playerId", Kind: KindString, Required: true, MaxLen: 50},
			{Path: "username", Kind: KindString, Required: true, MaxLen: 20},
			{Path: "token", Kind: KindString},
			{Path: "characterId", Kind: KindString, MaxLen: 50},
		}},
		{Event: "join_matchmaking", Fields: []Field{
			{Path: "gameMode", Kind: KindString, Required: true, Enum: []string{"casual", "ranked", "tournament"}},
			{Path: "region", Kind: KindString, MaxLen: 50},
		}},
		{Event: "leave_matchmaking", Fields: []Field{
			{Path: "reason", Kind: KindString, MaxLen: 100},
		}},
		{Event: "ready_up", Fields: []Field{
			{Path: "ready", Kind: KindBool},
		}},
		{Event: "player_input", Fields: []Field{
			{Path: "keys", Kind: KindObject},
			{Path: "position", Kind: KindObject},
			{Path: "velocity", Kind: KindObject},
			{Path: "timestamp", Kind: KindNumber},
			{Path: "sequenceId", Kind: KindNumber, HasRange: true, Min: 0, Max: 1 << 53},
		}},
		{Event: "player_movement", Fields: []Field{
			{Path: "keys", Kind: KindObject},
			{Path: "position", Kind: KindObject},
			{Path: "velocity", Kind: KindObject},
			{Path: "timestamp", Kind: KindNumber},
			{Path: "sequenceId", Kind: KindNumber, HasRange: true, Min: 0, Max: 1 << 53},
		}},
		{Event: "ball_update", Fields: []Field{
			{Path: "position", Kind: KindObject, Required: true},
			{Path: "velocity", Kind: KindObject, Required: true},
			{Path: "timestamp", Kind: KindNumber},
			{Path: "spin", Kind: KindNumber, HasRange: true, Min: -1000, Max: 1000},
		}},
		{Event: "goal_attempt", Fields: []Field{
			{Path: "position", Kind: KindObject, Required: true},
			{Path: "power", Kind: KindNumber, Required: true, HasRange: true, Min: 0, Max: 100},
			{Path: "direction", Kind: KindObject, Required: true},
			{Path: "timestamp", Kind: KindNumber},
		}},
		{Event: "chat_message", Fields: []Field{
			{Path: "message", Kind: KindString, Required: true, MaxLen: 200},
			{Path: "type", Kind: KindString, Required: true, Enum: []string{"all", "team", "private"}},
			{Path: "target", Kind: KindString, MaxLen: 50},
		}},
		{Event: "pause_request", Fields: []Field{
			{Path: "reason", Kind: KindString, Required: true, MaxLen: 100},
		}},
		{Event: "resume_request", Fields: nil},
		{Event: "forfeit_game", Fields: []Field{
			{Path: "reason", Kind: KindString, MaxLen: 100},
		}},
		{Event: "request_game_end", Fields: []Field{
			{Path: "reason", Kind: KindString, Required: true, Enum: []string{"time_up", "mutual_agreement", "admin_request"}},
			{Path: "confirmed", Kind: KindBool},
			{Path: "adminCode", Kind: KindString, MaxLen: 100},
		}},
		{Event: "join_room", Fields: []Field{
			{Path: "roomId", Kind: KindString, MaxLen: 50},
			{Path: "matchId", Kind: KindString, MaxLen: 50},
		}},
		{Event: "leave_room", Fields: []Field{
			{Path: "roomId", Kind: KindString, MaxLen: 50},
			{Path: "matchId", Kind: KindString, MaxLen: 50},
		}},
		{Event: "ping_latency", Fields: []Field{
			{Path: "clientTime", Kind: KindNumber, Required: true},
		}},
	}
}
