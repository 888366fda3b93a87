package attendees

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/boogle-events/apiserver/types"
)

func TestNormalizeMixedEntries(t *testing.T) {
	got := Normalize([]any{
		nil,
		"u1",
		map[string]any{"user": "u2", "ticketType": "VIP"},
	})
	want := []types.Attendee{
		{User: "u1", TicketType: types.UnknownTicketType},
		{User: "u2", TicketType: "VIP"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize = %+v, want %+v", got, want)
	}
}

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name  string
		entry any
		want  []types.Attendee
	}{
		{"empty string", "", []types.Attendee{}},
		{"blank string", "   ", []types.Attendee{}},
		{"number", 42, []types.Attendee{}},
		{"typed struct", types.Attendee{User: "u1", TicketType: "GA"}, []types.Attendee{{User: "u1", TicketType: "GA"}}},
		{"typed struct missing ticket", types.Attendee{User: "u1"}, []types.Attendee{}},
		{"nil pointer", (*types.Attendee)(nil), []types.Attendee{}},
		{"pointer", &types.Attendee{User: "u3", TicketType: "VIP"}, []types.Attendee{{User: "u3", TicketType: "VIP"}}},
		{"snake case record", map[string]any{"user": "u4", "ticket_type": "GA"}, []types.Attendee{{User: "u4", TicketType: "GA"}}},
		{"record without ticket", map[string]any{"user": "u5"}, []types.Attendee{}},
		{"record without user", map[string]any{"ticketType": "GA"}, []types.Attendee{}},
		{"populated user", map[string]any{"user": map[string]any{"_id": "u6"}, "ticketType": "GA"}, []types.Attendee{{User: "u6", TicketType: "GA"}}},
		{"numeric user", map[string]any{"user": float64(7), "ticketType": "GA"}, []types.Attendee{{User: "7", TicketType: "GA"}}},
		{"object id", map[string]any{"$oid": "u8"}, []types.Attendee{{User: "u8", TicketType: types.UnknownTicketType}}},
		{"raw legacy", json.RawMessage(`"u9"`), []types.Attendee{{User: "u9", TicketType: types.UnknownTicketType}}},
		{"raw typed", json.RawMessage(`{"user":"u10","ticketType":"VIP"}`), []types.Attendee{{User: "u10", TicketType: "VIP"}}},
		{"raw numeric user", json.RawMessage(`{"user":12345678901234567890,"ticket_type":"GA"}`), []types.Attendee{{User: "12345678901234567890", TicketType: "GA"}}},
		{"raw null", json.RawMessage(`null`), []types.Attendee{}},
		{"raw number", json.RawMessage(`12`), []types.Attendee{}},
		{"raw garbage", json.RawMessage(`{not json`), []types.Attendee{}},
		{"raw array", json.RawMessage(`["u1"]`), []types.Attendee{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]any{tt.entry})
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Normalize(%#v) = %+v, want %+v", tt.entry, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := [][]any{
		nil,
		{},
		{nil, "u1", map[string]any{"user": "u2", "ticketType": "VIP"}},
		{json.RawMessage(`"u3"`), json.RawMessage(`{"user":"u4","ticket_type":"GA"}`), 17, "", map[string]any{}},
		{types.Attendee{User: "u5", TicketType: "GA"}, types.Attendee{User: "", TicketType: "GA"}},
	}

	for i, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("input %d: Normalize not idempotent: %+v then %+v", i, once, twice)
		}
	}
}

func TestNormalizeRawDocument(t *testing.T) {
	var stored []json.RawMessage
	doc := `["u1", null, {"user": "u2", "ticketType": "VIP"}, {"foo": "bar"}]`
	if err := json.Unmarshal([]byte(doc), &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := Normalize(stored)
	want := []types.Attendee{
		{User: "u1", TicketType: types.UnknownTicketType},
		{User: "u2", TicketType: "VIP"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize = %+v, want %+v", got, want)
	}
}
