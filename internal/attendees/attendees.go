// Package attendees reconciles the attendee entry shapes found in stored
// event documents into canonical types.Attendee records.
//
// Two shapes exist in storage: a bare user reference (older documents,
// implying types.UnknownTicketType) and a {user, ticketType} record.
// Entries matching neither shape are dropped rather than reported.
package attendees

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/boogle-events/apiserver/types"
)

// Normalize maps entries to canonical attendee records, preserving order
// and eliding malformed entries. Accepted entry values are nil, strings,
// types.Attendee, *types.Attendee, json.RawMessage, []byte and decoded
// JSON objects (map[string]any). Normalize is idempotent.
func Normalize[T any](entries []T) []types.Attendee {
	out := make([]types.Attendee, 0, len(entries))
	for _, entry := range entries {
		if attendee, ok := normalizeEntry(any(entry)); ok {
			out = append(out, attendee)
		}
	}
	return out
}

func normalizeEntry(entry any) (types.Attendee, bool) {
	switch v := entry.(type) {
	case nil:
		return types.Attendee{}, false
	case string:
		return legacy(v)
	case types.Attendee:
		return typed(v.User, v.TicketType)
	case *types.Attendee:
		if v == nil {
			return types.Attendee{}, false
		}
		return typed(v.User, v.TicketType)
	case json.RawMessage:
		return fromJSON(v)
	case []byte:
		return fromJSON(v)
	case map[string]any:
		return fromMap(v)
	default:
		return types.Attendee{}, false
	}
}

func legacy(user string) (types.Attendee, bool) {
	if strings.TrimSpace(user) == "" {
		return types.Attendee{}, false
	}
	return types.Attendee{User: user, TicketType: types.UnknownTicketType}, true
}

func typed(user, ticketType string) (types.Attendee, bool) {
	if strings.TrimSpace(user) == "" || strings.TrimSpace(ticketType) == "" {
		return types.Attendee{}, false
	}
	return types.Attendee{User: user, TicketType: ticketType}, true
}

func fromJSON(raw []byte) (types.Attendee, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return types.Attendee{}, false
	}
	switch value.(type) {
	case string, map[string]any:
		return normalizeEntry(value)
	default:
		return types.Attendee{}, false
	}
}

func fromMap(m map[string]any) (types.Attendee, bool) {
	rawUser, hasUser := m["user"]
	if !hasUser {
		// Extended-JSON object id used as a bare reference.
		if oid, ok := m["$oid"].(string); ok {
			return legacy(oid)
		}
		return types.Attendee{}, false
	}

	user, ok := userRef(rawUser)
	if !ok {
		return types.Attendee{}, false
	}
	ticketType, _ := m["ticketType"].(string)
	if ticketType == "" {
		ticketType, _ = m["ticket_type"].(string)
	}
	return typed(user, ticketType)
}

// userRef stringifies a user reference: a string, a number, or an object
// carrying the id under "_id", "id" or "$oid".
func userRef(v any) (string, bool) {
	switch ref := v.(type) {
	case string:
		return ref, ref != ""
	case json.Number:
		return ref.String(), true
	case float64:
		return strconv.FormatFloat(ref, 'f', -1, 64), true
	case int:
		return strconv.Itoa(ref), true
	case int64:
		return strconv.FormatInt(ref, 10), true
	case map[string]any:
		for _, key := range []string{"_id", "id", "$oid"} {
			if inner, ok := ref[key]; ok {
				return userRef(inner)
			}
		}
	}
	return "", false
}
