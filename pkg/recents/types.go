// Package recents turns the raw, append-only call history into the paginated,
// enriched and de-duplicated feed shown to users, and applies batched
// deletions and restores back to the store.
package recents

import (
	"strconv"

	"github.com/otherjamesbrown/recents/pkg/phone"
)

// UnknownNumber is the sentinel the store uses for calls without caller id.
const UnknownNumber = "-1"

// NoSim is the id and color reported when a call's line cannot be resolved.
const NoSim = -1

// CallType is the kind of call recorded in the history.
type CallType int

const (
	CallTypeIncoming           CallType = 1
	CallTypeOutgoing           CallType = 2
	CallTypeMissed             CallType = 3
	CallTypeVoicemail          CallType = 4
	CallTypeRejected           CallType = 5
	CallTypeBlocked            CallType = 6
	CallTypeAnsweredExternally CallType = 7
)

var callTypeNames = map[CallType]string{
	CallTypeIncoming:           "incoming",
	CallTypeOutgoing:           "outgoing",
	CallTypeMissed:             "missed",
	CallTypeVoicemail:          "voicemail",
	CallTypeRejected:           "rejected",
	CallTypeBlocked:            "blocked",
	CallTypeAnsweredExternally: "answered_externally",
}

func (t CallType) String() string {
	if name, ok := callTypeNames[t]; ok {
		return name
	}
	return "type_" + strconv.Itoa(int(t))
}

// RawRecord is an unprocessed entry read directly from the call-history store.
// Nullable columns are pointers.
type RawRecord struct {
	ID              int64    `json:"id" yaml:"id"`
	Number          *string  `json:"number,omitempty" yaml:"number,omitempty"`
	CachedName      *string  `json:"cached_name,omitempty" yaml:"cached_name,omitempty"`
	CachedPhotoURI  *string  `json:"cached_photo_uri,omitempty" yaml:"cached_photo_uri,omitempty"`
	TimestampMs     int64    `json:"timestamp_ms" yaml:"timestamp_ms"`
	DurationSeconds int      `json:"duration_seconds" yaml:"duration_seconds"`
	Type            CallType `json:"type" yaml:"type"`
	AccountID       *string  `json:"account_id,omitempty" yaml:"account_id,omitempty"`
}

// PhoneNumber is one number attached to a contact.
type PhoneNumber struct {
	Value           string     `json:"value" yaml:"value"`
	NormalizedValue string     `json:"normalized_value,omitempty" yaml:"normalized_value,omitempty"`
	Type            phone.Type `json:"type" yaml:"type"`
	Label           string     `json:"label,omitempty" yaml:"label,omitempty"`
}

// Normalized returns the stored normalized form, computing it when the
// directory did not provide one.
func (p PhoneNumber) Normalized() string {
	if p.NormalizedValue != "" {
		return p.NormalizedValue
	}
	return phone.Normalize(p.Value)
}

// Contact is a snapshot of a directory entry.
type Contact struct {
	ContactID    int64         `json:"contact_id" yaml:"contact_id"`
	DisplayName  string        `json:"display_name" yaml:"display_name"`
	PhotoURI     string        `json:"photo_uri,omitempty" yaml:"photo_uri,omitempty"`
	PhoneNumbers []PhoneNumber `json:"phone_numbers" yaml:"phone_numbers"`
}

// NameToDisplay returns the contact's name, or its first number when unnamed.
func (c Contact) NameToDisplay() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if len(c.PhoneNumbers) > 0 {
		return c.PhoneNumbers[0].Value
	}
	return ""
}

// ContainsNumber reports whether number is exactly one of the contact's
// numbers, ignoring formatting. It never does a trailing-digit comparison.
func (c Contact) ContainsNumber(number string) bool {
	if number == "" {
		return false
	}
	for _, pn := range c.PhoneNumbers {
		if phone.Same(pn.Value, number) {
			return true
		}
		if pn.NormalizedValue != "" && pn.NormalizedValue == number {
			return true
		}
	}
	return false
}

// SimAccount is a configured telephony line.
type SimAccount struct {
	ID       int    `json:"id" yaml:"id"`
	HandleID string `json:"handle_id" yaml:"handle_id"`
	Color    int    `json:"color" yaml:"color"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// EnrichedCall is one entry of the feed. It may stand for several raw records
// when consecutive calls from the same party were grouped; the folded record
// ids are listed in NeighbourIDs in arrival order.
type EnrichedCall struct {
	ID              int64    `json:"id" yaml:"id"`
	PhoneNumber     string   `json:"phone_number" yaml:"phone_number"`
	Name            string   `json:"name" yaml:"name"`
	PhotoURI        string   `json:"photo_uri" yaml:"photo_uri"`
	StartTS         int64    `json:"start_ts" yaml:"start_ts"`
	DurationSeconds int      `json:"duration_seconds" yaml:"duration_seconds"`
	Type            CallType `json:"type" yaml:"type"`
	NeighbourIDs    []int64  `json:"neighbour_ids" yaml:"neighbour_ids"`
	SimID           int      `json:"sim_id" yaml:"sim_id"`
	SimColor        int      `json:"sim_color" yaml:"sim_color"`
	SpecificNumber  string   `json:"specific_number" yaml:"specific_number"`
	SpecificType    string   `json:"specific_type" yaml:"specific_type"`
	IsUnknownNumber bool     `json:"is_unknown_number" yaml:"is_unknown_number"`
}

// AllIDs returns the group's own id followed by its neighbours.
func (c EnrichedCall) AllIDs() []int64 {
	ids := make([]int64, 0, 1+len(c.NeighbourIDs))
	ids = append(ids, c.ID)
	return append(ids, c.NeighbourIDs...)
}

// toRawRecord is the shape written back to the store on restore.
func (c EnrichedCall) toRawRecord() RawRecord {
	rec := RawRecord{
		TimestampMs:     c.StartTS * 1000,
		DurationSeconds: c.DurationSeconds,
		Type:            c.Type,
	}
	number := c.PhoneNumber
	rec.Number = &number
	if c.Name != "" {
		name := c.Name
		rec.CachedName = &name
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
