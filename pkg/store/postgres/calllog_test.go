package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/otherjamesbrown/recents/pkg/phone"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

func TestBuildQuery(t *testing.T) {
	before := int64(1_700_000_000_000)

	tests := []struct {
		name     string
		query    recents.RecordQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "first page",
			query:    recents.RecordQuery{Limit: 200, Descending: true},
			wantSQL:  "SELECT id, number, cached_name, cached_photo_uri, date_ms, duration_seconds, call_type, account_id FROM call_log ORDER BY date_ms DESC, id DESC LIMIT $1",
			wantArgs: []any{200},
		},
		{
			name:     "next page",
			query:    recents.RecordQuery{BeforeMs: &before, Limit: 200, Descending: true},
			wantSQL:  "SELECT id, number, cached_name, cached_photo_uri, date_ms, duration_seconds, call_type, account_id FROM call_log WHERE date_ms < $1 ORDER BY date_ms DESC, id DESC LIMIT $2",
			wantArgs: []any{before, 200},
		},
		{
			name:     "unbounded ascending",
			query:    recents.RecordQuery{},
			wantSQL:  "SELECT id, number, cached_name, cached_photo_uri, date_ms, duration_seconds, call_type, account_id FROM call_log ORDER BY date_ms ASC, id ASC",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildQuery(tt.query)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestInsertRow(t *testing.T) {
	number := "0905123456"
	row := insertRow(recents.RawRecord{
		Number:          &number,
		TimestampMs:     42_000,
		DurationSeconds: 7,
		Type:            recents.CallTypeMissed,
	})

	assert.Len(t, row, len(insertColumns))
	assert.Equal(t, &number, row[0])
	assert.Equal(t, int64(42_000), row[3])
	assert.Equal(t, int16(3), row[5])
}

func TestGroupContacts(t *testing.T) {
	str := func(s string) *string { return &s }
	typ := func(t phone.Type) *int16 { v := int16(t); return &v }

	rows := []contactRow{
		{id: 1, displayName: "Jane", value: str("0905 111 222"), normalized: str("+421905111222"), numberType: typ(phone.TypeMobile), label: str("")},
		{id: 1, displayName: "Jane", value: str("02 333 444"), numberType: typ(phone.TypeCustom), label: str("Cottage")},
		{id: 2, displayName: "No Numbers"},
		{id: 3, displayName: "", photoURI: "p.png", value: str("555")},
	}

	contacts := groupContacts(rows)

	assert.Len(t, contacts, 3)
	assert.Equal(t, []recents.PhoneNumber{
		{Value: "0905 111 222", NormalizedValue: "+421905111222", Type: phone.TypeMobile},
		{Value: "02 333 444", Type: phone.TypeCustom, Label: "Cottage"},
	}, contacts[0].PhoneNumbers)
	assert.Empty(t, contacts[1].PhoneNumbers)
	assert.Equal(t, "555", contacts[2].NameToDisplay())
	assert.Equal(t, "p.png", contacts[2].PhotoURI)
}

func TestListContactsQuery(t *testing.T) {
	assert.Contains(t, listContactsQuery(false), "LEFT JOIN contact_phone_numbers")
	assert.NotContains(t, listContactsQuery(true), "LEFT JOIN")
	assert.Contains(t, listContactsQuery(true), "JOIN contact_phone_numbers")
}
