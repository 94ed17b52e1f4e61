package recents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContact_NameToDisplay(t *testing.T) {
	assert.Equal(t, "Jane", Contact{DisplayName: "Jane", PhoneNumbers: []PhoneNumber{{Value: "1"}}}.NameToDisplay())
	assert.Equal(t, "0905 123 456", Contact{PhoneNumbers: []PhoneNumber{{Value: "0905 123 456"}}}.NameToDisplay())
	assert.Equal(t, "", Contact{}.NameToDisplay())
}

func TestContact_ContainsNumber(t *testing.T) {
	c := Contact{PhoneNumbers: []PhoneNumber{
		{Value: "0905 123 456"},
		{Value: "02 333 444", NormalizedValue: "+42102333444"},
	}}

	assert.True(t, c.ContainsNumber("0905123456"))
	assert.True(t, c.ContainsNumber("0905-123-456"))
	assert.True(t, c.ContainsNumber("+42102333444"))
	assert.False(t, c.ContainsNumber("+421905123456"), "containment is exact, not a trailing-digit match")
	assert.False(t, c.ContainsNumber(""))
}

func TestCallType_String(t *testing.T) {
	assert.Equal(t, "missed", CallTypeMissed.String())
	assert.Equal(t, "type_42", CallType(42).String())
}

func TestEnrichedCall_AllIDs(t *testing.T) {
	c := EnrichedCall{ID: 5, NeighbourIDs: []int64{4, 3}}
	assert.Equal(t, []int64{5, 4, 3}, c.AllIDs())
}
