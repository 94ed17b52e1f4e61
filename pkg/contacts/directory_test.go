package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recents/pkg/recents"
)

type failingSource struct{ err error }

func (f failingSource) ListContacts(context.Context, bool) ([]recents.Contact, error) { return nil, f.err }
func (f failingSource) List(context.Context) ([]recents.Contact, error)               { return nil, f.err }

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	general := Static{
		{ContactID: 1, DisplayName: "Jane", PhoneNumbers: []recents.PhoneNumber{{Value: "1"}}},
		{ContactID: 2, DisplayName: "No number"},
	}
	private := Static{{ContactID: 9, DisplayName: "Secret", PhoneNumbers: []recents.PhoneNumber{{Value: "9"}}}}

	d := NewDirectory(general, private)

	withNumbers, err := d.ListContacts(ctx, true)
	require.NoError(t, err)
	require.Len(t, withNumbers, 1)
	assert.Equal(t, "Jane", withNumbers[0].DisplayName)

	all, err := d.ListContacts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	priv, err := d.ListPrivateContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []recents.Contact(private), priv)
}

func TestDirectory_MissingSources(t *testing.T) {
	d := NewDirectory(nil, nil)

	c, err := d.ListContacts(context.Background(), true)
	assert.NoError(t, err)
	assert.Empty(t, c)

	c, err = d.ListPrivateContacts(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, c)
}

func TestDirectory_Errors(t *testing.T) {
	cause := errors.New("offline")
	d := NewDirectory(failingSource{cause}, failingSource{cause})

	_, err := d.ListContacts(context.Background(), true)
	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "general contacts")

	_, err = d.ListPrivateContacts(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "private contacts")
}
