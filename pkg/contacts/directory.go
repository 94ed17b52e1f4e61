// Package contacts joins the general contact directory and the private
// contact store behind recents.ContactDirectory.
package contacts

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/recents/pkg/recents"
)

// GeneralSource lists the general directory.
type GeneralSource interface {
	ListContacts(ctx context.Context, withNumbersOnly bool) ([]recents.Contact, error)
}

// PrivateSource lists privately held contacts.
type PrivateSource interface {
	List(ctx context.Context) ([]recents.Contact, error)
}

// Directory is a recents.ContactDirectory. Either source may be nil, in which
// case it contributes no contacts.
type Directory struct {
	general GeneralSource
	private PrivateSource
}

// NewDirectory creates a directory over the given sources.
func NewDirectory(general GeneralSource, private PrivateSource) *Directory {
	return &Directory{general: general, private: private}
}

// ListContacts returns the general directory.
func (d *Directory) ListContacts(ctx context.Context, withNumbersOnly bool) ([]recents.Contact, error) {
	if d.general == nil {
		return nil, nil
	}
	contacts, err := d.general.ListContacts(ctx, withNumbersOnly)
	if err != nil {
		return nil, fmt.Errorf("general contacts: %w", err)
	}
	return contacts, nil
}

// ListPrivateContacts returns the private contacts.
func (d *Directory) ListPrivateContacts(ctx context.Context) ([]recents.Contact, error) {
	if d.private == nil {
		return nil, nil
	}
	contacts, err := d.private.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("private contacts: %w", err)
	}
	return contacts, nil
}

// Static serves a fixed contact list, e.g. one loaded from a file.
type Static []recents.Contact

// ListContacts returns the list, skipping contacts without numbers when asked.
func (s Static) ListContacts(_ context.Context, withNumbersOnly bool) ([]recents.Contact, error) {
	if !withNumbersOnly {
		return s, nil
	}
	out := make([]recents.Contact, 0, len(s))
	for _, c := range s {
		if len(c.PhoneNumbers) > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// List returns the list.
func (s Static) List(context.Context) ([]recents.Contact, error) {
	return s, nil
}

var _ recents.ContactDirectory = (*Directory)(nil)
