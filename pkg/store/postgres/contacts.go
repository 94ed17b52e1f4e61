package postgres

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/recents/pkg/phone"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// Contacts reads the general contact directory.
type Contacts struct {
	db DB
}

// NewContacts creates a contact directory reader.
func NewContacts(db DB) *Contacts {
	return &Contacts{db: db}
}

// contactRow is one row of the contacts/phone-number join. Number columns are
// nil for contacts without numbers.
type contactRow struct {
	id          int64
	displayName string
	photoURI    string
	value       *string
	normalized  *string
	numberType  *int16
	label       *string
}

func listContactsQuery(withNumbersOnly bool) string {
	join := "LEFT JOIN"
	if withNumbersOnly {
		join = "JOIN"
	}
	return `
		SELECT c.id, c.display_name, c.photo_uri,
			p.value, p.normalized_value, p.number_type, p.label
		FROM contacts c
		` + join + ` contact_phone_numbers p ON p.contact_id = c.id
		ORDER BY c.id, p.position
	`
}

// ListContacts returns every contact with its numbers in stored order. With
// withNumbersOnly, contacts that have no number are left out.
func (c *Contacts) ListContacts(ctx context.Context, withNumbersOnly bool) ([]recents.Contact, error) {
	rows, err := c.db.Query(ctx, listContactsQuery(withNumbersOnly))
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	var scanned []contactRow
	for rows.Next() {
		var r contactRow
		if err := rows.Scan(&r.id, &r.displayName, &r.photoURI, &r.value, &r.normalized, &r.numberType, &r.label); err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contacts: %w", err)
	}
	return groupContacts(scanned), nil
}

// groupContacts folds consecutive rows of the same contact into one Contact.
func groupContacts(rows []contactRow) []recents.Contact {
	var contacts []recents.Contact
	for _, r := range rows {
		if n := len(contacts); n == 0 || contacts[n-1].ContactID != r.id {
			contacts = append(contacts, recents.Contact{
				ContactID:    r.id,
				DisplayName:  r.displayName,
				PhotoURI:     r.photoURI,
				PhoneNumbers: []recents.PhoneNumber{},
			})
		}
		if r.value == nil {
			continue
		}
		pn := recents.PhoneNumber{Value: *r.value}
		if r.normalized != nil {
			pn.NormalizedValue = *r.normalized
		}
		if r.numberType != nil {
			pn.Type = phone.Type(*r.numberType)
		}
		if r.label != nil {
			pn.Label = *r.label
		}
		last := &contacts[len(contacts)-1]
		last.PhoneNumbers = append(last.PhoneNumbers, pn)
	}
	return contacts
}
