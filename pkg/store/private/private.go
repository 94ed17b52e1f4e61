// Package private reads contacts held outside the general directory. They
// live in their own PostgreSQL table with each contact's numbers stored as
// parallel arrays.
package private

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/recents/pkg/phone"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// Store reads the private_contacts table.
type Store struct {
	db *sql.DB
}

// Open connects to dsn with lib/pq and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open private contacts database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping private contacts database: %w", err)
	}
	return New(db), nil
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type row struct {
	id          int64
	displayName string
	photoURI    string
	numbers     []string
	normalized  []string
	types       []int64
	labels      []string
}

// List returns every private contact ordered by id.
func (s *Store) List(ctx context.Context) ([]recents.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, photo_uri, numbers, normalized_numbers, number_types, number_labels
		FROM private_contacts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing private contacts: %w", err)
	}
	defer rows.Close()

	var contacts []recents.Contact
	for rows.Next() {
		var r row
		if err := rows.Scan(
			&r.id, &r.displayName, &r.photoURI,
			pq.Array(&r.numbers), pq.Array(&r.normalized), pq.Array(&r.types), pq.Array(&r.labels),
		); err != nil {
			return nil, fmt.Errorf("scanning private contact: %w", err)
		}
		contacts = append(contacts, r.contact())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating private contacts: %w", err)
	}
	return contacts, nil
}

// Put inserts or replaces a private contact.
func (s *Store) Put(ctx context.Context, c recents.Contact) error {
	r := fromContact(c)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO private_contacts (id, display_name, photo_uri, numbers, normalized_numbers, number_types, number_labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			photo_uri = EXCLUDED.photo_uri,
			numbers = EXCLUDED.numbers,
			normalized_numbers = EXCLUDED.normalized_numbers,
			number_types = EXCLUDED.number_types,
			number_labels = EXCLUDED.number_labels
	`, r.id, r.displayName, r.photoURI,
		pq.Array(r.numbers), pq.Array(r.normalized), pq.Array(r.types), pq.Array(r.labels))
	if err != nil {
		return fmt.Errorf("storing private contact %d: %w", c.ContactID, err)
	}
	return nil
}

// contact zips the parallel arrays. numbers drives the length; shorter
// companion arrays leave the remaining fields empty.
func (r row) contact() recents.Contact {
	c := recents.Contact{
		ContactID:    r.id,
		DisplayName:  r.displayName,
		PhotoURI:     r.photoURI,
		PhoneNumbers: make([]recents.PhoneNumber, 0, len(r.numbers)),
	}
	for i, value := range r.numbers {
		pn := recents.PhoneNumber{Value: value, Type: phone.TypeMobile}
		if i < len(r.normalized) {
			pn.NormalizedValue = r.normalized[i]
		}
		if i < len(r.types) {
			pn.Type = phone.Type(r.types[i])
		}
		if i < len(r.labels) {
			pn.Label = r.labels[i]
		}
		c.PhoneNumbers = append(c.PhoneNumbers, pn)
	}
	return c
}

func fromContact(c recents.Contact) row {
	r := row{
		id:          c.ContactID,
		displayName: c.DisplayName,
		photoURI:    c.PhotoURI,
		numbers:     []string{},
		normalized:  []string{},
		types:       []int64{},
		labels:      []string{},
	}
	for _, pn := range c.PhoneNumbers {
		r.numbers = append(r.numbers, pn.Value)
		r.normalized = append(r.normalized, pn.Normalized())
		r.types = append(r.types, int64(pn.Type))
		r.labels = append(r.labels, pn.Label)
	}
	return r
}
