// Package sim provides the configured telephony lines.
package sim

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/recents/pkg/recents"
)

// Account is the configuration form of a line.
type Account struct {
	ID       int    `yaml:"id"`
	HandleID string `yaml:"handle_id"`
	Color    int    `yaml:"color"`
	Label    string `yaml:"label"`
}

// StaticRegistry is a recents.SimAccountRegistry over a fixed list.
type StaticRegistry struct {
	accounts []recents.SimAccount
}

// NewStaticRegistry validates accounts and builds a registry. Handle ids must
// be unique and non-empty.
func NewStaticRegistry(accounts []Account) (*StaticRegistry, error) {
	seen := make(map[string]bool, len(accounts))
	out := make([]recents.SimAccount, 0, len(accounts))
	for i, a := range accounts {
		if a.HandleID == "" {
			return nil, fmt.Errorf("sim account %d: handle_id is required", i)
		}
		if seen[a.HandleID] {
			return nil, fmt.Errorf("sim account %d: duplicate handle_id %q", i, a.HandleID)
		}
		seen[a.HandleID] = true
		out = append(out, recents.SimAccount{ID: a.ID, HandleID: a.HandleID, Color: a.Color, Label: a.Label})
	}
	return &StaticRegistry{accounts: out}, nil
}

// ListAccounts returns a copy of the configured lines.
func (r *StaticRegistry) ListAccounts(context.Context) ([]recents.SimAccount, error) {
	return append([]recents.SimAccount(nil), r.accounts...), nil
}

var _ recents.SimAccountRegistry = (*StaticRegistry)(nil)
