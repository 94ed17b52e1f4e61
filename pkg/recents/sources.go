package recents

import (
	"context"

	"github.com/otherjamesbrown/recents/pkg/workers"
)

// RecordQuery selects a page of raw records.
type RecordQuery struct {
	// BeforeMs, when set, restricts the page to records strictly older than it.
	BeforeMs *int64
	// Limit caps the number of returned records.
	Limit int
	// Descending sorts newest first.
	Descending bool
}

// RecordSource is paged, filterable access to the raw call history.
type RecordSource interface {
	Query(ctx context.Context, q RecordQuery) ([]RawRecord, error)
	Delete(ctx context.Context, ids []int64) error
	DeleteAll(ctx context.Context) error
	InsertBatch(ctx context.Context, records []RawRecord) error
}

// ContactDirectory enumerates known contacts.
type ContactDirectory interface {
	// ListContacts returns the general directory.
	ListContacts(ctx context.Context, withNumbersOnly bool) ([]Contact, error)
	// ListPrivateContacts returns contacts held outside the general directory.
	ListPrivateContacts(ctx context.Context) ([]Contact, error)
}

// SimAccountRegistry enumerates configured telephony lines.
type SimAccountRegistry interface {
	ListAccounts(ctx context.Context) ([]SimAccount, error)
}

// BlockedNumberRegistry answers whether a number is suppressed.
type BlockedNumberRegistry interface {
	IsBlocked(ctx context.Context, number string) (bool, error)
}

// PermissionGate decides whether the caller may read or modify the call history.
type PermissionGate interface {
	HasReadAccess() bool
	// RequestWriteAccess may block, e.g. to ask the user.
	RequestWriteAccess(ctx context.Context) bool
}

// Runner schedules work off the caller's goroutine. *workers.Pool satisfies it.
type Runner interface {
	Submit(ctx context.Context, task workers.Task) error
}

// StaticGate is a PermissionGate with fixed answers.
type StaticGate struct {
	Read  bool
	Write bool
}

func (g StaticGate) HasReadAccess() bool                      { return g.Read }
func (g StaticGate) RequestWriteAccess(context.Context) bool { return g.Write }

// AllowAll grants read and write access.
var AllowAll PermissionGate = StaticGate{Read: true, Write: true}

var (
	_ Runner         = (*workers.Pool)(nil)
	_ PermissionGate = StaticGate{}
)
