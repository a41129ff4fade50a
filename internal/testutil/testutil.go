// Package testutil provides record fixtures and a controllable clock for
// tests across the sync packages.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgersync/internal/schema"
)

// TempDBPath returns a database file path inside a per-test temporary
// directory.
func TempDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Owner builds an owner profile.
func Owner(id, name string) *schema.Owner {
	o := &schema.Owner{Name: name}
	o.ID = id
	o.Touch(Day(2024, 1, 1))
	return o
}

// Txn builds a pending transaction created at created.
func Txn(id, owner, name string, created time.Time) *schema.Transaction {
	t := &schema.Transaction{OwnerID: owner, Name: name, Status: schema.StatusPending}
	t.ID = id
	t.Touch(created)
	return t
}

// Payment builds an incoming cash payment.
func Payment(id, txn, amount string, paid time.Time) *schema.Payment {
	p := &schema.Payment{
		TransactionID: txn,
		Direction:     schema.DirectionIn,
		Amount:        decimal.RequireFromString(amount),
		Method:        "cash",
		PaidAt:        paid,
	}
	p.ID = id
	p.Touch(paid)
	return p
}

// Note builds a note on txn.
func Note(id, txn, body string, created time.Time) *schema.Note {
	n := &schema.Note{TransactionID: txn, Body: body}
	n.ID = id
	n.Touch(created)
	return n
}

// Shipment builds a shipment for txn.
func Shipment(id, txn, carrier string) *schema.Shipment {
	s := &schema.Shipment{TransactionID: txn, Carrier: carrier}
	s.ID = id
	s.Touch(Day(2024, 1, 2))
	return s
}

// DailyLog builds an outgoing daily ledger entry.
func DailyLog(id, owner, recipient, amount string, date time.Time) *schema.DailyLog {
	d := &schema.DailyLog{
		OwnerID:   owner,
		Recipient: recipient,
		Amount:    decimal.RequireFromString(amount),
		Direction: schema.DirectionOut,
		Category:  "labour",
		Date:      date,
	}
	d.ID = id
	d.Touch(date)
	return d
}

// Contact builds a buyer contact.
func Contact(id, owner, name, phone string) *schema.Contact {
	c := &schema.Contact{OwnerID: owner, Role: schema.RoleBuyer, Name: name, Phone: phone}
	c.ID = id
	c.Touch(Day(2024, 1, 1))
	return c
}

// Clock is a manually advanced clock.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
