package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Money directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Contact roles.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// Base carries the fields every record shares.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) RecordID() string      { return b.ID }
func (b *Base) SetRecordID(id string) { b.ID = id }

// Stamps returns created_at and updated_at.
func (b *Base) Stamps() (created, updated time.Time) { return b.CreatedAt, b.UpdatedAt }

// Touch stamps created_at when unset and always refreshes updated_at.
func (b *Base) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func (b *Base) validateBase() error {
	if b.ID == "" {
		return fmt.Errorf("id is required")
	}
	if b.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// ===== Profile =====

// Owner is the account owner's profile.
type Owner struct {
	Base
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (o *Owner) RecordKind() Kind     { return KindOwner }
func (o *Owner) ScopeID() string      { return o.ID }
func (o *Owner) SetScopeID(id string) { o.ID = id }

func (o *Owner) Validate() error {
	if err := o.validateBase(); err != nil {
		return err
	}
	if o.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// ===== Parent =====

// Transaction is the parent business record.
type Transaction struct {
	Base
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

func (t *Transaction) RecordKind() Kind     { return KindTransaction }
func (t *Transaction) ScopeID() string      { return t.OwnerID }
func (t *Transaction) SetScopeID(id string) { t.OwnerID = id }

func (t *Transaction) Validate() error {
	if err := t.validateBase(); err != nil {
		return err
	}
	if t.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(t.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(t.Name))
	}
	if !ValidStatus(t.Status) {
		return fmt.Errorf("invalid status %q (must be pending, completed or cancelled)", t.Status)
	}
	return nil
}

// ValidStatus reports whether s is a transaction lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ===== Dependents =====

// Purchase records goods bought for a transaction.
type Purchase struct {
	Base
	TransactionID string          `json:"transaction_id"`
	SellerID      string          `json:"seller_id,omitempty"`
	Item          string          `json:"item"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Total         decimal.Decimal `json:"total"`
	PurchasedAt   time.Time       `json:"purchased_at"`
}

func (p *Purchase) RecordKind() Kind     { return KindPurchase }
func (p *Purchase) ScopeID() string      { return p.TransactionID }
func (p *Purchase) SetScopeID(id string) { p.TransactionID = id }

func (p *Purchase) Validate() error {
	if err := p.validateBase(); err != nil {
		return err
	}
	if p.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if p.Item == "" {
		return fmt.Errorf("item is required")
	}
	if p.Quantity.IsNegative() || p.Total.IsNegative() {
		return fmt.Errorf("quantity and total must not be negative")
	}
	return nil
}

// Shipment is the transportation leg of a transaction. At most one exists
// per transaction.
type Shipment struct {
	Base
	TransactionID string          `json:"transaction_id"`
	Carrier       string          `json:"carrier,omitempty"`
	VehicleNo     string          `json:"vehicle_no,omitempty"`
	Origin        string          `json:"origin,omitempty"`
	Destination   string          `json:"destination,omitempty"`
	Cost          decimal.Decimal `json:"cost"`
	DispatchedAt  *time.Time      `json:"dispatched_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}

func (s *Shipment) RecordKind() Kind     { return KindShipment }
func (s *Shipment) ScopeID() string      { return s.TransactionID }
func (s *Shipment) SetScopeID(id string) { s.TransactionID = id }

func (s *Shipment) Validate() error {
	if err := s.validateBase(); err != nil {
		return err
	}
	if s.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if s.Cost.IsNegative() {
		return fmt.Errorf("cost must not be negative")
	}
	return nil
}

// Sale records goods sold for a transaction.
type Sale struct {
	Base
	TransactionID string          `json:"transaction_id"`
	BuyerID       string          `json:"buyer_id,omitempty"`
	Item          string          `json:"item"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Total         decimal.Decimal `json:"total"`
	SoldAt        time.Time       `json:"sold_at"`
}

func (s *Sale) RecordKind() Kind     { return KindSale }
func (s *Sale) ScopeID() string      { return s.TransactionID }
func (s *Sale) SetScopeID(id string) { s.TransactionID = id }

func (s *Sale) Validate() error {
	if err := s.validateBase(); err != nil {
		return err
	}
	if s.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if s.Item == "" {
		return fmt.Errorf("item is required")
	}
	if s.Quantity.IsNegative() || s.Total.IsNegative() {
		return fmt.Errorf("quantity and total must not be negative")
	}
	return nil
}

// Payment is money moving in or out for a transaction.
type Payment struct {
	Base
	TransactionID string          `json:"transaction_id"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

func (p *Payment) RecordKind() Kind     { return KindPayment }
func (p *Payment) ScopeID() string      { return p.TransactionID }
func (p *Payment) SetScopeID(id string) { p.TransactionID = id }

func (p *Payment) Validate() error {
	if err := p.validateBase(); err != nil {
		return err
	}
	if p.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if err := validateDirection(p.Direction); err != nil {
		return err
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive (got %s)", p.Amount)
	}
	return nil
}

// Note is free text attached to a transaction.
type Note struct {
	Base
	TransactionID string `json:"transaction_id"`
	Body          string `json:"body"`
}

func (n *Note) RecordKind() Kind     { return KindNote }
func (n *Note) ScopeID() string      { return n.TransactionID }
func (n *Note) SetScopeID(id string) { n.TransactionID = id }

func (n *Note) Validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	if n.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if n.Body == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// Attachment references an uploaded file.
type Attachment struct {
	Base
	TransactionID string `json:"transaction_id"`
	FileName      string `json:"file_name"`
	ContentType   string `json:"content_type,omitempty"`
	Size          int64  `json:"size"`
	URI           string `json:"uri"`
}

func (a *Attachment) RecordKind() Kind     { return KindAttachment }
func (a *Attachment) ScopeID() string      { return a.TransactionID }
func (a *Attachment) SetScopeID(id string) { a.TransactionID = id }

func (a *Attachment) Validate() error {
	if err := a.validateBase(); err != nil {
		return err
	}
	if a.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if a.FileName == "" {
		return fmt.Errorf("file_name is required")
	}
	if a.URI == "" {
		return fmt.Errorf("uri is required")
	}
	return nil
}

// ===== Owner-scoped =====

// DailyLog is a recurring ledger entry outside any transaction.
type DailyLog struct {
	Base
	OwnerID   string          `json:"owner_id"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction"`
	Category  string          `json:"category"`
	Date      time.Time       `json:"date"`
	Memo      string          `json:"memo,omitempty"`
}

func (d *DailyLog) RecordKind() Kind     { return KindDailyLog }
func (d *DailyLog) ScopeID() string      { return d.OwnerID }
func (d *DailyLog) SetScopeID(id string) { d.OwnerID = id }

func (d *DailyLog) Validate() error {
	if err := d.validateBase(); err != nil {
		return err
	}
	if d.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if d.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if err := validateDirection(d.Direction); err != nil {
		return err
	}
	if !d.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive (got %s)", d.Amount)
	}
	if d.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// Contact is a buyer or seller.
type Contact struct {
	Base
	OwnerID string `json:"owner_id"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (c *Contact) RecordKind() Kind     { return KindContact }
func (c *Contact) ScopeID() string      { return c.OwnerID }
func (c *Contact) SetScopeID(id string) { c.OwnerID = id }

func (c *Contact) Validate() error {
	if err := c.validateBase(); err != nil {
		return err
	}
	if c.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if c.Role != RoleBuyer && c.Role != RoleSeller {
		return fmt.Errorf("invalid role %q (must be buyer or seller)", c.Role)
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func validateDirection(d string) error {
	if d != DirectionIn && d != DirectionOut {
		return fmt.Errorf("invalid direction %q (must be in or out)", d)
	}
	return nil
}
