package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		txn     Transaction
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid transaction",
			txn:     Transaction{Base: Base{ID: "t-1", CreatedAt: now}, OwnerID: "o-1", Name: "Acme", Status: StatusPending},
			wantErr: false,
		},
		{
			name:    "missing id",
			txn:     Transaction{Base: Base{CreatedAt: now}, OwnerID: "o-1", Name: "Acme", Status: StatusPending},
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name:    "missing owner",
			txn:     Transaction{Base: Base{ID: "t-1", CreatedAt: now}, Name: "Acme", Status: StatusPending},
			wantErr: true,
			errMsg:  "owner_id is required",
		},
		{
			name:    "name too long",
			txn:     Transaction{Base: Base{ID: "t-1", CreatedAt: now}, OwnerID: "o-1", Name: strings.Repeat("x", 201), Status: StatusPending},
			wantErr: true,
			errMsg:  "name must be 200 characters or less",
		},
		{
			name:    "invalid status",
			txn:     Transaction{Base: Base{ID: "t-1", CreatedAt: now}, OwnerID: "o-1", Name: "Acme", Status: "open"},
			wantErr: true,
			errMsg:  "invalid status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPayment_Validate(t *testing.T) {
	now := time.Now()
	p := Payment{Base: Base{ID: "p-1", CreatedAt: now}, TransactionID: "t-1", Direction: DirectionIn, Amount: decimal.NewFromInt(10)}
	assert.NoError(t, p.Validate())

	p.Direction = "sideways"
	assert.ErrorContains(t, p.Validate(), "invalid direction")

	p.Direction = DirectionOut
	p.Amount = decimal.Zero
	assert.ErrorContains(t, p.Validate(), "amount must be positive")
}

func TestKinds_Order(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 10)
	assert.Equal(t, KindOwner, kinds[0])
	assert.Equal(t, KindTransaction, kinds[1])

	assert.Equal(t, []Kind{KindPurchase, KindShipment, KindSale, KindPayment, KindNote, KindAttachment}, DependentKinds())
	assert.Equal(t, []Kind{KindDailyLog, KindContact}, OwnerScopedKinds())

	// Kinds returns a copy.
	kinds[0] = "bogus"
	assert.Equal(t, KindOwner, Kinds()[0])
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("daily_log")
	require.NoError(t, err)
	assert.Equal(t, KindDailyLog, k)

	_, err = ParseKind("invoice")
	assert.ErrorContains(t, err, "unknown kind")
}

func TestSpec_NewMatchesKind(t *testing.T) {
	for _, k := range Kinds() {
		spec := MustSpec(k)
		rec := spec.New()
		assert.Equal(t, k, rec.RecordKind(), "kind %s", k)
		assert.NotEmpty(t, spec.Collection)
	}
	assert.True(t, MustSpec(KindShipment).Singleton)
	assert.False(t, MustSpec(KindPayment).Singleton)
}

func TestFingerprint_Transaction(t *testing.T) {
	created := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	a := &Transaction{Base: Base{ID: "a1", CreatedAt: created}, Name: "Acme"}
	b := &Transaction{Base: Base{ID: "b2", CreatedAt: created.Add(5 * time.Hour)}, Name: "  Acme "}

	assert.Equal(t, "Acme-2024-01-01", Fingerprint(a))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DayIsUTC(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	a := &Transaction{Base: Base{CreatedAt: time.Date(2024, 1, 1, 23, 30, 0, 0, loc)}, Name: "Acme"}
	assert.Equal(t, "Acme-2024-01-02", Fingerprint(a))
}

func TestFingerprint_MoneyCanonical(t *testing.T) {
	paid := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	a := &Payment{TransactionID: "t", Direction: DirectionIn, Amount: decimal.RequireFromString("120.50"), Method: "cash", PaidAt: paid}
	b := &Payment{TransactionID: "t", Direction: DirectionIn, Amount: decimal.RequireFromString("120.5"), Method: "cash", PaidAt: paid}

	assert.Equal(t, "in-120.5-cash-2024-03-02", Fingerprint(a))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_NFC(t *testing.T) {
	composed := &Contact{Role: RoleBuyer, Name: "Jos\u00e9"}
	decomposed := &Contact{Role: RoleBuyer, Name: "Jose\u0301"}
	assert.Equal(t, Fingerprint(composed), Fingerprint(decomposed))
}

func TestFingerprint_ContactPhoneDigits(t *testing.T) {
	a := &Contact{Role: RoleSeller, Name: "Ravi", Phone: "+91 98765-43210"}
	b := &Contact{Role: RoleSeller, Name: "Ravi", Phone: "919876543210"}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DailyLogDistinguishesDirection(t *testing.T) {
	date := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	in := &DailyLog{Recipient: "Mill", Amount: decimal.NewFromInt(500), Date: date, Direction: DirectionIn, Category: "labour"}
	out := &DailyLog{Recipient: "Mill", Amount: decimal.NewFromInt(500), Date: date, Direction: DirectionOut, Category: "labour"}
	assert.NotEqual(t, Fingerprint(in), Fingerprint(out))
}

func TestFingerprint_ShipmentIsParent(t *testing.T) {
	s := &Shipment{Base: Base{ID: "s-1"}, TransactionID: "t-9"}
	assert.Equal(t, "t-9", Fingerprint(s))
}

func TestEncodeDecode(t *testing.T) {
	now := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	p := &Purchase{
		Base:          Base{ID: "p-1", CreatedAt: now, UpdatedAt: now},
		TransactionID: "t-1",
		Item:          "wheat",
		Quantity:      decimal.RequireFromString("12.5"),
		Total:         decimal.RequireFromString("1000"),
		PurchasedAt:   now,
	}

	data, err := Encode(p)
	require.NoError(t, err)

	got, err := Decode(KindPurchase, data)
	require.NoError(t, err)
	assert.True(t, Equal(p, got))
	assert.Equal(t, "t-1", got.ScopeID())

	_, err = Decode("invoice", data)
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	a := &Note{Base: Base{ID: "n-1"}, TransactionID: "t", Body: "hello"}
	b := &Note{Base: Base{ID: "n-1"}, TransactionID: "t", Body: "hello"}
	assert.True(t, Equal(a, b))

	b.Body = "bye"
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, nil))
}

func TestShallowMerge_RemoteNonEmptyWins(t *testing.T) {
	dispatched := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	local := &Shipment{
		Base:          Base{ID: "s-local"},
		TransactionID: "t-1",
		Carrier:       "Local Carrier",
		VehicleNo:     "KA-01",
		Origin:        "Mysore",
		DispatchedAt:  &dispatched,
	}
	remote := &Shipment{
		Base:          Base{ID: "s-remote"},
		TransactionID: "t-1",
		Carrier:       "Remote Carrier",
		Destination:   "Chennai",
	}

	merged, err := ShallowMerge(local, remote)
	require.NoError(t, err)
	s := merged.(*Shipment)

	assert.Equal(t, "s-remote", s.ID)
	assert.Equal(t, "Remote Carrier", s.Carrier)
	assert.Equal(t, "KA-01", s.VehicleNo)
	assert.Equal(t, "Mysore", s.Origin)
	assert.Equal(t, "Chennai", s.Destination)
	require.NotNil(t, s.DispatchedAt)
	assert.True(t, dispatched.Equal(*s.DispatchedAt))
}

func TestShallowMerge_RemoteZeroCostWins(t *testing.T) {
	local := &Shipment{
		Base:          Base{ID: "s-1"},
		TransactionID: "t-1",
		Carrier:       "Blue Dart",
		Cost:          decimal.NewFromInt(500),
	}
	remote := &Shipment{
		Base:          Base{ID: "s-1"},
		TransactionID: "t-1",
		Cost:          decimal.Zero,
	}

	merged, err := ShallowMerge(local, remote)
	require.NoError(t, err)
	s := merged.(*Shipment)

	assert.True(t, s.Cost.IsZero(), "cost = %s", s.Cost)
	assert.Equal(t, "Blue Dart", s.Carrier)
}

func TestShallowMerge_KindMismatch(t *testing.T) {
	_, err := ShallowMerge(&Note{}, &Shipment{})
	assert.Error(t, err)
}

func TestTouch(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	n := &Note{}
	n.Touch(first)
	n.Touch(later)
	assert.Equal(t, first, n.CreatedAt)
	assert.Equal(t, later, n.UpdatedAt)
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "parent", TierParent.String())
	assert.Equal(t, "owner-scoped", TierOwnerScoped.String())
	assert.Equal(t, "unknown", Tier(42).String())
}
