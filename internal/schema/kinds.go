package schema

import (
	"fmt"
	"time"
)

// Kind names one replicated entity type.
type Kind string

const (
	KindOwner       Kind = "owner"
	KindTransaction Kind = "transaction"
	KindPurchase    Kind = "purchase"
	KindShipment    Kind = "shipment"
	KindSale        Kind = "sale"
	KindPayment     Kind = "payment"
	KindNote        Kind = "note"
	KindAttachment  Kind = "attachment"
	KindDailyLog    Kind = "daily_log"
	KindContact     Kind = "contact"
)

// Tier places a kind in the dependency order.
type Tier int

const (
	// TierProfile is the owner profile itself.
	TierProfile Tier = iota
	// TierParent records are scoped by owner and own dependents.
	TierParent
	// TierDependent records are scoped by a parent record.
	TierDependent
	// TierOwnerScoped records are scoped by owner and independent of parents.
	TierOwnerScoped
)

// String returns a human-readable representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierProfile:
		return "profile"
	case TierParent:
		return "parent"
	case TierDependent:
		return "dependent"
	case TierOwnerScoped:
		return "owner-scoped"
	default:
		return "unknown"
	}
}

// Record is implemented by every replicated entity.
type Record interface {
	RecordKind() Kind
	RecordID() string
	SetRecordID(id string)
	// ScopeID is the parent id for dependents and the owner id otherwise.
	ScopeID() string
	SetScopeID(id string)
	// Touch stamps created_at (when unset) and updated_at.
	Touch(now time.Time)
	Stamps() (created, updated time.Time)
	Validate() error
}

// KindSpec describes how the engine handles one kind.
type KindSpec struct {
	Kind Kind
	Tier Tier
	// Collection is the table/collection name in both stores.
	Collection string
	// Singleton kinds hold at most one record per scope.
	Singleton   bool
	New         func() Record
	Fingerprint func(Record) string
}

var registry = map[Kind]KindSpec{
	KindOwner:       {Kind: KindOwner, Tier: TierProfile, Collection: "owners", New: func() Record { return &Owner{} }, Fingerprint: ownerFingerprint},
	KindTransaction: {Kind: KindTransaction, Tier: TierParent, Collection: "transactions", New: func() Record { return &Transaction{} }, Fingerprint: transactionFingerprint},
	KindPurchase:    {Kind: KindPurchase, Tier: TierDependent, Collection: "purchases", New: func() Record { return &Purchase{} }, Fingerprint: purchaseFingerprint},
	KindShipment:    {Kind: KindShipment, Tier: TierDependent, Collection: "shipments", Singleton: true, New: func() Record { return &Shipment{} }, Fingerprint: shipmentFingerprint},
	KindSale:        {Kind: KindSale, Tier: TierDependent, Collection: "sales", New: func() Record { return &Sale{} }, Fingerprint: saleFingerprint},
	KindPayment:     {Kind: KindPayment, Tier: TierDependent, Collection: "payments", New: func() Record { return &Payment{} }, Fingerprint: paymentFingerprint},
	KindNote:        {Kind: KindNote, Tier: TierDependent, Collection: "notes", New: func() Record { return &Note{} }, Fingerprint: noteFingerprint},
	KindAttachment:  {Kind: KindAttachment, Tier: TierDependent, Collection: "attachments", New: func() Record { return &Attachment{} }, Fingerprint: attachmentFingerprint},
	KindDailyLog:    {Kind: KindDailyLog, Tier: TierOwnerScoped, Collection: "daily_logs", New: func() Record { return &DailyLog{} }, Fingerprint: dailyLogFingerprint},
	KindContact:     {Kind: KindContact, Tier: TierOwnerScoped, Collection: "contacts", New: func() Record { return &Contact{} }, Fingerprint: contactFingerprint},
}

// order is the dependency order used for schema creation and sync.
var order = []Kind{
	KindOwner,
	KindTransaction,
	KindPurchase,
	KindShipment,
	KindSale,
	KindPayment,
	KindNote,
	KindAttachment,
	KindDailyLog,
	KindContact,
}

// Spec returns the descriptor for kind.
func Spec(kind Kind) (KindSpec, bool) {
	s, ok := registry[kind]
	return s, ok
}

// MustSpec returns the descriptor for kind and panics on an unknown kind.
func MustSpec(kind Kind) KindSpec {
	s, ok := registry[kind]
	if !ok {
		panic(fmt.Sprintf("schema: unknown kind %q", kind))
	}
	return s
}

// ParseKind validates a kind name.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("unknown kind %q", name)
	}
	return k, nil
}

// Kinds returns every kind in dependency order.
func Kinds() []Kind {
	out := make([]Kind, len(order))
	copy(out, order)
	return out
}

// KindsOf returns the kinds of the given tier in dependency order.
func KindsOf(tier Tier) []Kind {
	var out []Kind
	for _, k := range order {
		if registry[k].Tier == tier {
			out = append(out, k)
		}
	}
	return out
}

// DependentKinds returns the kinds scoped by a parent record.
func DependentKinds() []Kind {
	return KindsOf(TierDependent)
}

// OwnerScopedKinds returns the kinds scoped directly by the owner.
func OwnerScopedKinds() []Kind {
	return KindsOf(TierOwnerScoped)
}

// Fingerprint computes the semantic key of rec using its kind's descriptor.
func Fingerprint(rec Record) string {
	return MustSpec(rec.RecordKind()).Fingerprint(rec)
}
