// Package legacy imports records exported from the deprecated on-device
// schema.
//
// An export is a JSONL file with one document per line:
//
//	{"collection": "deals", "doc": {"id": "d1", "uid": "o1", "title": "Wheat", "state": "open"}}
//
// Each legacy collection maps onto one current kind. Field names are
// renamed, a few enumerated values are translated, and loosely formatted
// timestamps are normalised before the document is decoded as a current
// record. The importer writes straight into the local store; the next sync
// treats the result like any other local record.
package legacy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/ledgersync/internal/schema"
)

// Line is one exported document.
type Line struct {
	Collection string         `json:"collection"`
	Doc        map[string]any `json:"doc"`
}

// mapping describes how one legacy collection becomes a current kind.
type mapping struct {
	kind schema.Kind
	// fields renames legacy keys. Keys not listed keep their name.
	fields map[string]string
	// values translates enumerated values, keyed by the current field name.
	values map[string]map[string]string
	// times lists current field names holding timestamps.
	times []string
}

var commonFields = map[string]string{
	"created":  "created_at",
	"modified": "updated_at",
}

// stringFields may hold bare numbers in old exports.
var stringFields = []string{"id", "owner_id", "transaction_id", "seller_id", "buyer_id", "phone", "vehicle_no"}

var directionValues = map[string]string{
	"credit":   schema.DirectionIn,
	"received": schema.DirectionIn,
	"debit":    schema.DirectionOut,
	"paid":     schema.DirectionOut,
}

var collections = map[string]mapping{
	"profile": {
		kind:   schema.KindOwner,
		fields: map[string]string{"uid": "id", "mobile": "phone"},
	},
	"deals": {
		kind:   schema.KindTransaction,
		fields: map[string]string{"uid": "owner_id", "title": "name", "state": "status"},
		values: map[string]map[string]string{
			"status": {
				"open":   schema.StatusPending,
				"closed": schema.StatusCompleted,
				"void":   schema.StatusCancelled,
			},
		},
	},
	"buys": {
		kind: schema.KindPurchase,
		fields: map[string]string{
			"deal": "transaction_id", "seller": "seller_id", "product": "item",
			"qty": "quantity", "rate": "unit_price", "amount": "total", "date": "purchased_at",
		},
		times: []string{"purchased_at"},
	},
	"transport": {
		kind: schema.KindShipment,
		fields: map[string]string{
			"deal": "transaction_id", "transporter": "carrier", "vehicle": "vehicle_no",
			"from": "origin", "to": "destination", "charges": "cost",
			"dispatched": "dispatched_at", "delivered": "delivered_at",
		},
		times: []string{"dispatched_at", "delivered_at"},
	},
	"sells": {
		kind: schema.KindSale,
		fields: map[string]string{
			"deal": "transaction_id", "buyer": "buyer_id", "product": "item",
			"qty": "quantity", "rate": "unit_price", "amount": "total", "date": "sold_at",
		},
		times: []string{"sold_at"},
	},
	"payments": {
		kind:   schema.KindPayment,
		fields: map[string]string{"deal": "transaction_id", "type": "direction", "mode": "method", "date": "paid_at"},
		values: map[string]map[string]string{"direction": directionValues},
		times:  []string{"paid_at"},
	},
	"memos": {
		kind:   schema.KindNote,
		fields: map[string]string{"deal": "transaction_id", "text": "body"},
	},
	"files": {
		kind:   schema.KindAttachment,
		fields: map[string]string{"deal": "transaction_id", "name": "file_name", "mime": "content_type", "url": "uri"},
	},
	"ledger": {
		kind:   schema.KindDailyLog,
		fields: map[string]string{"uid": "owner_id", "party": "recipient", "type": "direction", "remark": "memo"},
		values: map[string]map[string]string{"direction": directionValues},
		times:  []string{"date"},
	},
	"parties": {
		kind:   schema.KindContact,
		fields: map[string]string{"uid": "owner_id", "kind": "role", "mobile": "phone"},
	},
}

// Collections returns the legacy collection names that can be imported.
func Collections() []string {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Convert turns one exported document into a current record. It does not
// validate; a missing created_at is left for the caller to stamp.
func Convert(line Line) (schema.Record, error) {
	m, ok := collections[line.Collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", line.Collection)
	}

	doc := make(map[string]any, len(line.Doc))
	for key, val := range line.Doc {
		if to, ok := m.fields[key]; ok {
			key = to
		} else if to, ok := commonFields[key]; ok {
			key = to
		}
		doc[key] = val
	}
	for _, field := range stringFields {
		if n, ok := doc[field].(json.Number); ok {
			doc[field] = n.String()
		}
	}
	for field, table := range m.values {
		if s, ok := doc[field].(string); ok {
			if to, ok := table[strings.ToLower(s)]; ok {
				doc[field] = to
			}
		}
	}
	for _, field := range append([]string{"created_at", "updated_at"}, m.times...) {
		if err := normaliseTime(doc, field); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s document: %w", line.Collection, err)
	}
	rec, err := schema.Decode(m.kind, payload)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// normaliseTime rewrites doc[field] as RFC 3339. Legacy exports hold dates
// as strings in several layouts or as epoch milliseconds. Empty values are
// dropped.
func normaliseTime(doc map[string]any, field string) error {
	raw, ok := doc[field]
	if !ok {
		return nil
	}
	var t time.Time
	switch v := raw.(type) {
	case nil:
		delete(doc, field)
		return nil
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, v, err)
		}
		t = time.UnixMilli(ms)
	case float64:
		t = time.UnixMilli(int64(v))
	case string:
		if v == "" {
			delete(doc, field)
			return nil
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			t = time.UnixMilli(ms)
			break
		}
		parsed, err := parseTime(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, v, err)
		}
		t = parsed
	default:
		return fmt.Errorf("invalid %s: unexpected %T", field, raw)
	}
	doc[field] = t.UTC().Format(time.RFC3339Nano)
	return nil
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
