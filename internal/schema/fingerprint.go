package schema

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const (
	fingerprintSep = "-"
	dayLayout      = "2006-01-02"
)

// fp joins normalised parts into a fingerprint.
func fp(parts ...string) string {
	return strings.Join(parts, fingerprintSep)
}

// text trims and NFC-normalises s so visually equal strings agree.
func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dayLayout)
}

func money(d decimal.Decimal) string {
	return d.String()
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ownerFingerprint(r Record) string {
	return r.RecordID()
}

func transactionFingerprint(r Record) string {
	t := r.(*Transaction)
	return fp(text(t.Name), day(t.CreatedAt))
}

func purchaseFingerprint(r Record) string {
	p := r.(*Purchase)
	return fp(text(p.Item), money(p.Quantity), money(p.Total), day(p.PurchasedAt), p.SellerID)
}

// Shipments are singletons, so the parent id alone identifies them.
func shipmentFingerprint(r Record) string {
	return r.(*Shipment).TransactionID
}

func saleFingerprint(r Record) string {
	s := r.(*Sale)
	return fp(text(s.Item), money(s.Quantity), money(s.Total), day(s.SoldAt), s.BuyerID)
}

func paymentFingerprint(r Record) string {
	p := r.(*Payment)
	return fp(p.Direction, money(p.Amount), text(p.Method), day(p.PaidAt))
}

func noteFingerprint(r Record) string {
	n := r.(*Note)
	return fp(text(n.Body), day(n.CreatedAt))
}

func attachmentFingerprint(r Record) string {
	a := r.(*Attachment)
	return fp(text(a.FileName), decimal.NewFromInt(a.Size).String(), day(a.CreatedAt))
}

func dailyLogFingerprint(r Record) string {
	d := r.(*DailyLog)
	return fp(text(d.Recipient), money(d.Amount), day(d.Date), d.Direction, text(d.Category))
}

func contactFingerprint(r Record) string {
	c := r.(*Contact)
	return fp(c.Role, text(c.Name), digits(c.Phone))
}
