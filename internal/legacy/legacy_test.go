package legacy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store/memstore"
	"github.com/ledgerline/ledgersync/internal/testutil"
)

const export = `{"collection":"profile","doc":{"uid":"o-1","name":"Ravi Traders","mobile":9845012345}}
{"collection":"deals","doc":{"id":"d-1","uid":"o-1","title":"Wheat lot","state":"closed","created":"2024-03-01 09:30:00"}}
{"collection":"payments","doc":{"id":"p-1","deal":"d-1","type":"credit","amount":"1250.50","mode":"upi","date":"2024-03-02","created":1709370000000}}
{"collection":"memos","doc":{"id":"m-1","deal":"d-1","text":"weighed at mill"}}
{"collection":"ledger","doc":{"id":"l-1","party":"Mill","amount":500,"type":"debit","category":"labour","date":"05/03/2024"}}
{"collection":"unknown","doc":{"id":"x"}}
`

func writeExport(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestImporter(st *memstore.Store) *Importer {
	im := NewImporter(st, logging.Discard())
	im.now = func() time.Time { return testutil.Day(2024, 6, 1) }
	return im
}

func TestConvert_Deal(t *testing.T) {
	rec, err := Convert(Line{Collection: "deals", Doc: map[string]any{
		"id": "d-1", "uid": "o-1", "title": "Wheat", "state": "void", "created": "2024-03-01",
	}})
	require.NoError(t, err)
	txn := rec.(*schema.Transaction)
	assert.Equal(t, "o-1", txn.OwnerID)
	assert.Equal(t, "Wheat", txn.Name)
	assert.Equal(t, schema.StatusCancelled, txn.Status)
	assert.Equal(t, testutil.Day(2024, 3, 1), txn.CreatedAt)
}

func TestConvert_Purchase(t *testing.T) {
	rec, err := Convert(Line{Collection: "buys", Doc: map[string]any{
		"id": "b-1", "deal": "d-1", "product": "wheat", "qty": "10", "rate": "25.5", "amount": "255", "date": "2024-03-02",
	}})
	require.NoError(t, err)
	p := rec.(*schema.Purchase)
	assert.Equal(t, "d-1", p.TransactionID)
	assert.Equal(t, "wheat", p.Item)
	assert.True(t, p.UnitPrice.Equal(decimal.RequireFromString("25.5")))
	assert.Equal(t, testutil.Day(2024, 3, 2), p.PurchasedAt)
}

func TestConvert_Errors(t *testing.T) {
	_, err := Convert(Line{Collection: "nope"})
	assert.Error(t, err)

	_, err = Convert(Line{Collection: "payments", Doc: map[string]any{"id": "p", "date": "yesterday"}})
	assert.Error(t, err)
}

func TestCollections(t *testing.T) {
	assert.Len(t, Collections(), 10)
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewLocal()
	path := writeExport(t, t.TempDir(), "export.jsonl", export)

	res, err := newTestImporter(st).ImportFile(ctx, path, Options{Owner: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Read)
	assert.Equal(t, 5, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "line 6")

	owner, err := st.Get(ctx, schema.KindOwner, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "9845012345", owner.(*schema.Owner).Phone)

	pay, err := st.Get(ctx, schema.KindPayment, "p-1")
	require.NoError(t, err)
	assert.Equal(t, schema.DirectionIn, pay.(*schema.Payment).Direction)

	log, err := st.Get(ctx, schema.KindDailyLog, "l-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", log.(*schema.DailyLog).OwnerID, "owner filled from options")
	assert.Equal(t, schema.DirectionOut, log.(*schema.DailyLog).Direction)
	assert.Equal(t, testutil.Day(2024, 3, 5), log.(*schema.DailyLog).Date)

	note, err := st.Get(ctx, schema.KindNote, "m-1")
	require.NoError(t, err)
	created, _ := note.Stamps()
	assert.Equal(t, testutil.Day(2024, 6, 1), created, "missing created_at is stamped")

	_, err = os.Stat(path + ImportedSuffix)
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestImportFile_ExistingIDsAreSkipped(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewLocal()
	st.Seed(testutil.Note("m-1", "d-1", "already here", testutil.Day(2024, 1, 1)))
	path := writeExport(t, t.TempDir(), "export.jsonl", export)

	res, err := newTestImporter(st).ImportFile(ctx, path, Options{Owner: "o-1", KeepFile: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 4, res.Imported)

	note, err := st.Get(ctx, schema.KindNote, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "already here", note.(*schema.Note).Body)

	_, err = os.Stat(path)
	assert.NoError(t, err, "KeepFile leaves the export")
}

func TestImportFile_DryRun(t *testing.T) {
	st := memstore.NewLocal()
	path := writeExport(t, t.TempDir(), "export.jsonl", export)

	res, err := newTestImporter(st).ImportFile(context.Background(), path, Options{DryRun: true, Owner: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Imported)
	assert.Equal(t, 1, res.ByKind[schema.KindTransaction])
	assert.Equal(t, 0, st.TotalCalls())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestImportFile_MalformedJSON(t *testing.T) {
	path := writeExport(t, t.TempDir(), "bad.jsonl", "{\"collection\":\"deals\"}\n{not json\n")
	_, err := newTestImporter(memstore.NewLocal()).ImportFile(context.Background(), path, Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "line 2"))
}

func TestImportDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeExport(t, dir, "a.jsonl", `{"collection":"memos","doc":{"id":"m-1","deal":"d-1","text":"one","created":"2024-01-01"}}`+"\n")
	writeExport(t, dir, "b.jsonl", `{"collection":"memos","doc":{"id":"m-2","deal":"d-1","text":"two","created":"2024-01-01"}}`+"\n")
	writeExport(t, dir, "notes.txt", "ignored")

	st := memstore.NewLocal()
	res, err := newTestImporter(st).ImportDir(ctx, dir, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 2, st.Len(schema.KindNote))

	again, err := newTestImporter(st).ImportDir(ctx, dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, again.Files, "imported files are not picked up twice")
}
