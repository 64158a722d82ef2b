package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/entity"
)

func openTestDB(t *testing.T) *DB {
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func hit(value, typ string, hits int) archer.LookupResult {
	var details string
	switch hits {
	case 1:
		details = `{"value":[{"ContentId":1}]}`
	default:
		details = `{"value":[{"ContentId":1},{"ContentId":2}]}`
	}
	return archer.LookupResult{
		Entity: entity.Entity{Value: value, Type: typ},
		Data: &archer.ResultData{
			Summary: []string{"Hits"},
			Details: json.RawMessage(details),
		},
	}
}

func TestRecordAndListHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.RecordLookups(ctx, []archer.LookupResult{
		hit("Example.COM.", entity.TypeDomain, 2),
		{Entity: entity.Entity{Value: "8.8.8.8", Type: entity.TypeIP}},
		hit("APPID-123", entity.KindApplication, 1),
	})
	require.NoError(t, err)

	all, err := db.ListHistory(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byValue := map[string]HistoryEntry{}
	for _, e := range all {
		byValue[e.Value] = e
	}

	domain := byValue["example.com"]
	assert.Equal(t, entity.TypeDomain, domain.Type)
	assert.Equal(t, 2, domain.Hits)
	assert.Equal(t, []string{"Hits"}, domain.Summary)
	assert.JSONEq(t, `{"value":[{"ContentId":1},{"ContentId":2}]}`, string(domain.Details))
	assert.WithinDuration(t, time.Now(), domain.LookedUpAt, time.Minute)

	miss := byValue["8.8.8.8"]
	assert.Equal(t, 0, miss.Hits)
	assert.Nil(t, miss.Summary)
	assert.Nil(t, miss.Details)

	assert.Equal(t, 1, byValue["APPID-123"].Hits)
}

func TestListHistoryFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordLookups(ctx, []archer.LookupResult{
		hit("example.com", entity.TypeDomain, 1),
		{Entity: entity.Entity{Value: "8.8.8.8", Type: entity.TypeIP}},
	}))
	require.NoError(t, db.RecordLookups(ctx, []archer.LookupResult{
		hit("example.com", entity.TypeDomain, 2),
	}))

	entries, err := db.ListHistory(ctx, ListOptions{Value: "EXAMPLE.com", Type: entity.TypeDomain})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Hits, "newest first")

	entries, err = db.ListHistory(ctx, ListOptions{OnlyHits: true})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = db.ListHistory(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = db.ListHistory(ctx, ListOptions{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordLookupsEmpty(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordLookups(context.Background(), nil))

	entries, err := db.ListHistory(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordLookups(ctx, []archer.LookupResult{
		hit("example.com", entity.TypeDomain, 1),
		hit("example.com", entity.TypeDomain, 1),
		{Entity: entity.Entity{Value: "example.org", Type: entity.TypeDomain}},
		{Entity: entity.Entity{Value: "8.8.8.8", Type: entity.TypeIP}},
	}))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeStats{
		{Type: entity.TypeDomain, Lookups: 3, Entities: 2, Hits: 2},
		{Type: entity.TypeIP, Lookups: 1, Entities: 1, Hits: 0},
	}, stats)
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeValue(" Example.COM. ", entity.TypeDomain))
	assert.Equal(t, "2001:db8::1", NormalizeValue("2001:DB8::1", entity.TypeIPv6))
	assert.Equal(t, "APPID-12", NormalizeValue("APPID-12", entity.KindApplication))
}

// The history store is a drop-in recorder for bulk lookups.
var _ archer.ResultRecorder = (*DB)(nil)
