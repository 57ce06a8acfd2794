package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/store"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func passenger(id int64, sex string, survived int, age any) record.Record {
	return record.Record{
		record.IDField: id,
		"Sex":          sex,
		"Survived":     survived,
		"Age":          age,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestOpenIsIdempotentOnExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestInsertLookupRoundTripKeepsNulls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTempStore(t)

	in := record.Record{
		record.IDField: int64(1),
		"Name":         "Braund, Mr. Owen Harris",
		"Cabin":        nil,
		"Age":          math.NaN(),
		"Fare":         7.25,
	}
	require.NoError(t, s.BulkInsert(ctx, []record.Record{in}))

	got, err := s.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Braund, Mr. Owen Harris", got["Name"])
	assert.Equal(t, 7.25, got["Fare"])
	for _, k := range []string{"Cabin", "Age"} {
		v, ok := got[k]
		assert.True(t, ok, "%s missing", k)
		assert.Nil(t, v, "%s", k)
	}
	assert.True(t, math.IsNaN(in["Age"].(float64)), "input must not be mutated")
}

func TestLookupMissing(t *testing.T) {
	t.Parallel()
	s := openTempStore(t)

	_, err := s.Lookup(context.Background(), 404)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuplicateIDsFirstMatchWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTempStore(t)

	require.NoError(t, s.BulkInsert(ctx, []record.Record{
		{record.IDField: int64(5), "Name": "first"},
		{record.IDField: int64(5), "Name": "second"},
	}))

	got, err := s.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "first", got["Name"])

	res, err := s.Update(ctx, 5, record.Record{"Name": "patched"})
	require.NoError(t, err)
	assert.True(t, res.Matched)

	got, err = s.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "patched", got["Name"])

	var second string
	require.NoError(t, s.sqlDB.QueryRow(
		`SELECT json_extract(doc, '$.Name') FROM records WHERE record_id = 5 ORDER BY seq DESC LIMIT 1`,
	).Scan(&second))
	assert.Equal(t, "second", second)
}

func TestUpdateMergesAndKeepsNullKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTempStore(t)

	require.NoError(t, s.BulkInsert(ctx, []record.Record{
		{record.IDField: int64(2), "Name": "Cumings", "Cabin": "C85", "Age": 38},
	}))

	res, err := s.Update(ctx, 2, record.Record{"Cabin": nil, "Age": 39})
	require.NoError(t, err)
	require.True(t, res.Matched)

	got, err := s.Lookup(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Cumings", got["Name"])
	assert.Equal(t, float64(39), got["Age"])
	v, ok := got["Cabin"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestUpdateNoMatch(t *testing.T) {
	t.Parallel()
	s := openTempStore(t)

	res, err := s.Update(context.Background(), 99, record.Record{"Name": "x"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestUpdateCanMoveIdentifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTempStore(t)

	require.NoError(t, s.BulkInsert(ctx, []record.Record{{record.IDField: int64(3), "Name": "x"}}))
	res, err := s.Update(ctx, 3, record.Record{record.IDField: int64(30)})
	require.NoError(t, err)
	require.True(t, res.Matched)

	_, err = s.Lookup(ctx, 3)
	require.ErrorIs(t, err, store.ErrNotFound)
	got, err := s.Lookup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, "x", got["Name"])
}

func TestCountMatchesFilterRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTempStore(t)

	docs := []record.Record{
		passenger(1, "female", 1, 30),
		passenger(2, "female", 1, 44.5),
		passenger(3, "female", 1, 45),  // bound is exclusive
		passenger(4, "female", 0, 20),  // did not survive
		passenger(5, "male", 1, 20),    // wrong sex
		passenger(6, "female", 1, nil), // null age never matches
		passenger(7, "female", 1, "20"),
		{record.IDField: int64(8), "Sex": "female", "Survived": 1},
	}
	require.NoError(t, s.BulkInsert(ctx, docs))

	f := store.Filter{Sex: "female", Survived: 1, AgeBelow: 45}
	n, err := s.Count(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var want int64
	for _, d := range docs {
		if f.Matches(d) {
			want++
		}
	}
	assert.Equal(t, want, n, "SQL filter must agree with Filter.Matches")
}

func TestConcurrentUpdatesAllMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTempStore(t)

	require.NoError(t, s.BulkInsert(ctx, []record.Record{{record.IDField: int64(1), "Fare": 0}}))

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Update(ctx, 1, record.Record{"Fare": i})
			if err == nil && !res.Matched {
				err = assert.AnError
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Lookup(ctx, 1)
	require.NoError(t, err)
	fare, ok := record.Float(got["Fare"])
	require.True(t, ok)
	assert.GreaterOrEqual(t, fare, float64(1))
	assert.LessOrEqual(t, fare, float64(n))
}
