package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/store"
)

func TestFirstMatchAndMerge(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.BulkInsert(ctx, []record.Record{
		{record.IDField: int64(1), "Name": "a", "Cabin": "C1"},
		{record.IDField: int64(1), "Name": "b"},
	}))
	assert.Equal(t, 2, s.Len())

	res, err := s.Update(ctx, 1, record.Record{"Cabin": nil})
	require.NoError(t, err)
	assert.True(t, res.Matched)

	got, err := s.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got["Name"])
	v, ok := got["Cabin"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestLookupReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.BulkInsert(ctx, []record.Record{{record.IDField: int64(1), "Name": "a"}}))

	got, err := s.Lookup(ctx, 1)
	require.NoError(t, err)
	got["Name"] = "mutated"

	again, err := s.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", again["Name"])
}

func TestMissAndNoMatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Lookup(ctx, 7)
	require.ErrorIs(t, err, store.ErrNotFound)

	res, err := s.Update(ctx, 7, record.Record{"x": 1})
	require.NoError(t, err)
	assert.False(t, res.Matched)

	assert.Equal(t, Calls{Lookup: 1, Update: 1}, s.Calls())
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.BulkInsert(ctx, []record.Record{
		{record.IDField: 1, "Sex": "female", "Survived": 1, "Age": 22.0},
		{record.IDField: 2, "Sex": "female", "Survived": 1, "Age": nil},
		{record.IDField: 3, "Sex": "male", "Survived": 1, "Age": 22.0},
	}))

	n, err := s.Count(ctx, store.Filter{Sex: "female", Survived: 1, AgeBelow: 45})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
