package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unkn0wn-root/reccache/record"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParsePassengers(t *testing.T) {
	buf := workbook(t,
		[]any{"PassengerId", "Survived", "Name", "Sex", "Age", "Cabin", "Fare"},
		[]any{1, 0, "Braund, Mr. Owen Harris", "male", 22, "", 7.25},
		[]any{2, 1, "Cumings, Mrs. John Bradley", "female", 38, "C85", 71.2833},
		[]any{},
		[]any{3, 1, "Heikkinen, Miss. Laina", "female", "NaN"},
	)

	recs, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	first := recs[0]
	assert.Equal(t, int64(1), first[record.IDField])
	assert.Equal(t, "Braund, Mr. Owen Harris", first["Name"])
	assert.Equal(t, int64(22), first["Age"])
	assert.Equal(t, 7.25, first["Fare"])
	v, ok := first["Cabin"]
	assert.True(t, ok)
	assert.Nil(t, v)

	third := recs[2]
	id, ok := third.ID()
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Nil(t, third["Age"])
	v, ok = third["Fare"]
	assert.True(t, ok, "short rows still carry every header")
	assert.Nil(t, v)
}

func TestParseReadsRawValuesOfStyledCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"PassengerId", "Age", "Fare", "Alone"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{1, 1234, 7.25, true}))

	// "0" rounds the fare to 7 and "#,##0" groups the age as 1,234.
	whole, err := f.NewStyle(&excelize.Style{NumFmt: 1})
	require.NoError(t, err)
	grouped, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", whole))
	require.NoError(t, f.SetCellStyle(sheet, "B2", "B2", grouped))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	recs, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 7.25, recs[0]["Fare"])
	assert.Equal(t, int64(1234), recs[0]["Age"])
	assert.Equal(t, true, recs[0]["Alone"])
}

func TestParseHeaderHandling(t *testing.T) {
	buf := workbook(t,
		[]any{" Name ", "", "Name"},
		[]any{"a", "ignored", "b"},
	)
	recs, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, record.Record{"Name": "a", "Name.1": "b"}, recs[0])
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("PassengerId,Name\n1,x\n"))
	require.Error(t, err)
}

func TestParseEmptyWorkbook(t *testing.T) {
	_, err := Parse(workbook(t))
	require.ErrorIs(t, err, ErrNoHeader)
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"  ", nil},
		{"NaN", nil},
		{"N/A", nil},
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"3.5", 3.5},
		{"1e3", 1000.0},
		{"TRUE", true},
		{"false", false},
		{"male", "male"},
		{"Inf", "Inf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Coerce(tc.in), "Coerce(%q)", tc.in)
	}
}
