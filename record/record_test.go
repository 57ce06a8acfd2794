package record

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseID(t *testing.T) {
	ok := []struct {
		in   any
		want int64
	}{
		{7, 7},
		{int64(12), 12},
		{float64(3), 3},
		{"42", 42},
		{" 5 ", 5},
		{json.Number("9"), 9},
		{uint64(1), 1},
	}
	for _, tc := range ok {
		got, err := ParseID(tc.in)
		if err != nil {
			t.Fatalf("ParseID(%#v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseID(%#v) = %d, want %d", tc.in, got, tc.want)
		}
	}

	bad := []any{-1, 1.5, math.NaN(), "abc", "", nil, true, uint64(math.MaxUint64)}
	for _, in := range bad {
		if _, err := ParseID(in); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("ParseID(%#v) err = %v, want ErrInvalidID", in, err)
		}
	}
}

func TestNormalizeReplacesNaN(t *testing.T) {
	r := Record{"Age": math.NaN(), "Name": "Braund", "Fare": 7.25, "Cabin": nil}
	Normalize(r)
	if v, ok := r["Age"]; !ok || v != nil {
		t.Fatalf("Age = %#v (present=%v), want nil", v, ok)
	}
	if r["Fare"] != 7.25 || r["Name"] != "Braund" {
		t.Fatalf("non-NaN values changed: %#v", r)
	}
	if v, ok := r["Cabin"]; !ok || v != nil {
		t.Fatalf("Cabin = %#v (present=%v), want explicit nil", v, ok)
	}
}

func TestRecordID(t *testing.T) {
	if id, ok := (Record{IDField: float64(3)}).ID(); !ok || id != 3 {
		t.Fatalf("ID = %d,%v want 3,true", id, ok)
	}
	if _, ok := (Record{"Name": "x"}).ID(); ok {
		t.Fatal("expected no id")
	}
}

func TestFloat(t *testing.T) {
	if f, ok := Float(int64(30)); !ok || f != 30 {
		t.Fatalf("Float(int64) = %v,%v", f, ok)
	}
	if _, ok := Float(math.NaN()); ok {
		t.Fatal("NaN must not be numeric")
	}
	if _, ok := Float("30"); ok {
		t.Fatal("strings are not numeric")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := Record{"a": 1}
	c := r.Clone()
	c["a"] = 2
	if r["a"] != 1 {
		t.Fatal("clone shares storage")
	}
}
