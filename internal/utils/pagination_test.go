package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampPageAndOffset(t *testing.T) {
	cases := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 20},
		{-3, 500, 1, 100},
		{2, 10, 2, 10},
	}
	for _, tc := range cases {
		p, l := ClampPage(tc.page, tc.limit, 20, 100)
		if p != tc.wantPage || l != tc.wantLimit {
			t.Fatalf("ClampPage(%d,%d) = (%d,%d); want (%d,%d)", tc.page, tc.limit, p, l, tc.wantPage, tc.wantLimit)
		}
	}
	if Offset(1, 10) != 0 || Offset(3, 10) != 20 || Offset(0, 10) != 0 {
		t.Fatalf("Offset mismatch")
	}
}

func TestNewPage_HasMoreBoundary(t *testing.T) {
	cases := []struct {
		page, limit int
		total       int64
		pages       int
		more        bool
	}{
		{1, 10, 0, 0, false},
		{1, 10, 10, 1, false},
		{1, 10, 11, 2, true},
		{2, 10, 20, 2, false},
		{2, 10, 21, 3, true},
		{5, 10, 21, 3, false},
	}
	for _, tc := range cases {
		p := NewPage(tc.page, tc.limit, tc.total)
		if p.TotalPages != tc.pages || p.HasMore != tc.more {
			t.Fatalf("NewPage(%d,%d,%d) = %+v; want pages=%d more=%v", tc.page, tc.limit, tc.total, p, tc.pages, tc.more)
		}
	}
}
