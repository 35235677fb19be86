package search

import (
	"strings"
	"testing"
)

func TestPrepareMarkdown_NoTableReturnsInput(t *testing.T) {
	orig := "# Title\n\n  prose line  \n\n"
	got, err := PrepareMarkdown([]byte(orig))
	if err != nil {
		t.Fatalf("PrepareMarkdown error: %v", err)
	}
	if string(got) != orig {
		t.Fatalf("expected input bytes, got %q", string(got))
	}
}

func TestPrepareMarkdown_TableProcessing(t *testing.T) {
	in := strings.Join([]string{
		"# Units",
		"",
		"| Quantity | Unit |",
		"|:--------:|-----:|",
		"| Force    | newton |",
		"|  |  |",
		"| Single |",
		"Closing prose.",
	}, "\n")
	want := "# Units\n\nQuantity Unit\n\nForce newton\n\nSingle\n\nClosing prose.\n"

	got, err := PrepareMarkdown([]byte(in))
	if err != nil {
		t.Fatalf("PrepareMarkdown error: %v", err)
	}
	if string(got) != want {
		t.Fatalf("table mismatch:\nwant:\n%q\ngot:\n%q", want, string(got))
	}
}

func TestPrepareMarkdown_ScannerErrTooLong(t *testing.T) {
	long := strings.Repeat("x", 5*1024*1024)
	if _, err := PrepareMarkdown([]byte(long)); err == nil {
		t.Fatalf("expected scanner error for an over-long line")
	}
}
