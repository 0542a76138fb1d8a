package main

import (
	"reflect"
	"testing"
)

func TestPending(t *testing.T) {
	files := []string{
		"migrations/010_fees.sql",
		"migrations/001_init.sql",
		"migrations/002_rounds.sql",
		"migrations/README.md",
	}
	done := map[string]bool{"001_init.sql": true}

	got := pending(files, done)
	want := []string{"migrations/002_rounds.sql", "migrations/010_fees.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := pending(files[:2], map[string]bool{"001_init.sql": true, "010_fees.sql": true}); len(got) != 0 {
		t.Errorf("expected nothing pending, got %v", got)
	}
}
