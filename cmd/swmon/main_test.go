package main

import "testing"

func TestRunVersionFlag(t *testing.T) {
	if code := run([]string{"--version"}); code != 0 {
		t.Fatalf("--version: expected exit 0, got %d", code)
	}
}

func TestRunHelpFlag(t *testing.T) {
	if code := run([]string{"-h"}); code != 0 {
		t.Fatalf("-h: expected exit 0, got %d", code)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	if code := run([]string{"--definitely-not-a-flag"}); code != 1 {
		t.Fatalf("unknown flag: expected exit 1, got %d", code)
	}
}
