package main

import (
	"testing"
	"time"

	"microgrid/internal/scheduler"
)

func TestLocalPayload_Default(t *testing.T) {
	p, err := localPayload("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Task != scheduler.TaskArchiveTicks {
		t.Errorf("expected archive task, got %q", p.Task)
	}
	if p.ReferenceTime != nil {
		t.Errorf("expected no reference time, got %v", p.ReferenceTime)
	}
}

func TestLocalPayload_ReferenceTime(t *testing.T) {
	p, err := localPayload("2026-02-06T03:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 2, 6, 3, 0, 0, 0, time.UTC)
	if p.ReferenceTime == nil || !p.ReferenceTime.Equal(want) {
		t.Errorf("expected %v, got %v", want, p.ReferenceTime)
	}
}

func TestLocalPayload_Invalid(t *testing.T) {
	if _, err := localPayload("yesterday"); err == nil {
		t.Fatal("expected parse error")
	}
}
