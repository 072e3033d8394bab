package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/klinikflow/klinikflow/services/assistant-service/internal/storage"
)

func TestInstructions(t *testing.T) {
	for _, id := range []string{"reasoner", "guidelines", "planner"} {
		text, ok := Instructions(id)
		if !ok || text == "" {
			t.Fatalf("expected instructions for %q", id)
		}
	}
	if _, ok := Instructions("oracle"); ok {
		t.Fatal("unknown agent must not resolve")
	}
	if _, ok := Instructions(""); ok {
		t.Fatal("empty agent must not resolve")
	}
}

func TestFormatHistory(t *testing.T) {
	messages := []storage.ChatMessage{
		{Role: "user", Text: "Hej", AgentID: "reasoner"},
		{Role: "assistant", Text: "Goddag", AgentID: "planner"},
		{Role: "assistant", Text: "?"},
	}
	got := FormatHistory(messages)
	want := "USER: Hej\nASSISTANT(planner): Goddag\nASSISTANT(unknown): ?"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatHistoryTruncates(t *testing.T) {
	long := strings.Repeat("æ", 1500)
	got := FormatHistory([]storage.ChatMessage{{Role: "user", Text: long}})
	if len([]rune(got)) != len([]rune("USER: "))+1200+1 {
		t.Fatalf("unexpected truncated length %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatal("expected ellipsis suffix")
	}
}

func TestFormatJournalEntry(t *testing.T) {
	entry := storage.JournalEntry{Title: "Kontrol", DateISO: "2026-03-01", Content: "Bedring"}
	got := FormatJournalEntry(entry)
	if got != "Dato: 2026-03-01\nTitel: Kontrol\nNotat: Bedring" {
		t.Fatalf("got %q", got)
	}

	empty := FormatJournalEntry(storage.JournalEntry{})
	if !strings.Contains(empty, "Dato: ukendt") || !strings.Contains(empty, "Titel: Ingen titel") {
		t.Fatalf("unexpected fallback render: %q", empty)
	}
}

func TestChatContext(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	snapshot := storage.ClientSnapshot{
		Name:    "Jens Nielsen",
		Profile: map[string]any{"goal": "Løbe 5 km"},
	}
	notes := []storage.JournalEntry{
		{Content: "Første note"},
		{Content: ""},
		{Content: "Anden note"},
	}
	got := ChatContext(snapshot, notes, "USER: Hej", now)

	for _, want := range []string{
		"ClientName: Jens Nielsen",
		"Today: 10-03-2026",
		"Goal: Løbe 5 km",
		"- [1] Første note",
		"- [2] Anden note",
		"SharedHistory:\nUSER: Hej",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("context missing %q:\n%s", want, got)
		}
	}
}

func TestChatContextDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := ChatContext(storage.ClientSnapshot{}, nil, "", now)
	if !strings.Contains(got, "ClientName: Ukendt") {
		t.Fatalf("expected unknown client fallback: %q", got)
	}
	if strings.Contains(got, "Goal:") || strings.Contains(got, "RecentJournal") || strings.Contains(got, "SharedHistory") {
		t.Fatalf("empty sections must be omitted: %q", got)
	}
}
