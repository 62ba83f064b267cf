package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestJsonlJournalAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	journal := NewJsonlJournal(path)

	entries := []JournalEntry{
		{Kind: "grant", Actor: "0xabc", Detail: "trade 0xdef=true"},
		{Kind: "fee_decision", PoolID: "0x01", Direction: "asset0_to_asset1", Fee: 3000},
	}
	for _, entry := range entries {
		if err := journal.Append(entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var got []JournalEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		got = append(got, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	if got[0].Kind != "grant" || got[1].Fee != 3000 {
		t.Fatalf("entries mismatch: %+v", got)
	}
	for _, entry := range got {
		if entry.At == 0 {
			t.Fatalf("entries must be timestamped")
		}
	}
}
