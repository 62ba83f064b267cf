package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEntry is one audit line: either an admin mutation or a fee
// decision taken for a trade.
type JournalEntry struct {
	Kind      string `json:"kind"`
	At        int64  `json:"at"`
	Actor     string `json:"actor,omitempty"`
	PoolID    string `json:"pool_id,omitempty"`
	Direction string `json:"direction,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Fee       uint32 `json:"fee,omitempty"`
}

// Journal records audit entries.
type Journal interface {
	Append(entry JournalEntry) error
}

// JsonlJournal appends audit entries to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path, now: time.Now}
}

// Append writes one entry as a JSON line, stamping it if unstamped.
func (j *JsonlJournal) Append(entry JournalEntry) error {
	if entry.At == 0 {
		entry.At = j.now().Unix()
	}

	dir := filepath.Dir(j.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	return nil
}
