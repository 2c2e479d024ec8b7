package common

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// UploadEntry records one attempt to send a library image to a pump.
type UploadEntry struct {
	Source      string    `json:"source"`
	Serial      string    `json:"serial,omitempty"`
	Sha256      string    `json:"sha256"`
	TransferCRC string    `json:"transferCrc,omitempty"`
	Blocks      int       `json:"blocks"`
	Skipped     int       `json:"skipped"`
	DurationMS  int64     `json:"durationMs"`
	Error       string    `json:"error,omitempty"`
	Ts          time.Time `json:"ts"`
}

// OK reports whether the upload completed.
func (e UploadEntry) OK() bool {
	return e.Error == ""
}

// UploadLog provides append-only access to a JSONL upload history.
type UploadLog struct {
	path string
	mu   sync.Mutex
}

func NewUploadLog(path string) *UploadLog {
	return &UploadLog{path: path}
}

func (l *UploadLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes entry as one JSON line, creating the log directory if needed.
func (l *UploadLog) Append(entry UploadEntry) error {
	if l == nil {
		return errors.New("nil upload log")
	}
	if entry.Sha256 == "" {
		return errors.New("upload entry missing sha256")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadUploadLog loads every entry from the JSONL file at path.
func ReadUploadLog(path string) ([]UploadEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []UploadEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry UploadEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode upload entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
