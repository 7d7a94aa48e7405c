// Package receipt keeps an append-only CSV log of transfer outcomes under
// the data directory, one row per upload or download attempt.
package receipt

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogFileName is the receipts file kept under the data directory.
const LogFileName = "receipts.csv"

const (
	KindUpload   = "upload"
	KindDownload = "download"
)

// Receipt records the outcome of one transfer, including which step a failed
// transfer stopped at.
type Receipt struct {
	ID         uuid.UUID
	Kind       string
	CID        string
	Provider   string
	SizeBytes  int64
	CostTokens uint64
	FailedStep string
	Error      string
	Started    time.Time
	Ended      time.Time
}

var header = []string{
	"id", "kind", "cid", "provider", "size_bytes", "cost_tokens",
	"failed_step", "error", "started", "ended",
}

type Log struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// Open opens the receipt log for appending, writing the header when the file
// is new or empty.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating receipt directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening receipt log: %w", err)
	}
	l := &Log{file: f, w: csv.NewWriter(f)}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stating receipt log: %w", err)
	}
	if info.Size() == 0 {
		if err := l.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing receipt header: %w", err)
		}
	}
	return l, nil
}

// Append writes one receipt and flushes it to disk.
func (l *Log) Append(r Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := []string{
		r.ID.String(),
		r.Kind,
		r.CID,
		r.Provider,
		strconv.FormatInt(r.SizeBytes, 10),
		strconv.FormatUint(r.CostTokens, 10),
		r.FailedStep,
		r.Error,
		r.Started.UTC().Format(time.RFC3339),
		r.Ended.UTC().Format(time.RFC3339),
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("appending receipt: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
