// Copyright 2025 James Ross
package httpapi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditEntry is one line of the request audit log, in the exact shape the
// spec requires for every handled request.
type AuditEntry struct {
	Timestamp string `json:"ts"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Client    string `json:"client"`
	HasAPIKey bool   `json:"has_api_key"`
}

// AuditLogger appends one JSON line per request to a lumberjack-rotated
// file.
type AuditLogger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

func NewAuditLogger(path string, maxSizeMB, maxBackups int) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &AuditLogger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
	}, nil
}

func (l *AuditLogger) Log(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')
	_, err = l.out.Write(data)
	return err
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// nowISO8601Z matches the store/audit timestamp convention the original
// implementation relies on: strftime("%Y-%m-%dT%H:%M:%SZ", gmtime()).
func nowISO8601Z() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
