// Copyright 2025 James Ross

// Package memory implements the append-only experiment run log: one JSON
// object per line, reloaded in full on demand.
package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrossdev/cogsim/internal/experiment"
)

// Store is an append-only JSONL log of experiment.RunResult records backed
// by a single file. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store writing to path. The file and its parent directory
// are created lazily on first Append.
func New(path string) *Store {
	return &Store{path: path}
}

// Append writes result as one JSON line to the end of the log, creating the
// parent directory and file if necessary.
func (s *Store) Append(result experiment.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open memory log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append run result: %w", err)
	}
	return nil
}

// LoadAll reads every record in the log, in append order. A missing file
// yields an empty slice rather than an error. Legacy rows written before
// the parameters field existed are filled in with an empty map.
func (s *Store) LoadAll() ([]experiment.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return []experiment.RunResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open memory log: %w", err)
	}
	defer f.Close()

	out := make([]experiment.RunResult, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("parse memory record: %w", err)
		}
		if _, ok := raw["parameters"]; !ok {
			raw["parameters"] = json.RawMessage("{}")
		}
		reencoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("normalize memory record: %w", err)
		}

		var result experiment.RunResult
		if err := json.Unmarshal(reencoded, &result); err != nil {
			return nil, fmt.Errorf("decode memory record: %w", err)
		}
		if result.Parameters == nil {
			result.Parameters = map[string]float64{}
		}
		out = append(out, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan memory log: %w", err)
	}
	return out, nil
}
