package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"yieldScope/internal/model"
)

const (
	kindSnapshot     = "snapshot"
	kindConfirmation = "confirmation"
)

type jsonlLine struct {
	Kind         string                      `json:"kind"`
	TakenAt      string                      `json:"taken_at"`
	Snapshot     *model.ReconciliationResult `json:"snapshot,omitempty"`
	Confirmation *model.Confirmation         `json:"confirmation,omitempty"`
}

// JsonlStorage appends results as JSON lines to a file, or to a writer when path is "-".
type JsonlStorage struct {
	path   string
	writer io.Writer
	mu     sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	if path == "-" {
		return &JsonlStorage{path: path, writer: os.Stdout}
	}
	return &JsonlStorage{path: path}
}

// NewJsonlWriter writes lines to w.
func NewJsonlWriter(w io.Writer) *JsonlStorage {
	return &JsonlStorage{path: "-", writer: w}
}

func (s *JsonlStorage) PutSnapshot(_ context.Context, snap Snapshot) error {
	result := snap.Result
	return s.write(jsonlLine{
		Kind:     kindSnapshot,
		TakenAt:  snap.TakenAt.UTC().Format(time.RFC3339Nano),
		Snapshot: &result,
	})
}

func (s *JsonlStorage) PutConfirmation(_ context.Context, conf model.Confirmation) error {
	return s.write(jsonlLine{
		Kind:         kindConfirmation,
		TakenAt:      time.Now().UTC().Format(time.RFC3339Nano),
		Confirmation: &conf,
	})
}

func (s *JsonlStorage) write(line jsonlLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", line.Kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		if _, err := s.writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write %s: %w", line.Kind, err)
		}
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", line.Kind, err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
