package rag

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is an answered question.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptLog records answered questions in a JSON state file. It is the
// TurnRecorder used when no database is configured.
type TranscriptLog struct {
	sync.Mutex
	path    string
	entries []TranscriptEntry
}

func loadState(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func saveState(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func NewTranscriptLog(stateFile string) (*TranscriptLog, error) {
	// if file exists, try to load an existing state
	// if file does not exist, create a new state
	if _, err := os.Stat(stateFile); err != nil {
		l := &TranscriptLog{
			path:    stateFile,
			entries: []TranscriptEntry{},
		}
		l.Lock()
		defer l.Unlock()
		return l, saveState(l.path, l.entries)
	}

	entries := []TranscriptEntry{}
	if err := loadState(stateFile, &entries); err != nil {
		return nil, err
	}
	return &TranscriptLog{path: stateFile, entries: entries}, nil
}

// RecordTurn appends the turn and rewrites the state file.
func (l *TranscriptLog) RecordTurn(_ context.Context, question, answer string) error {
	l.Lock()
	defer l.Unlock()

	l.entries = append(l.entries, TranscriptEntry{
		ID:        uuid.New().String(),
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	})
	return saveState(l.path, l.entries)
}

// Entries returns a copy of the recorded turns, oldest first.
func (l *TranscriptLog) Entries() []TranscriptEntry {
	l.Lock()
	defer l.Unlock()

	out := make([]TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
