// Package corrections keeps the correction rules learned from user edits and
// supplies them to every prompt.
package corrections

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store holds the working set of correction rules backed by a newline-delimited file
type Store struct {
	path string

	mu    sync.RWMutex
	rules []string
}

// NewStore creates a Store persisted at path. Call LoadAll to read existing rules.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file the rules are persisted to
func (s *Store) Path() string {
	return s.path
}

// LoadAll reads every persisted rule into the working set
func (s *Store) LoadAll() error {
	rules, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	return nil
}

// Reload re-reads the persisted rules, replacing the working set. Rules added
// with AddUnsaved and external edits are reconciled with the file.
func (s *Store) Reload() error {
	return s.LoadAll()
}

// Add persists rule and appends it to the working set. Text spanning several
// lines becomes several rules, and blank text adds nothing, so the working set
// always matches what a Reload of the file would produce.
// The working set is unchanged if the write fails.
func (s *Store) Add(rule string) error {
	lines := splitRules(rule)
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendLines(lines); err != nil {
		return err
	}
	s.rules = append(s.rules, lines...)
	return nil
}

// AddUnsaved appends rule to the working set only; Reload discards it
func (s *Store) AddUnsaved(rule string) {
	s.mu.Lock()
	s.rules = append(s.rules, splitRules(rule)...)
	s.mu.Unlock()
}

// Rules returns a copy of the working set in insertion order
func (s *Store) Rules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]string, len(s.rules))
	copy(rules, s.rules)
	return rules
}

// Text returns the working set as newline-separated rule lines
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return strings.Join(s.rules, "\n")
}

// read loads the rule file; a missing file is an empty set
func (s *Store) read() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corrections: %w", err)
	}

	return splitRules(string(data)), nil
}

// splitRules breaks text into rule lines, dropping blank lines and carriage returns
func splitRules(text string) []string {
	rules := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rules = append(rules, line)
	}
	return rules
}

// appendLines appends rule lines to the rule file, creating it if needed
func (s *Store) appendLines(rules []string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating corrections directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening corrections: %w", err)
	}

	if _, err := f.WriteString(strings.Join(rules, "\n") + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("writing correction: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing corrections: %w", err)
	}
	return nil
}
