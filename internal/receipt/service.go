package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-cam/internal/corrections"
	"github.com/zombor/receipt-cam/internal/scanning"
)

// ErrNoReceipt is returned when a commit carries no extracted receipt
var ErrNoReceipt = errors.New("no receipt to commit")

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// Learner persists correction rules
type Learner interface {
	Add(rule string) error
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// CommitRequest is a receipt the user has accepted, with any field edits
type CommitRequest struct {
	CaptureID   string
	Receipt     *scanning.Receipt
	Overrides   map[string]string
	Image       []byte
	ContentType string
	Filename    string
	// Learn turns every override into a correction rule
	Learn bool
}

// CommitResult is the stored record and the rules learned from it
type CommitResult struct {
	Record  *Record  `json:"record"`
	Learned []string `json:"learned,omitempty"`
}

// Service handles the committed receipt ledger
type Service struct {
	db          DB
	storage     Storage
	learner     Learner
	idGenerator IDGenerator
	clock       clock.Clock
}

// NewService creates a new Service with a uuid ID generator and the wall clock
func NewService(db DB, storage Storage, learner Learner) *Service {
	return NewServiceWithDeps(db, storage, learner, uuidGenerator{}, clock.New())
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, learner Learner, idGen IDGenerator, clk clock.Clock) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		learner:     learner,
		idGenerator: idGen,
		clock:       clk,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	// Keep only alphanumeric, spaces, hyphens, and underscores
	base = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`).ReplaceAllString(base, "")
	base = regexp.MustCompile(`\s+`).ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "capture"
	}
	if ext == "" {
		ext = ".jpg"
	}

	return base + ext
}

// cleanOverrides drops overrides that are blank or match the extracted value
func cleanOverrides(receipt *scanning.Receipt, overrides map[string]string) (map[string]string, error) {
	cleaned := make(map[string]string)
	for field, value := range overrides {
		current, ok := receipt.Get(field)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", field)
		}
		value = strings.TrimSpace(value)
		if value == "" || value == current {
			continue
		}
		cleaned[field] = value
	}
	return cleaned, nil
}

// Commit stores a receipt with its overrides and, when asked, learns
// correction rules from the overrides
func (s *Service) Commit(req CommitRequest) (*CommitResult, error) {
	if req.Receipt == nil {
		return nil, ErrNoReceipt
	}

	overrides, err := cleanOverrides(req.Receipt, req.Overrides)
	if err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.clock.Now()
	extracted := *req.Receipt

	record := &Record{
		ID:        id,
		CaptureID: req.CaptureID,
		Receipt:   &extracted,
		Overrides: overrides,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(req.Image) > 0 {
		saved, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Filename)), req.Image)
		if err != nil {
			return nil, fmt.Errorf("saving file: %w", err)
		}
		record.Filename = saved
		record.ContentType = req.ContentType
		if record.ContentType == "" {
			record.ContentType = scanning.ContentTypeFor(saved)
		}
	}

	if err := s.db.SaveRecord(record); err != nil {
		if record.Filename != "" {
			s.storage.Delete(record.Filename)
		}
		return nil, fmt.Errorf("saving record to database: %w", err)
	}

	result := &CommitResult{Record: record}
	if req.Learn && s.learner != nil {
		result.Learned = s.learn(record)
	}

	slog.Info("Committed receipt", "id", id, "vendor", record.Final().Vendor, "overrides", len(overrides), "learned", len(result.Learned))
	return result, nil
}

// learn persists one rule per override; rules that fail to save are logged and skipped
func (s *Service) learn(record *Record) []string {
	var learned []string
	for _, rule := range corrections.Learn(record.Receipt, record.Final()) {
		text := rule.Format()
		if err := s.learner.Add(text); err != nil {
			slog.Error("Failed to save correction", "record", record.ID, "field", rule.Field, "error", err)
			continue
		}
		learned = append(learned, text)
	}
	return learned
}

// Get retrieves a record by ID
func (s *Service) Get(id string) (*Record, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// List returns all records
func (s *Service) List() ([]*Record, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// Delete removes a record and its image
func (s *Service) Delete(id string) error {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if record.Filename != "" {
		if err := s.storage.Delete(record.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", record.Filename, "error", err)
		}
	}

	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record from database: %w", err)
	}
	return nil
}

// GetFile retrieves the stored image for a record
func (s *Service) GetFile(id string) ([]byte, string, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting record: %w", err)
	}
	if record.Filename == "" {
		return nil, "", fmt.Errorf("record %s has no file: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(record.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting record file: %w", err)
	}

	return data, record.ContentType, nil
}

// Summary counts the records and totals every parseable final total_amount
func (s *Service) Summary() (*Summary, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Count:    len(records),
		Total:    decimal.Zero,
		ByVendor: make(map[string]decimal.Decimal),
	}
	for _, record := range records {
		final := record.Final()
		amount, ok := ParseAmount(final.TotalAmount)
		if !ok {
			continue
		}
		summary.Totaled++
		summary.Total = summary.Total.Add(amount)
		summary.ByVendor[final.Vendor] = summary.ByVendor[final.Vendor].Add(amount)
	}
	return summary, nil
}
