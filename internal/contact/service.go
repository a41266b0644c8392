package contact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/numify/internal/extract"
	"github.com/zombor/numify/internal/scanning"
)

// DefaultName is stored when a contact is saved without a name
const DefaultName = "Unknown"

// IDGenerator generates unique IDs for contacts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles scanning and the contact list
type Service struct {
	db          DB
	scanner     scanning.Scanner
	extractor   *extract.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator, clock and colors
func NewService(db DB, scanner scanning.Scanner) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		extractor:   extract.NewExtractor(nil),
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, extractor *extract.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

func (s *Service) recognize(data []byte, contentType string) (*scanning.Recognition, error) {
	rec, err := s.scanner.Recognize(data, contentType)
	if err != nil {
		slog.Error("Failed to recognize text",
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("recognizing text: %w", err)
	}
	return rec, nil
}

// Scan reads a photo and returns every name/phone pairing found in it
func (s *Service) Scan(data []byte, contentType string) (*ScanResult, error) {
	rec, err := s.recognize(data, contentType)
	if err != nil {
		return nil, err
	}

	candidates := s.extractor.Extract(rec.Text)
	slog.Debug("Scan finished", "lines", strings.Count(rec.Text, "\n")+1, "candidates", len(candidates))

	return &ScanResult{
		Text:       rec.Text,
		Candidates: candidates,
	}, nil
}

// ScanSingle reads a photo and returns at most one candidate: the first text
// block as the name and the first number anywhere as the phone
func (s *Service) ScanSingle(data []byte, contentType string) (*ScanResult, error) {
	rec, err := s.recognize(data, contentType)
	if err != nil {
		return nil, err
	}

	blocks := rec.Blocks
	if len(blocks) == 0 {
		// Engines that only report flat text get one block per line
		for _, line := range strings.Split(rec.Text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				blocks = append(blocks, extract.Block{Text: line})
			}
		}
	}

	result := &ScanResult{Text: rec.Text, Candidates: make([]extract.Candidate, 0, 1)}
	if c, ok := s.extractor.ExtractSingle(blocks); ok {
		result.Candidates = append(result.Candidates, c)
	}
	return result, nil
}

// SaveContact validates and stores a reviewed candidate
func (s *Service) SaveContact(name, phone string) (*Contact, error) {
	digits, err := ValidatePhone(phone)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}

	now := s.timeSource.Now()
	contact := &Contact{
		ID:        s.idGenerator.Generate(),
		Name:      name,
		Phone:     digits,
		Label:     "mobile",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.SaveContact(contact); err != nil {
		return nil, fmt.Errorf("saving contact: %w", err)
	}
	slog.Info("Contact saved", "id", contact.ID, "name", contact.Name)
	return contact, nil
}

// GetContact retrieves a contact by ID
func (s *Service) GetContact(id string) (*Contact, error) {
	contact, err := s.db.GetContact(id)
	if err != nil {
		return nil, fmt.Errorf("getting contact: %w", err)
	}
	return contact, nil
}

// ListContacts returns all contacts, oldest first
func (s *Service) ListContacts() ([]*Contact, error) {
	contacts, err := s.db.ListContacts()
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
	return contacts, nil
}

// DeleteContact removes a contact
func (s *Service) DeleteContact(id string) error {
	if err := s.db.DeleteContact(id); err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	return nil
}

// ImportPhoto scans a photo on disk and saves every candidate with a usable
// number. Candidates with short numbers are skipped.
func (s *Service) ImportPhoto(path string) ([]*Contact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}

	result, err := s.Scan(data, contentTypeForPath(path))
	if err != nil {
		return nil, err
	}

	saved := make([]*Contact, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		contact, err := s.SaveContact(c.Name, c.Phone)
		if err != nil {
			slog.Warn("Skipping candidate", "path", path, "phone", c.Phone, "error", err)
			continue
		}
		saved = append(saved, contact)
	}
	return saved, nil
}

// contentTypeForPath guesses the MIME type from the file extension
func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
