package contact

import (
	"time"

	"github.com/zombor/numify/internal/extract"
)

// Contact is an address book entry saved from a scan
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"` // digits only
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScanResult is what a scan hands back to the caller for review
type ScanResult struct {
	Text       string              `json:"text"`
	Candidates []extract.Candidate `json:"candidates"`
}
