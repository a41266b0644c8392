package scanning

import "github.com/zombor/numify/internal/extract"

// Recognition holds the text an OCR engine read from an image, in both the
// flat and the block shape
type Recognition struct {
	Text   string          `json:"text"`   // lines separated by \n
	Blocks []extract.Block `json:"blocks"` // reading order
}

// Scanner defines the interface for OCR engines
type Scanner interface {
	// Recognize reads all text from an image or PDF
	Recognize(imageData []byte, contentType string) (*Recognition, error)
	// Close closes the scanner and releases resources
	Close() error
}
