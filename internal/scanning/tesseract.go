package scanning

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/numify/internal/extract"
)

// minOCRHeight is the height small captures are upscaled to before recognition
const minOCRHeight = 1200

// Tesseract implements the Scanner interface with a local Tesseract install
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract scanner. Languages default to English.
func NewTesseract(languages ...string) (*Tesseract, error) {
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Tesseract{languages: langs}, nil
}

// Recognize runs Tesseract over a preprocessed copy of the image
func (t *Tesseract) Recognize(imageData []byte, contentType string) (*Recognition, error) {
	img, err := decodeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}
	pngData, err := encodePNG(preprocess(img))
	if err != nil {
		return nil, err
	}

	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("reading text blocks: %w", err)
	}

	return &Recognition{
		Text:   strings.TrimSpace(text),
		Blocks: blocksFromBoxes(boxes),
	}, nil
}

// blocksFromBoxes keeps the trimmed text of every non-blank block box
func blocksFromBoxes(boxes []gosseract.BoundingBox) []extract.Block {
	blocks := make([]extract.Block, 0, len(boxes))
	for _, b := range boxes {
		if s := strings.TrimSpace(b.Word); s != "" {
			blocks = append(blocks, extract.Block{Text: s})
		}
	}
	return blocks
}

// Close is a no-op, a client is created per recognition
func (t *Tesseract) Close() error {
	return nil
}

// preprocess boosts contrast on a grayscale copy and upscales small captures
func preprocess(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < minOCRHeight {
		gray = imaging.Resize(gray, 0, minOCRHeight, imaging.Lanczos)
	}
	return gray
}
