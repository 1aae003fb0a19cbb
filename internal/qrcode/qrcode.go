package qrcode

import (
	"errors"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the side of the generated image in pixels
const DefaultSize = 300

// Generator renders content (usually a booking link) as an image
type Generator interface {
	Generate(content string) ([]byte, error)
}

// PNGGenerator encodes QR codes as PNG images
type PNGGenerator struct {
	Size  int
	Level qr.RecoveryLevel
}

// NewGenerator returns a generator for 300x300 PNGs with medium error recovery
func NewGenerator() *PNGGenerator {
	return &PNGGenerator{Size: DefaultSize, Level: qr.Medium}
}

func (g *PNGGenerator) Generate(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qrcode: empty content")
	}
	png, err := qr.Encode(content, g.Level, g.Size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: %w", err)
	}
	return png, nil
}
