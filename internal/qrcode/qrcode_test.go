package qrcode

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_PNG(t *testing.T) {
	img, err := NewGenerator().Generate("https://billetterie.example.org/bookings/abc123")
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, decoded.Bounds().Dx())
}

func TestGenerate_EmptyContent(t *testing.T) {
	_, err := NewGenerator().Generate("")
	assert.Error(t, err)
}
