package optimizer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	return encodePNG(t, img)
}

func TestStamp_DarkensBottomStrip(t *testing.T) {
	in := solidPNG(t, 200, 100)

	out, err := Stamp(in, "image/png", "t1/u1")
	require.NoError(t, err)
	require.NotEqual(t, in, out)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	top := color.NRGBAModel.Convert(img.At(199, 0)).(color.NRGBA)
	bottom := color.NRGBAModel.Convert(img.At(199, 99)).(color.NRGBA)
	assert.Equal(t, uint8(0xff), top.R)
	assert.Less(t, bottom.R, top.R)
}

func TestStamp_PassThrough(t *testing.T) {
	small := solidPNG(t, 10, 10)

	tests := []struct {
		name     string
		buf      []byte
		mimeType string
		label    string
	}{
		{"too small", small, "image/png", "t1/u1"},
		{"empty label", solidPNG(t, 200, 100), "image/png", ""},
		{"gif", []byte("GIF89a"), "image/gif", "t1/u1"},
		{"pdf", []byte("%PDF-1.4"), "application/pdf", "t1/u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Stamp(tt.buf, tt.mimeType, tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.buf, out)
		})
	}
}

func TestStamp_CorruptImage(t *testing.T) {
	_, err := Stamp([]byte("not a png"), "image/png", "t1/u1")
	require.Error(t, err)
}
