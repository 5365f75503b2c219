package optimizer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/mediavault/internal/common"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const stampPadding = 4

var stampBackground = color.NRGBA{A: 0x80}

// Stamp draws label on a translucent strip along the bottom edge of the
// image. Only JPEG and PNG are re-encoded; other formats, and images too
// small to hold a line of text, come back unchanged.
func Stamp(buf []byte, mimeType, label string) ([]byte, error) {
	format := DetectFormat(mimeType)
	if label == "" || (format != FormatJPEG && format != FormatPNG) {
		return buf, nil
	}

	src, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, common.ErrValidation)
	}

	face := basicfont.Face7x13
	stripH := face.Height + 2*stampPadding
	b := src.Bounds()
	if b.Dy() < stripH*2 || b.Dx() < 2*stampPadding {
		return buf, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	strip := image.Rect(0, b.Dy()-stripH, b.Dx(), b.Dy())
	draw.Draw(dst, strip, image.NewUniform(stampBackground), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(stampPadding, b.Dy()-stampPadding-face.Descent),
	}
	d.DrawString(label)

	var out bytes.Buffer
	if err := encode(&out, dst, format, 0); err != nil {
		return nil, fmt.Errorf("encode image: %v: %w", err, common.ErrWrite)
	}
	return out.Bytes(), nil
}
