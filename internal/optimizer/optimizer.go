// Package optimizer shrinks raster images before they are stored: it bounds
// their dimensions and re-encodes them at a target quality.
//
// Optimize is a pure function over byte slices. Inputs that are already within
// the size budget come back untouched.
package optimizer

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/mediavault/internal/common"

	// registers the webp decoder with image.Decode
	_ "golang.org/x/image/webp"
)

// Output formats.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWEBP = "webp"
	FormatGIF  = "gif"
)

// Default qualities per output format.
const (
	DefaultJPEGQuality = 85
	DefaultPNGQuality  = 90
	DefaultWEBPQuality = 85
)

// Options controls a single Optimize call. Zero MaxWidth/MaxHeight disable
// resizing on that axis; an empty Format keeps the source format.
type Options struct {
	MaxWidth     int
	MaxHeight    int
	Quality      int
	Format       string
	MaxSizeBytes int64
}

// Result describes the optimized image.
type Result struct {
	Buffer           []byte  `json:"-"`
	Format           string  `json:"format"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	OriginalSize     int64   `json:"originalSize"`
	OptimizedSize    int64   `json:"optimizedSize"`
	WasOptimized     bool    `json:"wasOptimized"`
	CompressionRatio float64 `json:"compressionRatio"`
}

// Optimize resizes and re-encodes buf according to opts.
//
// When len(buf) <= opts.MaxSizeBytes the input is returned as is with
// WasOptimized=false. Images are only ever scaled down, keeping the aspect
// ratio. Animated GIFs are returned unchanged because re-encoding would keep
// only the first frame.
func Optimize(buf []byte, opts Options) (*Result, error) {
	cfg, srcFormat, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %v: %w", err, common.ErrUnsupportedType)
	}

	res := &Result{
		Format:           srcFormat,
		Width:            cfg.Width,
		Height:           cfg.Height,
		OriginalSize:     int64(len(buf)),
		OptimizedSize:    int64(len(buf)),
		CompressionRatio: 1,
		Buffer:           buf,
	}

	if opts.MaxSizeBytes > 0 && res.OriginalSize <= opts.MaxSizeBytes {
		return res, nil
	}
	if srcFormat == FormatGIF && isAnimatedGIF(buf) {
		return res, nil
	}

	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, common.ErrUnsupportedType)
	}

	b := img.Bounds()
	if exceeds(b.Dx(), opts.MaxWidth) || exceeds(b.Dy(), opts.MaxHeight) {
		w, h := opts.MaxWidth, opts.MaxHeight
		if w <= 0 {
			w = b.Dx()
		}
		if h <= 0 {
			h = b.Dy()
		}
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}

	target := outputFormat(srcFormat, opts.Format)
	var out bytes.Buffer
	if err := encode(&out, img, target, opts.Quality); err != nil {
		return nil, fmt.Errorf("encode %s: %w", target, err)
	}

	res.Buffer = out.Bytes()
	res.Format = target
	res.Width = img.Bounds().Dx()
	res.Height = img.Bounds().Dy()
	res.OptimizedSize = int64(out.Len())
	res.WasOptimized = true
	if res.OptimizedSize > 0 {
		res.CompressionRatio = float64(res.OriginalSize) / float64(res.OptimizedSize)
	}
	return res, nil
}

func exceeds(v, limit int) bool {
	return limit > 0 && v > limit
}

// outputFormat picks the encoder. There is no WebP encoder in the image
// stack, so WebP targets and sources are written as JPEG.
func outputFormat(src, requested string) string {
	f := strings.ToLower(requested)
	if f == "" {
		f = src
	}
	switch f {
	case FormatPNG, FormatGIF:
		return f
	default:
		return FormatJPEG
	}
}

func encode(w *bytes.Buffer, img image.Image, format string, quality int) error {
	switch format {
	case FormatPNG:
		if quality <= 0 {
			quality = DefaultPNGQuality
		}
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(quality)))
	case FormatGIF:
		return imaging.Encode(w, img, imaging.GIF)
	default:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

// pngLevel maps a quality setting to zlib effort: PNG is lossless, so lower
// "quality" buys a smaller file at the cost of CPU.
func pngLevel(quality int) png.CompressionLevel {
	if quality >= DefaultPNGQuality {
		return png.DefaultCompression
	}
	return png.BestCompression
}

func isAnimatedGIF(buf []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(buf))
	return err == nil && len(g.Image) > 1
}
