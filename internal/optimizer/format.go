package optimizer

import "strings"

// rasterTypes are the MIME types Optimize can decode.
var rasterTypes = map[string]string{
	"image/jpeg": FormatJPEG,
	"image/jpg":  FormatJPEG,
	"image/png":  FormatPNG,
	"image/gif":  FormatGIF,
	"image/webp": FormatWEBP,
}

// IsImage reports whether mimeType is a raster image the optimizer handles.
// SVG is deliberately excluded: it is stored verbatim.
func IsImage(mimeType string) bool {
	_, ok := rasterTypes[normalize(mimeType)]
	return ok
}

// DetectFormat maps a MIME type to an optimizer format, or "" when unknown.
func DetectFormat(mimeType string) string {
	return rasterTypes[normalize(mimeType)]
}

// MimeType is the inverse of DetectFormat.
func MimeType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWEBP:
		return "image/webp"
	}
	return ""
}

func normalize(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
