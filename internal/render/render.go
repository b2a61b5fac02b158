// Package render turns validated worksheet content into printable PDFs.
package render

import (
	"context"
	"io"

	"github.com/worksheetlab/server/internal/domain"
)

// Renderer writes a printable document for a worksheet.
type Renderer interface {
	// Render writes the document to w and returns the bytes written.
	Render(ctx context.Context, ws *domain.Worksheet, w io.Writer) (int64, error)
}

// Palette is the color scheme used across rendered worksheets.
var Palette = struct {
	Header    string
	TextDark  string
	TextMuted string
	Rule      string
}{
	Header:    "#1E3A5F",
	TextDark:  "#1F2937",
	TextMuted: "#6B7280",
	Rule:      "#E5E7EB",
}

// HexToRGB converts a "#RRGGBB" color to its RGB components.
func HexToRGB(hex string) (r, g, b int) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	return hexToDec(hex[0:2]), hexToDec(hex[2:4]), hexToDec(hex[4:6])
}

func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}
