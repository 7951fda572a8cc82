// Package export renders a finished session into a shareable mission
// debrief, either as a PDF for printing or as a JSON transcript.
package export

import "errors"

// Format represents the debrief output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// Request contains parameters for a debrief export
type Request struct {
	Code   string
	Format Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrSessionUnavailable indicates the session document could not be loaded.
	ErrSessionUnavailable = errors.New("export session unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not one we render.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)
