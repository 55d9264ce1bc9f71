// Package export renders the portal document as downloadable files.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Request contains parameters for an export operation
type Request struct {
	Format Format
	// Archive also uploads the file to the configured object store.
	Archive bool
}

// Result contains the export output
type Result struct {
	Data       []byte
	Filename   string
	MimeType   string
	ArchiveKey string
}

var (
	// ErrUnsupportedFormat indicates the requested format has no renderer.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrArchiveUnavailable indicates an archive was requested but no object store is configured.
	ErrArchiveUnavailable = errors.New("export archive unavailable")
)
