package export

import (
	"context"
	"fmt"

	"vsg/api/internal/docstore"
)

// DataStore is the part of the document store an export reads.
type DataStore interface {
	ExportFullDatabase() (docstore.Artifact, error)
	ExportFilename(ext string) string
	Snapshot() docstore.Tree
}

// Service provides document export functionality
type Service struct {
	store    DataStore
	archiver Archiver
}

// NewService creates a new export service. archiver may be nil.
func NewService(store DataStore, archiver Archiver) *Service {
	return &Service{store: store, archiver: archiver}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Archive && s.archiver == nil {
		return nil, ErrArchiveUnavailable
	}

	var result *Result
	switch req.Format {
	case FormatJSON, "":
		artifact, err := s.store.ExportFullDatabase()
		if err != nil {
			return nil, err
		}
		result = &Result{Data: artifact.Data, Filename: artifact.Filename, MimeType: artifact.MimeType}
	case FormatXLSX:
		data, err := renderXLSX(s.store.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		result = &Result{Data: data, Filename: s.store.ExportFilename("xlsx"), MimeType: MimeXLSX}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	if req.Archive {
		key := "exports/" + result.Filename
		if err := s.archiver.Put(ctx, key, result.Data, result.MimeType); err != nil {
			return nil, fmt.Errorf("archive export: %w", err)
		}
		result.ArchiveKey = key
	}
	return result, nil
}
