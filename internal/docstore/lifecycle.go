package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const (
	ExportMimeType = "application/json"
	exportPrefix   = "vsg_full_database_"
)

// Artifact is a downloadable rendering of the document.
type Artifact struct {
	Data     []byte
	Filename string
	MimeType string
}

// ExportFilename stamps the export base name with today's date and ext.
func (s *Store) ExportFilename(ext string) string {
	return exportPrefix + s.today() + "." + ext
}

// ExportFullDatabase renders the whole tree as indented JSON.
func (s *Store) ExportFullDatabase() (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.tree, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("encode export: %w", err)
	}
	return Artifact{
		Data:     data,
		Filename: exportPrefix + s.today() + ".json",
		MimeType: ExportMimeType,
	}, nil
}

// ImportFullDatabase merges an exported document over the current one. Every
// required collection must be present and a list, otherwise nothing changes.
func (s *Store) ImportFullDatabase(ctx context.Context, payload []byte) error {
	imported, err := ParsePayload(payload)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	for _, name := range RequiredCollections {
		if raw, ok := imported[name]; !ok || kindOf(raw) != '[' {
			return &FormatError{Collection: name}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := json.Marshal(s.tree)
	if err != nil {
		return fmt.Errorf("import: encode current: %w", err)
	}
	merged, err := ParsePayload(current)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	for k, v := range imported {
		merged[k] = v
	}
	stamp, err := json.Marshal(s.now().UTC())
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	merged[keyLastUpdate] = stamp

	tree, issues := Normalize(merged, s.defaults)
	s.logIssues("import", issues)
	s.tree = tree
	s.persist(ctx)
	s.log.Info("imported document",
		zap.Int("news", len(tree.News)),
		zap.Int("users", len(tree.Users)),
		zap.Int("profiles", len(tree.Profiles)),
		zap.Int("dropped", len(issues)))
	return nil
}

// ResetDatabase erases the slot and starts over from seed data.
func (s *Store) ResetDatabase(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slot.Erase(ctx); err != nil {
		s.log.Error("erase document", zap.Error(err))
	}
	s.tree = Seed(s.now(), s.defaults)
	s.persist(ctx)
	s.log.Info("document reset to seed")
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Clone()
}
