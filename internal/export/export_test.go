package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"vsg/api/internal/docstore"
	"vsg/api/internal/slot"
)

type archived struct {
	key         string
	data        []byte
	contentType string
}

type memoryArchiver struct {
	puts []archived
	err  error
}

func (a *memoryArchiver) Put(_ context.Context, key string, data []byte, contentType string) error {
	if a.err != nil {
		return a.err
	}
	a.puts = append(a.puts, archived{key: key, data: data, contentType: contentType})
	return nil
}

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	now := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)
	return docstore.Open(context.Background(), slot.NewMemory(), docstore.WithClock(func() time.Time { return now }))
}

func TestExportJSON(t *testing.T) {
	st := newStore(t)
	svc := NewService(st, nil)

	res, err := svc.Export(context.Background(), Request{Format: FormatJSON})
	require.NoError(t, err)
	want, err := st.ExportFullDatabase()
	require.NoError(t, err)

	assert.Equal(t, want.Data, res.Data)
	assert.Equal(t, "vsg_full_database_2026-01-30.json", res.Filename)
	assert.Equal(t, "application/json", res.MimeType)
	assert.Empty(t, res.ArchiveKey)
}

func TestExportXLSX(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	st.AddTeam(ctx, docstore.Team{Name: "Чарли", Type: docstore.TeamRecon, Members: []string{"a", "b"}})
	_, err := st.UpdateSettings(ctx, docstore.Fields{"theme": "dark"})
	require.NoError(t, err)

	res, err := NewService(st, nil).Export(ctx, Request{Format: FormatXLSX})
	require.NoError(t, err)
	assert.Equal(t, "vsg_full_database_2026-01-30.xlsx", res.Filename)
	assert.Equal(t, MimeXLSX, res.MimeType)

	f, err := excelize.OpenReader(bytes.NewReader(res.Data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"news", "schedule", "rules", "teams", "faq", "users", "profiles", "settings"}, f.GetSheetList())

	teams, err := f.GetRows("teams")
	require.NoError(t, err)
	require.Len(t, teams, 4)
	assert.Equal(t, []string{"id", "name", "type", "leader", "size", "maxSize", "description", "members"}, teams[0])
	assert.Equal(t, "Альфа", teams[1][1])
	assert.Equal(t, "3", teams[3][0])
	assert.Equal(t, "a, b", teams[3][7])

	schedule, err := f.GetRows("schedule")
	require.NoError(t, err)
	assert.Equal(t, "Альфа, Браво, Чарли", schedule[1][6])

	settings, err := f.GetRows("settings")
	require.NoError(t, err)
	assert.Contains(t, settings, []string{"theme", "dark"})
	assert.Contains(t, settings, []string{"siteTitle", "VECTOR SERIOUS GAMES"})
}

func TestExportArchive(t *testing.T) {
	st := newStore(t)
	arch := &memoryArchiver{}
	svc := NewService(st, arch)

	res, err := svc.Export(context.Background(), Request{Format: FormatJSON, Archive: true})
	require.NoError(t, err)
	assert.Equal(t, "exports/vsg_full_database_2026-01-30.json", res.ArchiveKey)
	require.Len(t, arch.puts, 1)
	assert.Equal(t, res.ArchiveKey, arch.puts[0].key)
	assert.Equal(t, res.Data, arch.puts[0].data)
	assert.Equal(t, "application/json", arch.puts[0].contentType)

	arch.err = errors.New("bucket gone")
	_, err = svc.Export(context.Background(), Request{Format: FormatXLSX, Archive: true})
	assert.ErrorContains(t, err, "bucket gone")
}

func TestExportErrors(t *testing.T) {
	st := newStore(t)

	_, err := NewService(st, nil).Export(context.Background(), Request{Format: "pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewService(st, nil).Export(context.Background(), Request{Format: FormatJSON, Archive: true})
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
}
