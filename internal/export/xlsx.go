package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"vsg/api/internal/docstore"
)

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// renderXLSX writes one sheet per collection with a header row, plus a
// key/value settings sheet.
func renderXLSX(tree docstore.Tree) ([]byte, error) {
	settings, err := settingsRows(tree.Settings)
	if err != nil {
		return nil, err
	}
	sheets := []sheet{
		newsSheet(tree.News),
		scheduleSheet(tree.Schedule),
		rulesSheet(tree.Rules),
		teamsSheet(tree.Teams),
		faqSheet(tree.FAQ),
		usersSheet(tree.Users),
		profilesSheet(tree.Profiles),
		{name: "settings", header: []any{"key", "value"}, rows: settings},
	}

	f := excelize.NewFile()
	defer f.Close()
	for i, sh := range sheets {
		idx, err := f.NewSheet(sh.name)
		if err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeRows(f, sh); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sh sheet) error {
	rows := append([][]any{sh.header}, sh.rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sh.name, i+1, err)
		}
	}
	return nil
}

func joinList(items []string) string { return strings.Join(items, ", ") }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newsSheet(items []docstore.News) sheet {
	sh := sheet{name: "news", header: []any{"id", "title", "date", "author", "tags", "isPinned", "views", "likes", "content"}}
	for _, n := range items {
		sh.rows = append(sh.rows, []any{n.ID, n.Title, n.Date, n.Author, joinList(n.Tags), n.IsPinned, n.Views, n.Likes, n.Content})
	}
	return sh
}

func scheduleSheet(items []docstore.Event) sheet {
	sh := sheet{name: "schedule", header: []any{"id", "day", "time", "title", "server", "description", "teamA", "teamB", "participants", "maxParticipants"}}
	for _, e := range items {
		sh.rows = append(sh.rows, []any{e.ID, e.Day, e.Time, e.Title, e.Server, e.Description,
			joinList(e.TeamA), joinList(e.TeamB), joinList(e.Participants), e.MaxParticipants})
	}
	return sh
}

func rulesSheet(items []docstore.Rule) sheet {
	sh := sheet{name: "rules", header: []any{"id", "title", "icon", "description"}}
	for _, r := range items {
		var id any = r.ID.String()
		if n, ok := r.ID.Int(); ok {
			id = n
		}
		sh.rows = append(sh.rows, []any{id, r.Title, r.Icon, r.Description})
	}
	return sh
}

func teamsSheet(items []docstore.Team) sheet {
	sh := sheet{name: "teams", header: []any{"id", "name", "type", "leader", "size", "maxSize", "description", "members"}}
	for _, t := range items {
		sh.rows = append(sh.rows, []any{t.ID, t.Name, string(t.Type), t.Leader, t.Size, t.MaxSize, t.Description, joinList(t.Members)})
	}
	return sh
}

func faqSheet(items []docstore.FAQEntry) sheet {
	sh := sheet{name: "faq", header: []any{"id", "question", "answer", "order"}}
	for _, q := range items {
		order := ""
		if q.Order != nil {
			order = strconv.Itoa(*q.Order)
		}
		sh.rows = append(sh.rows, []any{q.ID, q.Question, q.Answer, order})
	}
	return sh
}

func usersSheet(items []docstore.User) sheet {
	sh := sheet{name: "users", header: []any{"id", "username", "role", "discordId", "joined"}}
	for _, u := range items {
		sh.rows = append(sh.rows, []any{u.ID, u.Username, string(u.Role), optional(u.DiscordID), formatTime(u.Joined)})
	}
	return sh
}

func profilesSheet(items []docstore.Profile) sheet {
	sh := sheet{name: "profiles", header: []any{"userId", "username", "discordId", "rank", "gamesPlayed", "gamesWon",
		"hoursPlayed", "kdRatio", "accuracy", "survivalRate", "rating", "teams", "activities", "createdAt"}}
	for _, p := range items {
		sh.rows = append(sh.rows, []any{p.UserID, p.Username, optional(p.DiscordID), p.Rank, p.GamesPlayed, p.GamesWon,
			p.HoursPlayed, p.KDRatio, p.Accuracy, p.SurvivalRate, p.Rating, joinList(p.Teams), len(p.Activities), formatTime(p.CreatedAt)})
	}
	return sh
}

// settingsRows flattens the settings object, unknown keys included, sorted by key.
func settingsRows(s docstore.Settings) ([][]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		var str string
		value := string(fields[k])
		if json.Unmarshal(fields[k], &str) == nil {
			value = str
		}
		rows = append(rows, []any{k, value})
	}
	return rows, nil
}
