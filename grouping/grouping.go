// Package grouping buckets the combined dataset into named groups by
// folder, folder+year or folder+year-month.
package grouping

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/hupe1980/photomap/model"
)

// Group is one labeled bucket of dataset rows. Members keep dataset
// order; Count equals len(Members).
type Group struct {
	Label   string
	Members []model.Row
	Count   int
}

// Warning reports rows that lacked a capture timestamp in a time-based
// mode and fell back to their plain folder label.
type Warning struct {
	Folder string
	Count  int
}

func (w Warning) String() string {
	return fmt.Sprintf("%d photo(s) in %q have no capture timestamp and were grouped by folder only", w.Count, w.Folder)
}

// Grouper partitions dataset rows into groups.
type Grouper struct {
	logger *slog.Logger
}

// New creates a Grouper. A nil logger discards warnings logged during
// grouping; warnings are always also returned to the caller.
func New(logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Grouper{logger: logger}
}

// Group buckets rows by mode and returns groups sorted lexicographically
// by label. In year and year-month modes, rows without a capture
// timestamp fall back to their folder-only label and are reported via
// warnings; in folder mode every row groups normally.
func (g *Grouper) Group(rows []model.Row, mode model.GroupMode) ([]Group, []Warning) {
	buckets := make(map[string][]model.Row)
	fallbacks := make(map[string]int)

	for _, row := range rows {
		label, fellBack := rowLabel(row, mode)
		buckets[label] = append(buckets[label], row)
		if fellBack {
			fallbacks[row.SourceFolder]++
		}
	}

	groups := make([]Group, 0, len(buckets))
	for label, members := range buckets {
		groups = append(groups, Group{
			Label:   label,
			Members: members,
			Count:   len(members),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Label < groups[j].Label })

	warnings := make([]Warning, 0, len(fallbacks))
	for folder, count := range fallbacks {
		warnings = append(warnings, Warning{Folder: folder, Count: count})
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Folder < warnings[j].Folder })

	for _, w := range warnings {
		g.logger.Warn("rows without capture timestamp grouped by folder only",
			"folder", w.Folder,
			"count", w.Count,
			"mode", mode.String(),
		)
	}

	return groups, warnings
}

func rowLabel(row model.Row, mode model.GroupMode) (label string, fellBack bool) {
	if mode == model.GroupByFolder {
		return row.SourceFolder, false
	}
	if row.TakenAt == nil {
		return row.SourceFolder, true
	}

	switch mode {
	case model.GroupByFolderYear:
		return fmt.Sprintf("%s/%04d", row.SourceFolder, row.TakenAt.Year()), false
	case model.GroupByFolderYearMonth:
		return fmt.Sprintf("%s/%04d-%02d", row.SourceFolder, row.TakenAt.Year(), int(row.TakenAt.Month())), false
	default:
		return row.SourceFolder, false
	}
}
