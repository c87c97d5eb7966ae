package grouping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/photomap/model"
)

func taken(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestGroup_ByFolder(t *testing.T) {
	rows := []model.Row{
		{SourceFolder: "sea", Path: "c.jpg"},
		{SourceFolder: "alps", Path: "a.jpg", TakenAt: taken(2021, 7, 14)},
		{SourceFolder: "alps", Path: "b.jpg"}, // no timestamp, still included
	}

	groups, warnings := New(nil).Group(rows, model.GroupByFolder)

	require.Len(t, groups, 2)
	assert.Empty(t, warnings)

	// Lexicographic label order.
	assert.Equal(t, "alps", groups[0].Label)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "sea", groups[1].Label)
	assert.Equal(t, 1, groups[1].Count)

	// Members keep dataset order.
	assert.Equal(t, "a.jpg", groups[0].Members[0].Path)
	assert.Equal(t, "b.jpg", groups[0].Members[1].Path)
}

func TestGroup_ByFolderYear(t *testing.T) {
	rows := []model.Row{
		{SourceFolder: "alps", Path: "a.jpg", TakenAt: taken(2021, 7, 14)},
		{SourceFolder: "alps", Path: "b.jpg", TakenAt: taken(2020, 1, 2)},
		{SourceFolder: "alps", Path: "c.jpg", TakenAt: taken(2021, 12, 31)},
	}

	groups, warnings := New(nil).Group(rows, model.GroupByFolderYear)

	require.Len(t, groups, 2)
	assert.Empty(t, warnings)
	assert.Equal(t, "alps/2020", groups[0].Label)
	assert.Equal(t, 1, groups[0].Count)
	assert.Equal(t, "alps/2021", groups[1].Label)
	assert.Equal(t, 2, groups[1].Count)
}

func TestGroup_ByFolderYearMonth(t *testing.T) {
	rows := []model.Row{
		{SourceFolder: "alps", Path: "a.jpg", TakenAt: taken(2021, 7, 14)},
		{SourceFolder: "alps", Path: "b.jpg", TakenAt: taken(2021, 7, 20)},
		{SourceFolder: "alps", Path: "c.jpg", TakenAt: taken(2021, 11, 3)},
	}

	groups, warnings := New(nil).Group(rows, model.GroupByFolderYearMonth)

	require.Len(t, groups, 2)
	assert.Empty(t, warnings)
	assert.Equal(t, "alps/2021-07", groups[0].Label)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "alps/2021-11", groups[1].Label)
	assert.Equal(t, 1, groups[1].Count)
}

// In time-based modes, rows without a capture timestamp fall back to the
// folder-only label and the fallback is reported to the caller.
func TestGroup_TimestamplessFallback(t *testing.T) {
	rows := []model.Row{
		{SourceFolder: "alps", Path: "a.jpg", TakenAt: taken(2021, 7, 14)},
		{SourceFolder: "alps", Path: "b.jpg"},
		{SourceFolder: "alps", Path: "c.jpg"},
		{SourceFolder: "sea", Path: "d.jpg"},
	}

	groups, warnings := New(nil).Group(rows, model.GroupByFolderYear)

	require.Len(t, groups, 3)
	assert.Equal(t, "alps", groups[0].Label)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "alps/2021", groups[1].Label)
	assert.Equal(t, "sea", groups[2].Label)

	require.Len(t, warnings, 2)
	assert.Equal(t, Warning{Folder: "alps", Count: 2}, warnings[0])
	assert.Equal(t, Warning{Folder: "sea", Count: 1}, warnings[1])
	assert.Contains(t, warnings[0].String(), "alps")
}

func TestGroup_Empty(t *testing.T) {
	groups, warnings := New(nil).Group(nil, model.GroupByFolder)
	assert.Empty(t, groups)
	assert.Empty(t, warnings)
}
