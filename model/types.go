package model

import "time"

// TimeLayout is the EXIF capture-time form used in folder cache files
// ("YYYY:MM:DD HH:MM:SS").
const TimeLayout = "2006:01:02 15:04:05"

// Coordinate is a WGS84 point in signed decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// PhotoRecord is one photo's cached metadata inside its folder cache.
//
// Path is relative to the cache's folder and unique within it. Coord is
// nil when the photo carries no GPS data; latitude and longitude never
// appear separately. Empty Country, City or TakenAt mean unknown.
type PhotoRecord struct {
	Path    string
	Coord   *Coordinate
	Country string
	City    string
	TakenAt string // EXIF form, see TimeLayout
}

// Resolved reports whether a scan has nothing left to do for this record:
// the country is known and the capture timestamp is filled.
func (r PhotoRecord) Resolved() bool {
	return r.Country != "" && r.TakenAt != ""
}

// Row is a photo record materialized into the combined dataset: tagged
// with its source folder (relative to the root), addressed by absolute
// path and with the capture time parsed to a typed timestamp.
type Row struct {
	SourceFolder string
	Path         string
	Coord        *Coordinate
	Country      string
	City         string
	TakenAt      *time.Time
}

// ParseTakenAt parses an EXIF capture-time string. Invalid or empty input
// yields nil, never an error.
func ParseTakenAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// GroupMode selects how the combined dataset is bucketed.
type GroupMode int

const (
	GroupByFolder GroupMode = iota
	GroupByFolderYear
	GroupByFolderYearMonth
)

func (m GroupMode) String() string {
	switch m {
	case GroupByFolder:
		return "folder"
	case GroupByFolderYear:
		return "folder-year"
	case GroupByFolderYearMonth:
		return "folder-year-month"
	default:
		return "unknown"
	}
}
