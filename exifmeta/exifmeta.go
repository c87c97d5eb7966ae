// Package exifmeta extracts GPS coordinates and capture timestamps from
// image files. Extraction never fails the caller: any read or parse error
// degrades to an all-null result, so a batch of N files tolerates any
// subset failing independently.
package exifmeta

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/hupe1980/photomap/model"
)

// Meta is the extraction result for one image file.
type Meta struct {
	Coord   *model.Coordinate
	TakenAt string // EXIF form, empty when unknown
}

// supportedExt lists the image extensions considered for scanning. HEIC
// and HEIF share the EXIF/TIFF container goexif decodes.
var supportedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
}

// Supported reports whether path has a supported image extension.
func Supported(path string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(path))]
}

// Extractor pulls metadata out of image files on the local filesystem.
type Extractor struct{}

// Extract reads GPS coordinates and the capture timestamp of one image.
// Missing or unreadable EXIF data yields a zero Meta.
func (Extractor) Extract(path string) Meta {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil || x == nil {
		return Meta{}
	}

	m := Meta{TakenAt: takenAt(x)}
	if lat, lon, ok := gpsDecimal(x); ok {
		m.Coord = &model.Coordinate{Lat: lat, Lon: lon}
	}
	return m
}

// takenAt returns the capture timestamp in EXIF string form, preferring
// DateTimeOriginal over DateTime. Strings that do not parse are treated
// as absent.
func takenAt(x *exif.Exif) string {
	for _, name := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := time.Parse(model.TimeLayout, s); err != nil {
			continue
		}
		return s
	}
	return ""
}

// gpsDecimal returns the signed decimal coordinate pair. The pair is
// atomic: unless both components decode fully, neither is reported.
func gpsDecimal(x *exif.Exif) (float64, float64, bool) {
	lat, ok := dmsTag(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if !ok {
		return 0, 0, false
	}
	lon, ok := dmsTag(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if !ok {
		return 0, 0, false
	}
	return lat, lon, true
}

func dmsTag(x *exif.Exif, valField, refField exif.FieldName) (float64, bool) {
	tag, err := x.Get(valField)
	if err != nil {
		return 0, false
	}
	refTag, err := x.Get(refField)
	if err != nil {
		return 0, false
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return 0, false
	}

	var dms [3]float64
	for i := range dms {
		r, err := tag.Rat(i)
		if err != nil {
			return 0, false
		}
		dms[i], _ = r.Float64()
	}

	return DMSToDecimal(dms[0], dms[1], dms[2], strings.TrimSpace(ref)), true
}

// DMSToDecimal converts degrees/minutes/seconds plus a hemisphere
// reference to signed decimal degrees: dec = deg + min/60 + sec/3600,
// negated for southern or western references.
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	dec := deg + min/60 + sec/3600
	if ref == "S" || ref == "W" {
		dec = -dec
	}
	return dec
}
