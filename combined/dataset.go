package combined

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/photomap/model"
)

// Dataset file layout: a fixed little-endian header, a zstd-compressed
// column-oriented body and a trailing CRC32 over everything before it.
// Columns, in order: source folder, path, coordinate validity, latitude,
// longitude, country, city, capture-time validity, capture time (ns).
const (
	datasetMagic   = 0x504D4431 // "PMD1"
	datasetVersion = 1

	datasetHeaderSize = 16
)

var (
	errDatasetTruncated = errors.New("dataset file truncated")
	errDatasetChecksum  = errors.New("dataset checksum mismatch")
	errDatasetMagic     = errors.New("invalid dataset magic number")
	errDatasetVersion   = errors.New("unsupported dataset version")
)

type datasetHeader struct {
	Magic    uint32
	Version  uint16
	Flags    uint16
	RowCount uint64
}

func encodeDataset(rows []model.Row) ([]byte, error) {
	var buf bytes.Buffer

	hdr := datasetHeader{
		Magic:    datasetMagic,
		Version:  datasetVersion,
		RowCount: uint64(len(rows)),
	}
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}

	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	if err := writeColumns(zw, rows); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	crc := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, crc); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeColumns(w io.Writer, rows []model.Row) error {
	if err := writeStringColumn(w, rows, func(r model.Row) string { return r.SourceFolder }); err != nil {
		return err
	}
	if err := writeStringColumn(w, rows, func(r model.Row) string { return r.Path }); err != nil {
		return err
	}

	if err := writeFlagColumn(w, rows, func(r model.Row) bool { return r.Coord != nil }); err != nil {
		return err
	}
	if err := writeFloat64Column(w, rows, func(r model.Row) float64 {
		if r.Coord == nil {
			return 0
		}
		return r.Coord.Lat
	}); err != nil {
		return err
	}
	if err := writeFloat64Column(w, rows, func(r model.Row) float64 {
		if r.Coord == nil {
			return 0
		}
		return r.Coord.Lon
	}); err != nil {
		return err
	}

	if err := writeStringColumn(w, rows, func(r model.Row) string { return r.Country }); err != nil {
		return err
	}
	if err := writeStringColumn(w, rows, func(r model.Row) string { return r.City }); err != nil {
		return err
	}

	if err := writeFlagColumn(w, rows, func(r model.Row) bool { return r.TakenAt != nil }); err != nil {
		return err
	}
	return writeInt64Column(w, rows, func(r model.Row) int64 {
		if r.TakenAt == nil {
			return 0
		}
		return r.TakenAt.UnixNano()
	})
}

func writeStringColumn(w io.Writer, rows []model.Row, get func(model.Row) string) error {
	var scratch [binary.MaxVarintLen64]byte
	for _, r := range rows {
		s := get(r)
		n := binary.PutUvarint(scratch[:], uint64(len(s)))
		if _, err := w.Write(scratch[:n]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func writeFlagColumn(w io.Writer, rows []model.Row, get func(model.Row) bool) error {
	col := make([]byte, len(rows))
	for i, r := range rows {
		if get(r) {
			col[i] = 1
		}
	}
	_, err := w.Write(col)
	return err
}

func writeFloat64Column(w io.Writer, rows []model.Row, get func(model.Row) float64) error {
	var scratch [8]byte
	for _, r := range rows {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(get(r)))
		if _, err := w.Write(scratch[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeInt64Column(w io.Writer, rows []model.Row, get func(model.Row) int64) error {
	var scratch [8]byte
	for _, r := range rows {
		binary.LittleEndian.PutUint64(scratch[:], uint64(get(r)))
		if _, err := w.Write(scratch[:]); err != nil {
			return err
		}
	}
	return nil
}

func decodeDataset(data []byte) ([]model.Row, error) {
	if len(data) < datasetHeaderSize+4 {
		return nil, errDatasetTruncated
	}

	body := data[:len(data)-4]
	want := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != want {
		return nil, errDatasetChecksum
	}

	var hdr datasetHeader
	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Magic != datasetMagic {
		return nil, errDatasetMagic
	}
	if hdr.Version != datasetVersion {
		return nil, fmt.Errorf("%w: %d", errDatasetVersion, hdr.Version)
	}

	zr, err := zstd.NewReader(bytes.NewReader(body[datasetHeaderSize:]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	br := bufio.NewReader(zr)
	n := int(hdr.RowCount)
	rows := make([]model.Row, n)

	sources, err := readStringColumn(br, n)
	if err != nil {
		return nil, err
	}
	paths, err := readStringColumn(br, n)
	if err != nil {
		return nil, err
	}
	coordValid, err := readFlagColumn(br, n)
	if err != nil {
		return nil, err
	}
	lats, err := readFloat64Column(br, n)
	if err != nil {
		return nil, err
	}
	lons, err := readFloat64Column(br, n)
	if err != nil {
		return nil, err
	}
	countries, err := readStringColumn(br, n)
	if err != nil {
		return nil, err
	}
	cities, err := readStringColumn(br, n)
	if err != nil {
		return nil, err
	}
	timeValid, err := readFlagColumn(br, n)
	if err != nil {
		return nil, err
	}
	times, err := readInt64Column(br, n)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i] = model.Row{
			SourceFolder: sources[i],
			Path:         paths[i],
			Country:      countries[i],
			City:         cities[i],
		}
		if coordValid[i] {
			rows[i].Coord = &model.Coordinate{Lat: lats[i], Lon: lons[i]}
		}
		if timeValid[i] {
			t := time.Unix(0, times[i])
			rows[i].TakenAt = &t
		}
	}

	return rows, nil
}

func readStringColumn(br *bufio.Reader, n int) ([]string, error) {
	col := make([]string, n)
	for i := range col {
		l, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		b := make([]byte, l)
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, err
		}
		col[i] = string(b)
	}
	return col, nil
}

func readFlagColumn(br *bufio.Reader, n int) ([]bool, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, err
	}
	col := make([]bool, n)
	for i, b := range raw {
		col[i] = b != 0
	}
	return col, nil
}

func readFloat64Column(br *bufio.Reader, n int) ([]float64, error) {
	col := make([]float64, n)
	var scratch [8]byte
	for i := range col {
		if _, err := io.ReadFull(br, scratch[:]); err != nil {
			return nil, err
		}
		col[i] = math.Float64frombits(binary.LittleEndian.Uint64(scratch[:]))
	}
	return col, nil
}

func readInt64Column(br *bufio.Reader, n int) ([]int64, error) {
	col := make([]int64, n)
	var scratch [8]byte
	for i := range col {
		if _, err := io.ReadFull(br, scratch[:]); err != nil {
			return nil, err
		}
		col[i] = int64(binary.LittleEndian.Uint64(scratch[:]))
	}
	return col, nil
}
