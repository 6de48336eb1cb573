package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff/lzw"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
)

// GeoTIFF reader for the raster layouts the viewer actually meets: classic
// (non-Big) TIFF, single band, strip- or tile-organized, uncompressed, LZW,
// or Deflate, with integer or floating-point samples. Georeferencing comes
// from the ModelPixelScale + ModelTiepoint tag pair and the GeoKey directory;
// categorical rasters additionally carry a ColorMap palette and GDAL's
// nodata tag.

// TIFF tags used by the reader.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagColorMap        = 320
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339

	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// Compression schemes.
const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionOldDeflate = 32946
)

// Sample formats.
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// GeoKey IDs.
const (
	geoKeyModelType    = 1024
	geoKeyGeographicCS = 2048
	geoKeyProjectedCS  = 3072
)

// ReadFile loads a single-band GeoTIFF from disk.
func ReadFile(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read raster %s", path)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Decode parses a GeoTIFF from memory.
func Decode(data []byte) (*Raster, error) {
	d, err := newTiffDecoder(data)
	if err != nil {
		return nil, err
	}
	return d.decode()
}

// ifdEntry is one parsed TIFF directory entry.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   []byte // value bytes, already dereferenced
	order binary.ByteOrder
}

type tiffDecoder struct {
	data    []byte
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

func newTiffDecoder(data []byte) (*tiffDecoder, error) {
	if len(data) < 8 {
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "file too short for a TIFF header")
	}

	var order binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "not a TIFF file")
	}

	switch order.Uint16(data[2:4]) {
	case 42:
		// classic TIFF
	case 43:
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "BigTIFF is not supported")
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "bad TIFF magic")
	}

	d := &tiffDecoder{data: data, order: order, entries: make(map[uint16]ifdEntry)}
	if err := d.readIFD(order.Uint32(data[4:8])); err != nil {
		return nil, err
	}
	return d, nil
}

// typeSizes maps TIFF field types to their byte widths.
var typeSizes = [...]uint32{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

// readIFD parses the first image directory. Overviews in later IFDs are
// ignored; the full-resolution grid is always first.
func (d *tiffDecoder) readIFD(offset uint32) error {
	if int(offset)+2 > len(d.data) {
		return errors.New(errors.ErrCodeUnsupportedRaster, "IFD offset out of range")
	}
	n := int(d.order.Uint16(d.data[offset : offset+2]))
	pos := int(offset) + 2
	if pos+n*12 > len(d.data) {
		return errors.New(errors.ErrCodeUnsupportedRaster, "truncated IFD")
	}

	for i := 0; i < n; i++ {
		e := d.data[pos+i*12 : pos+(i+1)*12]
		entry := ifdEntry{
			tag:   d.order.Uint16(e[0:2]),
			typ:   d.order.Uint16(e[2:4]),
			count: d.order.Uint32(e[4:8]),
			order: d.order,
		}
		if int(entry.typ) >= len(typeSizes) || entry.typ == 0 {
			continue // unknown field type, skip
		}
		size := typeSizes[entry.typ] * entry.count
		if size <= 4 {
			entry.raw = e[8 : 8+size]
		} else {
			valOff := d.order.Uint32(e[8:12])
			if int(valOff)+int(size) > len(d.data) {
				return errors.New(errors.ErrCodeUnsupportedRaster, "tag %d value out of range", entry.tag)
			}
			entry.raw = d.data[valOff : valOff+size]
		}
		d.entries[entry.tag] = entry
	}
	return nil
}

// uints returns the entry values as unsigned integers (BYTE/SHORT/LONG).
func (e ifdEntry) uints() []uint {
	out := make([]uint, 0, e.count)
	for i := uint32(0); i < e.count; i++ {
		switch e.typ {
		case 1, 6, 7: // BYTE, SBYTE, UNDEFINED
			out = append(out, uint(e.raw[i]))
		case 3, 8: // SHORT, SSHORT
			out = append(out, uint(e.order.Uint16(e.raw[i*2:])))
		case 4, 9: // LONG, SLONG
			out = append(out, uint(e.order.Uint32(e.raw[i*4:])))
		}
	}
	return out
}

// doubles returns the entry values as float64 (DOUBLE or FLOAT).
func (e ifdEntry) doubles() []float64 {
	out := make([]float64, 0, e.count)
	for i := uint32(0); i < e.count; i++ {
		switch e.typ {
		case 11: // FLOAT
			out = append(out, float64(math.Float32frombits(e.order.Uint32(e.raw[i*4:]))))
		case 12: // DOUBLE
			out = append(out, math.Float64frombits(e.order.Uint64(e.raw[i*8:])))
		}
	}
	return out
}

// ascii returns the entry value as a string with trailing NULs trimmed.
func (e ifdEntry) ascii() string {
	return strings.TrimRight(string(e.raw), "\x00")
}

func (d *tiffDecoder) firstUint(tag uint16, def uint) uint {
	if e, ok := d.entries[tag]; ok {
		if vals := e.uints(); len(vals) > 0 {
			return vals[0]
		}
	}
	return def
}

func (d *tiffDecoder) decode() (*Raster, error) {
	width := int(d.firstUint(tagImageWidth, 0))
	height := int(d.firstUint(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "missing image dimensions")
	}

	if spp := d.firstUint(tagSamplesPerPixel, 1); spp != 1 {
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "multi-band rasters are not supported (%d samples per pixel)", spp)
	}
	if pc := d.firstUint(tagPlanarConfig, 1); pc != 1 {
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "planar configuration %d is not supported", pc)
	}

	bits := d.firstUint(tagBitsPerSample, 1)
	switch bits {
	case 8, 16, 32, 64:
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "%d-bit samples are not supported", bits)
	}
	format := d.firstUint(tagSampleFormat, sampleFormatUint)

	tr, proj4, err := d.georeference()
	if err != nil {
		return nil, err
	}

	r := New(width, height, tr, proj4)
	r.Palette = d.palette(bits)

	if err := d.readGrid(r, bits, format); err != nil {
		return nil, err
	}
	d.applyNoData(r, bits)
	return r, nil
}

// georeference derives the affine transform and CRS from the geo tags.
func (d *tiffDecoder) georeference() (Transform, string, error) {
	scaleEntry, okScale := d.entries[tagModelPixelScale]
	tieEntry, okTie := d.entries[tagModelTiepoint]
	if !okScale || !okTie {
		return Transform{}, "", errors.New(errors.ErrCodeUnsupportedRaster, "missing geotiff georeferencing tags")
	}

	scale := scaleEntry.doubles()
	tie := tieEntry.doubles()
	if len(scale) < 2 || len(tie) < 6 {
		return Transform{}, "", errors.New(errors.ErrCodeUnsupportedRaster, "malformed georeferencing tags")
	}

	// Tiepoint maps raster point (i, j) to world point (x, y).
	i, j := tie[0], tie[1]
	x, y := tie[3], tie[4]
	tr := Transform{
		Dx:      scale[0],
		Dy:      -scale[1],
		OriginX: x - i*scale[0],
		OriginY: y + j*scale[1],
	}

	epsg, err := d.epsgCode()
	if err != nil {
		return Transform{}, "", err
	}
	proj4, err := Proj4FromEPSG(epsg)
	if err != nil {
		return Transform{}, "", err
	}
	return tr, proj4, nil
}

// epsgCode extracts the EPSG code from the GeoKey directory, preferring the
// projected CS key over the geographic one.
func (d *tiffDecoder) epsgCode() (int, error) {
	e, ok := d.entries[tagGeoKeyDirectory]
	if !ok {
		return 0, errors.New(errors.ErrCodeCRS, "missing GeoKey directory")
	}
	keys := e.uints()
	if len(keys) < 4 {
		return 0, errors.New(errors.ErrCodeCRS, "malformed GeoKey directory")
	}

	numKeys := int(keys[3])
	geographic := 0
	for k := 0; k < numKeys; k++ {
		base := 4 + k*4
		if base+3 >= len(keys) {
			break
		}
		keyID, location, value := keys[base], keys[base+1], keys[base+3]
		if location != 0 {
			continue // value stored in another tag; only inline shorts carry EPSG codes
		}
		switch keyID {
		case geoKeyProjectedCS:
			return int(value), nil
		case geoKeyGeographicCS:
			geographic = int(value)
		}
	}
	if geographic != 0 {
		return geographic, nil
	}
	return 0, errors.New(errors.ErrCodeCRS, "no CRS code in GeoKey directory")
}

// palette extracts the embedded color table, if any. TIFF palettes store
// 16-bit channels; GDAL writes 8-bit values scaled by 257, so the high byte
// recovers the original.
func (d *tiffDecoder) palette(bits uint) map[uint16]color.NRGBA {
	e, ok := d.entries[tagColorMap]
	if !ok || bits > 16 {
		return nil
	}
	vals := e.uints()
	n := len(vals) / 3
	if n == 0 {
		return nil
	}
	pal := make(map[uint16]color.NRGBA, n)
	for i := 0; i < n; i++ {
		pal[uint16(i)] = color.NRGBA{
			R: uint8(vals[i] >> 8),
			G: uint8(vals[n+i] >> 8),
			B: uint8(vals[2*n+i] >> 8),
			A: 255,
		}
	}
	return pal
}

// readGrid decodes strip- or tile-organized sample data into the raster.
func (d *tiffDecoder) readGrid(r *Raster, bits, format uint) error {
	compression := d.firstUint(tagCompression, compressionNone)
	predictor := d.firstUint(tagPredictor, 1)
	if predictor == 2 && format == sampleFormatFloat {
		return errors.New(errors.ErrCodeUnsupportedRaster, "horizontal predictor on float samples is not supported")
	}

	if _, tiled := d.entries[tagTileOffsets]; tiled {
		return d.readTiles(r, bits, format, compression, predictor)
	}
	return d.readStrips(r, bits, format, compression, predictor)
}

func (d *tiffDecoder) readStrips(r *Raster, bits, format, compression, predictor uint) error {
	offsetsEntry, ok := d.entries[tagStripOffsets]
	if !ok {
		return errors.New(errors.ErrCodeUnsupportedRaster, "no strip or tile data")
	}
	offsets := offsetsEntry.uints()
	counts := d.entries[tagStripByteCounts].uints()
	if len(counts) < len(offsets) {
		return errors.New(errors.ErrCodeUnsupportedRaster, "missing strip byte counts")
	}

	rowsPerStrip := int(d.firstUint(tagRowsPerStrip, uint(r.Height)))
	if rowsPerStrip <= 0 || rowsPerStrip > r.Height {
		rowsPerStrip = r.Height
	}
	bytesPerSample := int(bits / 8)

	for s, off := range offsets {
		row0 := s * rowsPerStrip
		row1 := row0 + rowsPerStrip
		if row1 > r.Height {
			row1 = r.Height
		}
		if row0 >= r.Height {
			break
		}

		raw, err := d.segment(int(off), int(counts[s]), compression, (row1-row0)*r.Width*bytesPerSample)
		if err != nil {
			return err
		}
		if predictor == 2 {
			undoPredictor(raw, r.Width, bytesPerSample, d.order)
		}

		idx := 0
		for row := row0; row < row1; row++ {
			for col := 0; col < r.Width; col++ {
				r.SetValue(col, row, d.sample(raw, idx, bits, format))
				idx += bytesPerSample
			}
		}
	}
	return nil
}

func (d *tiffDecoder) readTiles(r *Raster, bits, format, compression, predictor uint) error {
	offsets := d.entries[tagTileOffsets].uints()
	counts := d.entries[tagTileByteCounts].uints()
	tw := int(d.firstUint(tagTileWidth, 0))
	th := int(d.firstUint(tagTileLength, 0))
	if tw <= 0 || th <= 0 || len(counts) < len(offsets) {
		return errors.New(errors.ErrCodeUnsupportedRaster, "malformed tile layout")
	}

	bytesPerSample := int(bits / 8)
	tilesAcross := (r.Width + tw - 1) / tw

	for t, off := range offsets {
		tileCol := (t % tilesAcross) * tw
		tileRow := (t / tilesAcross) * th
		if tileRow >= r.Height {
			break
		}

		raw, err := d.segment(int(off), int(counts[t]), compression, tw*th*bytesPerSample)
		if err != nil {
			return err
		}
		if predictor == 2 {
			undoPredictor(raw, tw, bytesPerSample, d.order)
		}

		for dy := 0; dy < th && tileRow+dy < r.Height; dy++ {
			for dx := 0; dx < tw; dx++ {
				col := tileCol + dx
				if col >= r.Width {
					continue // right-edge padding
				}
				idx := (dy*tw + dx) * bytesPerSample
				r.SetValue(col, tileRow+dy, d.sample(raw, idx, bits, format))
			}
		}
	}
	return nil
}

// segment returns the decompressed bytes of one strip or tile.
func (d *tiffDecoder) segment(off, count int, compression uint, expect int) ([]byte, error) {
	if off < 0 || off+count > len(d.data) {
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "segment out of range")
	}
	raw := d.data[off : off+count]

	switch compression {
	case compressionNone:
		return raw, nil
	case compressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer rc.Close()
		return readUpTo(rc, expect)
	case compressionDeflate, compressionOldDeflate:
		rc, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnsupportedRaster, err, "bad deflate segment")
		}
		defer rc.Close()
		return readUpTo(rc, expect)
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "compression scheme %d is not supported", compression)
	}
}

// readUpTo reads at most expect bytes; short reads are fine for edge strips.
func readUpTo(r io.Reader, expect int) ([]byte, error) {
	buf := make([]byte, expect)
	n, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf[:n], err
}

// undoPredictor reverses TIFF horizontal differencing in place, row by row.
// Samples wider than one byte must accumulate at their full width in the
// file's byte order, or the carry between bytes is lost.
func undoPredictor(raw []byte, width, bytesPerSample int, order binary.ByteOrder) {
	rowBytes := width * bytesPerSample
	for rowStart := 0; rowStart+rowBytes <= len(raw); rowStart += rowBytes {
		row := raw[rowStart : rowStart+rowBytes]
		switch bytesPerSample {
		case 1:
			for i := 1; i < len(row); i++ {
				row[i] += row[i-1]
			}
		case 2:
			for i := 2; i+2 <= len(row); i += 2 {
				order.PutUint16(row[i:], order.Uint16(row[i:])+order.Uint16(row[i-2:]))
			}
		case 4:
			for i := 4; i+4 <= len(row); i += 4 {
				order.PutUint32(row[i:], order.Uint32(row[i:])+order.Uint32(row[i-4:]))
			}
		case 8:
			for i := 8; i+8 <= len(row); i += 8 {
				order.PutUint64(row[i:], order.Uint64(row[i:])+order.Uint64(row[i-8:]))
			}
		}
	}
}

// sample decodes one sample at byte offset idx.
func (d *tiffDecoder) sample(raw []byte, idx int, bits, format uint) float64 {
	if idx+int(bits/8) > len(raw) {
		return math.NaN()
	}
	switch bits {
	case 8:
		if format == sampleFormatInt {
			return float64(int8(raw[idx]))
		}
		return float64(raw[idx])
	case 16:
		v := d.order.Uint16(raw[idx:])
		if format == sampleFormatInt {
			return float64(int16(v))
		}
		return float64(v)
	case 32:
		v := d.order.Uint32(raw[idx:])
		switch format {
		case sampleFormatFloat:
			return float64(math.Float32frombits(v))
		case sampleFormatInt:
			return float64(int32(v))
		default:
			return float64(v)
		}
	case 64:
		v := d.order.Uint64(raw[idx:])
		switch format {
		case sampleFormatFloat:
			return math.Float64frombits(v)
		case sampleFormatInt:
			return float64(int64(v))
		default:
			return float64(v)
		}
	}
	return math.NaN()
}

// applyNoData masks cells matching GDAL's nodata marker to NaN.
func (d *tiffDecoder) applyNoData(r *Raster, bits uint) {
	e, ok := d.entries[tagGDALNoData]
	if !ok {
		return
	}
	nd, err := strconv.ParseFloat(strings.TrimSpace(e.ascii()), 64)
	if err != nil {
		return
	}
	// Float32 rasters round-trip the marker through 32 bits.
	if bits == 32 {
		nd = float64(float32(nd))
	}
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			if r.Value(col, row) == nd {
				r.SetValue(col, row, math.NaN())
			}
		}
	}
}
