package tiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// maxIFDs bounds the IFD chain length so a corrupt next-IFD loop cannot
// spin forever.
const maxIFDs = 1 << 20

// maxEntries bounds the entry count of one IFD.
const maxEntries = 4096

// File is a parsed TIFF or BigTIFF: the IFD chain with the tags this tool
// needs, plus enough state to decode plane data on demand. Parsing reads
// only directory structures; pixel payloads stay on disk until
// [IFD.Data] is called.
type File struct {
	Big   bool
	Order binary.ByteOrder

	r    io.ReaderAt
	size int64
	IFDs []*IFD
}

// IFD is one image directory: a single 2D plane.
type IFD struct {
	Width           int
	Height          int
	Bits            int
	SamplesPerPixel int
	SampleFormat    uint16
	Compression     int
	Description     []byte

	stripOffsets []int64
	stripCounts  []int64
	file         *File
}

// Sniff reports whether head starts with a TIFF byte-order mark and
// version magic. Eight bytes are enough.
func Sniff(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	var order binary.ByteOrder
	switch {
	case head[0] == 'I' && head[1] == 'I':
		order = binary.LittleEndian
	case head[0] == 'M' && head[1] == 'M':
		order = binary.BigEndian
	default:
		return false
	}
	v := order.Uint16(head[2:4])
	return v == VersionClassic || v == VersionBig
}

// Parse reads the IFD chain of a TIFF or BigTIFF stream. Both byte orders
// are accepted on read; [ErrNotTIFF] is returned when the magic is absent,
// any other error means a recognized but unreadable structure.
func Parse(r io.ReaderAt, size int64) (*File, error) {
	var head [16]byte
	if _, err := r.ReadAt(head[:8], 0); err != nil {
		return nil, ErrNotTIFF
	}
	if !Sniff(head[:8]) {
		return nil, ErrNotTIFF
	}

	f := &File{r: r, size: size}
	switch {
	case head[0] == 'I':
		f.Order = binary.LittleEndian
	default:
		f.Order = binary.BigEndian
	}

	var next int64
	if f.Order.Uint16(head[2:4]) == VersionBig {
		f.Big = true
		if _, err := r.ReadAt(head[4:16], 4); err != nil {
			return nil, fmt.Errorf("BigTIFF header: %w", err)
		}
		if f.Order.Uint16(head[4:6]) != 8 {
			return nil, fmt.Errorf("BigTIFF offset size %d, want 8", f.Order.Uint16(head[4:6]))
		}
		next = int64(f.Order.Uint64(head[8:16]))
	} else {
		next = int64(f.Order.Uint32(head[4:8]))
	}

	for next != 0 {
		if len(f.IFDs) >= maxIFDs {
			return nil, fmt.Errorf("IFD chain exceeds %d entries", maxIFDs)
		}
		ifd, n, err := f.parseIFD(next)
		if err != nil {
			return nil, fmt.Errorf("IFD %d at offset %d: %w", len(f.IFDs), next, err)
		}
		f.IFDs = append(f.IFDs, ifd)
		if n == next {
			return nil, fmt.Errorf("IFD at offset %d links to itself", next)
		}
		next = n
	}
	if len(f.IFDs) == 0 {
		return nil, fmt.Errorf("empty IFD chain")
	}
	return f, nil
}

// parseIFD reads one directory at off and returns it with the offset of
// the next IFD (0 terminates the chain).
func (f *File) parseIFD(off int64) (*IFD, int64, error) {
	entrySize, countSize, nextSize := 12, 2, 4
	if f.Big {
		entrySize, countSize, nextSize = 20, 8, 8
	}

	countBuf := make([]byte, countSize)
	if _, err := f.r.ReadAt(countBuf, off); err != nil {
		return nil, 0, fmt.Errorf("entry count: %w", err)
	}
	var count int
	if f.Big {
		count = int(f.Order.Uint64(countBuf))
	} else {
		count = int(f.Order.Uint16(countBuf))
	}
	if count <= 0 || count > maxEntries {
		return nil, 0, fmt.Errorf("implausible entry count %d", count)
	}

	table := make([]byte, count*entrySize+nextSize)
	if _, err := f.r.ReadAt(table, off+int64(countSize)); err != nil {
		return nil, 0, fmt.Errorf("entry table: %w", err)
	}

	ifd := &IFD{SamplesPerPixel: 1, SampleFormat: SampleFormatUint, Compression: CompressionNone, file: f}
	for i := 0; i < count; i++ {
		e := table[i*entrySize : (i+1)*entrySize]
		if err := f.applyEntry(ifd, e); err != nil {
			return nil, 0, err
		}
	}

	var next int64
	tail := table[count*entrySize:]
	if f.Big {
		next = int64(f.Order.Uint64(tail))
	} else {
		next = int64(f.Order.Uint32(tail))
	}

	if ifd.Width <= 0 || ifd.Height <= 0 {
		return nil, 0, fmt.Errorf("missing image extent tags")
	}
	if len(ifd.stripOffsets) == 0 || len(ifd.stripOffsets) != len(ifd.stripCounts) {
		return nil, 0, fmt.Errorf("inconsistent strip tags (%d offsets, %d counts)",
			len(ifd.stripOffsets), len(ifd.stripCounts))
	}
	if ifd.Bits == 0 {
		ifd.Bits = 1 // bilevel files; rejected later by the container layer
	}
	return ifd, next, nil
}

// applyEntry decodes one 12- or 20-byte entry into the IFD fields this
// reader cares about; unknown tags are skipped.
func (f *File) applyEntry(ifd *IFD, e []byte) error {
	tag := f.Order.Uint16(e[0:2])
	typ := f.Order.Uint16(e[2:4])

	var count uint64
	var value []byte
	if f.Big {
		count = f.Order.Uint64(e[4:12])
		value = e[12:20]
	} else {
		count = uint64(f.Order.Uint32(e[4:8]))
		value = e[8:12]
	}

	switch tag {
	case tagImageWidth:
		v, err := f.scalar(typ, count, value)
		if err != nil {
			return fmt.Errorf("ImageWidth: %w", err)
		}
		ifd.Width = int(v)
	case tagImageLength:
		v, err := f.scalar(typ, count, value)
		if err != nil {
			return fmt.Errorf("ImageLength: %w", err)
		}
		ifd.Height = int(v)
	case tagBitsPerSample:
		vals, err := f.integers(typ, count, value)
		if err != nil {
			return fmt.Errorf("BitsPerSample: %w", err)
		}
		ifd.Bits = int(vals[0])
	case tagCompression:
		v, err := f.scalar(typ, count, value)
		if err != nil {
			return fmt.Errorf("Compression: %w", err)
		}
		ifd.Compression = int(v)
	case tagImageDescription:
		raw, err := f.bytesValue(count, value)
		if err != nil {
			return fmt.Errorf("ImageDescription: %w", err)
		}
		ifd.Description = bytes.TrimRight(raw, "\x00")
	case tagStripOffsets:
		vals, err := f.integers(typ, count, value)
		if err != nil {
			return fmt.Errorf("StripOffsets: %w", err)
		}
		ifd.stripOffsets = toInt64(vals)
	case tagSamplesPerPixel:
		v, err := f.scalar(typ, count, value)
		if err != nil {
			return fmt.Errorf("SamplesPerPixel: %w", err)
		}
		ifd.SamplesPerPixel = int(v)
	case tagStripByteCounts:
		vals, err := f.integers(typ, count, value)
		if err != nil {
			return fmt.Errorf("StripByteCounts: %w", err)
		}
		ifd.stripCounts = toInt64(vals)
	case tagSampleFormat:
		v, err := f.scalar(typ, count, value)
		if err != nil {
			return fmt.Errorf("SampleFormat: %w", err)
		}
		ifd.SampleFormat = uint16(v)
	}
	return nil
}

// scalar returns a single-count integer entry value.
func (f *File) scalar(typ uint16, count uint64, value []byte) (uint64, error) {
	if count != 1 {
		return 0, fmt.Errorf("count %d, want 1", count)
	}
	vals, err := f.integers(typ, count, value)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// integers decodes an integer-typed entry value, following the offset to
// out-of-line storage when the payload exceeds the inline field.
func (f *File) integers(typ uint16, count uint64, value []byte) ([]uint64, error) {
	var width int
	switch typ {
	case typeByte:
		width = 1
	case typeShort:
		width = 2
	case typeLong:
		width = 4
	case typeLong8:
		if !f.Big {
			return nil, fmt.Errorf("LONG8 in classic TIFF")
		}
		width = 8
	default:
		return nil, fmt.Errorf("unsupported field type %d", typ)
	}

	if count == 0 || count > uint64(f.size) {
		return nil, fmt.Errorf("implausible value count %d", count)
	}
	total := int(count) * width

	raw := value
	if total > len(value) {
		off := f.inlineOffset(value)
		raw = make([]byte, total)
		if _, err := f.r.ReadAt(raw, off); err != nil {
			return nil, fmt.Errorf("out-of-line value at %d: %w", off, err)
		}
	}

	out := make([]uint64, count)
	for i := range out {
		switch width {
		case 1:
			out[i] = uint64(raw[i])
		case 2:
			out[i] = uint64(f.Order.Uint16(raw[i*2:]))
		case 4:
			out[i] = uint64(f.Order.Uint32(raw[i*4:]))
		case 8:
			out[i] = f.Order.Uint64(raw[i*8:])
		}
	}
	return out, nil
}

// bytesValue decodes an ASCII/BYTE entry payload.
func (f *File) bytesValue(count uint64, value []byte) ([]byte, error) {
	if count == 0 {
		return nil, nil
	}
	if count > uint64(f.size) {
		return nil, fmt.Errorf("implausible value count %d", count)
	}
	if int(count) <= len(value) {
		return append([]byte(nil), value[:count]...), nil
	}
	off := f.inlineOffset(value)
	raw := make([]byte, count)
	if _, err := f.r.ReadAt(raw, off); err != nil {
		return nil, fmt.Errorf("out-of-line value at %d: %w", off, err)
	}
	return raw, nil
}

// inlineOffset reads the value field as an offset to out-of-line storage.
func (f *File) inlineOffset(value []byte) int64 {
	if f.Big {
		return int64(f.Order.Uint64(value))
	}
	return int64(f.Order.Uint32(value))
}

// toInt64 converts entry values to offsets/lengths.
func toInt64(vals []uint64) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	return out
}

// Data reads, decompresses, and concatenates the plane's strips. Samples
// wider than one byte are returned little-endian regardless of the file's
// byte order. The result length is validated against the plane extent.
func (ifd *IFD) Data() ([]byte, error) {
	switch ifd.Compression {
	case CompressionNone, CompressionDeflate:
	default:
		return nil, fmt.Errorf("unsupported compression scheme %d", ifd.Compression)
	}

	want := ifd.Width * ifd.Height * ifd.SamplesPerPixel * (ifd.Bits / 8)
	if want <= 0 {
		return nil, fmt.Errorf("unsupported sample layout (%d bits, %d samples/pixel)",
			ifd.Bits, ifd.SamplesPerPixel)
	}

	out := make([]byte, 0, want)
	for i, off := range ifd.stripOffsets {
		n := ifd.stripCounts[i]
		if n < 0 || off < 0 || off+n > ifd.file.size {
			return nil, fmt.Errorf("strip %d [%d:%d] outside file of %d bytes", i, off, off+n, ifd.file.size)
		}
		strip := make([]byte, n)
		if _, err := ifd.file.r.ReadAt(strip, off); err != nil {
			return nil, fmt.Errorf("strip %d: %w", i, err)
		}
		if ifd.Compression == CompressionDeflate {
			zr, err := zlib.NewReader(bytes.NewReader(strip))
			if err != nil {
				return nil, fmt.Errorf("strip %d: %w", i, err)
			}
			strip, err = io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return nil, fmt.Errorf("strip %d: %w", i, err)
			}
		}
		out = append(out, strip...)
	}

	if len(out) != want {
		return nil, fmt.Errorf("plane data %d bytes, extent %dx%d at %d bits needs %d",
			len(out), ifd.Width, ifd.Height, ifd.Bits, want)
	}
	if ifd.file.Order == binary.BigEndian {
		swapToLittle(out, ifd.Bits/8)
	}
	return out, nil
}

// swapToLittle reverses sample byte order in place.
func swapToLittle(data []byte, width int) {
	if width <= 1 {
		return
	}
	for i := 0; i+width <= len(data); i += width {
		for a, b := i, i+width-1; a < b; a, b = a+1, b-1 {
			data[a], data[b] = data[b], data[a]
		}
	}
}
