package tiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// WriterOptions selects the container variant and strip compression.
type WriterOptions struct {
	Big      bool
	Compress bool // Deflate strips (Compression=8).
}

// Writer emits one little-endian TIFF or BigTIFF stream. Pixel planes are
// written front-to-back as they arrive; the IFD chain is assembled at
// Finish, after every strip offset is known. Usage:
//
//	w := NewWriter(f, opts)
//	w.WriteHeader()
//	w.WritePlane(...) for each plane, channel-outer, Z-inner
//	w.Finish(description, software)
type Writer struct {
	w    io.WriteSeeker
	opts WriterOptions
	off  int64

	planes []planeRef
	err    error
}

// planeRef records one written plane strip for IFD assembly.
type planeRef struct {
	width, height int
	bits          int
	format        uint16
	stripOff      int64
	stripLen      int64
}

// NewWriter wraps w. Nothing is written until WriteHeader.
func NewWriter(w io.WriteSeeker, opts WriterOptions) *Writer {
	return &Writer{w: w, opts: opts}
}

// headerSize returns the byte length of the file header for the variant.
func (w *Writer) headerSize() int64 {
	if w.opts.Big {
		return 16 // II + 43 + offsetsize/reserved + uint64 first-IFD offset.
	}
	return 8 // II + 42 + uint32 first-IFD offset.
}

// WriteHeader writes the file header with a placeholder first-IFD offset;
// Finish patches it once the IFD chain position is known.
func (w *Writer) WriteHeader() error {
	if w.err != nil {
		return w.err
	}
	var buf bytes.Buffer
	buf.WriteString("II")
	if w.opts.Big {
		le16(&buf, VersionBig)
		le16(&buf, 8) // offset byte size
		le16(&buf, 0) // reserved
		le64(&buf, 0) // first IFD, patched later
	} else {
		le16(&buf, VersionClassic)
		le32(&buf, 0) // first IFD, patched later
	}
	return w.emit(buf.Bytes())
}

// WritePlane appends one 2D plane as a single strip. data must hold
// width*height samples of bits/8 bytes each, little-endian.
func (w *Writer) WritePlane(width, height, bits int, format uint16, data []byte) error {
	if w.err != nil {
		return w.err
	}
	want := width * height * (bits / 8)
	if len(data) != want {
		return w.fail(fmt.Errorf("plane %d: data length %d, want %d", len(w.planes), len(data), want))
	}

	strip := data
	if w.opts.Compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return w.fail(err)
		}
		if err := zw.Close(); err != nil {
			return w.fail(err)
		}
		strip = buf.Bytes()
	}

	// Strips start on word boundaries.
	if w.off%2 == 1 {
		if err := w.emit([]byte{0}); err != nil {
			return err
		}
	}

	ref := planeRef{
		width:    width,
		height:   height,
		bits:     bits,
		format:   format,
		stripOff: w.off,
		stripLen: int64(len(strip)),
	}
	if !w.opts.Big && w.off+ref.stripLen > classicMaxOffset {
		return w.fail(ErrClassicOverflow)
	}
	if err := w.emit(strip); err != nil {
		return err
	}
	w.planes = append(w.planes, ref)
	return nil
}

// Finish writes the IFD chain and patches the header's first-IFD offset.
// description lands in the ImageDescription tag of the first IFD only;
// software in its Software tag. Both may be empty.
func (w *Writer) Finish(description []byte, software string) error {
	if w.err != nil {
		return w.err
	}
	if len(w.planes) == 0 {
		return w.fail(fmt.Errorf("no planes written"))
	}

	firstIFD := w.align()
	if w.err != nil {
		return w.err
	}
	if !w.opts.Big && firstIFD > classicMaxOffset {
		return w.fail(ErrClassicOverflow)
	}

	next := firstIFD
	for i, ref := range w.planes {
		var desc []byte
		var soft string
		if i == 0 {
			desc, soft = description, software
		}
		ifd, err := w.buildIFD(ref, next, i == len(w.planes)-1, desc, soft)
		if err != nil {
			return w.fail(err)
		}
		if err := w.emit(ifd); err != nil {
			return err
		}
		next = w.off
	}

	// Patch the first-IFD offset in the header.
	if _, err := w.w.Seek(w.headerSize()-int64(w.offsetSize()), io.SeekStart); err != nil {
		return w.fail(err)
	}
	var buf bytes.Buffer
	if w.opts.Big {
		le64(&buf, uint64(firstIFD))
	} else {
		le32(&buf, uint32(firstIFD))
	}
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return w.fail(err)
	}
	return nil
}

// buildIFD renders one IFD with entries in ascending tag order, its
// out-of-line values appended directly after the entry table. ifdOff is
// the absolute position it will be written at.
func (w *Writer) buildIFD(ref planeRef, ifdOff int64, last bool, description []byte, software string) ([]byte, error) {
	type entry struct {
		tag   uint16
		typ   uint16
		count uint64
		val   uint64 // inline value, or placeholder patched from extra
		extra []byte // out-of-line payload, nil when inline
	}

	entries := []entry{
		{tag: tagImageWidth, typ: typeLong, count: 1, val: uint64(ref.width)},
		{tag: tagImageLength, typ: typeLong, count: 1, val: uint64(ref.height)},
		{tag: tagBitsPerSample, typ: typeShort, count: 1, val: uint64(ref.bits)},
		{tag: tagCompression, typ: typeShort, count: 1, val: uint64(w.compression())},
		{tag: tagPhotometric, typ: typeShort, count: 1, val: PhotometricMinIsBlack},
	}
	if len(description) > 0 {
		// ASCII values are NUL-terminated.
		desc := append(append([]byte(nil), description...), 0)
		entries = append(entries, entry{tag: tagImageDescription, typ: typeASCII, count: uint64(len(desc)), extra: desc})
	}
	offType, offVal := uint16(typeLong), uint64(ref.stripOff)
	cntType := uint16(typeLong)
	if w.opts.Big {
		offType, cntType = typeLong8, typeLong8
	}
	entries = append(entries,
		entry{tag: tagStripOffsets, typ: offType, count: 1, val: offVal},
		entry{tag: tagSamplesPerPixel, typ: typeShort, count: 1, val: 1},
		entry{tag: tagRowsPerStrip, typ: typeLong, count: 1, val: uint64(ref.height)},
		entry{tag: tagStripByteCounts, typ: cntType, count: 1, val: uint64(ref.stripLen)},
	)
	if software != "" {
		soft := append([]byte(software), 0)
		entries = append(entries, entry{tag: tagSoftware, typ: typeASCII, count: uint64(len(soft)), extra: soft})
	}
	entries = append(entries, entry{tag: tagSampleFormat, typ: typeShort, count: 1, val: uint64(ref.format)})

	entrySize, countSize, nextSize, inline := 12, 2, 4, 4
	if w.opts.Big {
		entrySize, countSize, nextSize, inline = 20, 8, 8, 8
	}
	tableLen := int64(countSize + len(entries)*entrySize + nextSize)

	// Lay out the out-of-line area after the entry table. Each value is
	// padded to even length so values and the next IFD stay word-aligned.
	extraOff := ifdOff + tableLen
	for i := range entries {
		e := &entries[i]
		if e.extra == nil {
			continue
		}
		if len(e.extra) <= inline {
			continue // packed into the value field below
		}
		e.val = uint64(extraOff)
		extraOff += int64(len(e.extra) + len(e.extra)%2)
	}
	if !w.opts.Big && extraOff > classicMaxOffset {
		return nil, ErrClassicOverflow
	}

	var buf bytes.Buffer
	if w.opts.Big {
		le64(&buf, uint64(len(entries)))
	} else {
		le16(&buf, uint16(len(entries)))
	}
	for _, e := range entries {
		le16(&buf, e.tag)
		le16(&buf, e.typ)
		if w.opts.Big {
			le64(&buf, e.count)
		} else {
			le32(&buf, uint32(e.count))
		}
		switch {
		case e.extra != nil && len(e.extra) <= inline:
			pad := make([]byte, inline)
			copy(pad, e.extra)
			buf.Write(pad)
		case w.opts.Big:
			le64(&buf, e.val)
		default:
			le32(&buf, uint32(e.val))
		}
	}
	// Next-IFD pointer: the following IFD starts after this one's
	// out-of-line area; zero terminates the chain.
	nextIFD := uint64(extraOff)
	if last {
		nextIFD = 0
	}
	if w.opts.Big {
		le64(&buf, nextIFD)
	} else {
		le32(&buf, uint32(nextIFD))
	}
	for _, e := range entries {
		if e.extra != nil && len(e.extra) > inline {
			buf.Write(e.extra)
			// Keep out-of-line values word-aligned; extraOff above
			// accounts for this pad byte.
			if len(e.extra)%2 == 1 {
				buf.WriteByte(0)
			}
		}
	}
	return buf.Bytes(), nil
}

// compression returns the Compression tag value for the options.
func (w *Writer) compression() int {
	if w.opts.Compress {
		return CompressionDeflate
	}
	return CompressionNone
}

// offsetSize is the width of the header's first-IFD offset field.
func (w *Writer) offsetSize() int {
	if w.opts.Big {
		return 8
	}
	return 4
}

// align pads the stream to an even offset; IFDs must begin on a word
// boundary.
func (w *Writer) align() int64 {
	if w.off%2 == 1 {
		_ = w.emit([]byte{0})
	}
	return w.off
}

// emit writes b at the current position and advances the offset.
func (w *Writer) emit(b []byte) error {
	n, err := w.w.Write(b)
	w.off += int64(n)
	if err != nil {
		return w.fail(err)
	}
	return nil
}

// fail latches the first error; every later call returns it.
func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}

// --- little-endian buffer helpers ---

func le16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func le32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func le64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
