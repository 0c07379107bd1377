package tiff

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile runs the writer over a temp file and reopens it for parsing.
func writeFile(t *testing.T, opts WriterOptions, planes [][]byte, width, height, bits int, format uint16, desc []byte) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.tif")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := NewWriter(f, opts)
	require.NoError(t, w.WriteHeader())
	for _, p := range planes {
		require.NoError(t, w.WritePlane(width, height, bits, format, p))
	}
	require.NoError(t, w.Finish(desc, "scopemux"))
	require.NoError(t, f.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	fi, err := r.Stat()
	require.NoError(t, err)

	parsed, err := Parse(r, fi.Size())
	require.NoError(t, err)
	return parsed
}

func seqPlane(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i)
	}
	return p
}

func TestWriteReadClassic(t *testing.T) {
	width, height, bits := 5, 4, 16
	planeLen := width * height * bits / 8
	planes := [][]byte{seqPlane(planeLen, 0), seqPlane(planeLen, 7), seqPlane(planeLen, 99)}
	desc := []byte("<OME>poke</OME>")

	f := writeFile(t, WriterOptions{}, planes, width, height, bits, SampleFormatUint, desc)

	assert.False(t, f.Big)
	assert.Equal(t, binary.LittleEndian, f.Order)
	require.Len(t, f.IFDs, 3)

	for i, ifd := range f.IFDs {
		assert.Equal(t, width, ifd.Width)
		assert.Equal(t, height, ifd.Height)
		assert.Equal(t, bits, ifd.Bits)
		assert.Equal(t, CompressionNone, ifd.Compression)
		assert.Equal(t, uint16(SampleFormatUint), ifd.SampleFormat)

		data, err := ifd.Data()
		require.NoError(t, err)
		assert.Equal(t, planes[i], data, "plane %d", i)
	}

	// The description lands on the first IFD only.
	assert.Equal(t, desc, f.IFDs[0].Description)
	assert.Empty(t, f.IFDs[1].Description)
}

func TestWriteReadBigTIFFDeflate(t *testing.T) {
	width, height, bits := 16, 8, 32
	planeLen := width * height * bits / 8
	planes := [][]byte{seqPlane(planeLen, 1), seqPlane(planeLen, 2)}

	f := writeFile(t, WriterOptions{Big: true, Compress: true}, planes, width, height, bits, SampleFormatFloat, nil)

	assert.True(t, f.Big)
	require.Len(t, f.IFDs, 2)
	for i, ifd := range f.IFDs {
		assert.Equal(t, CompressionDeflate, ifd.Compression)
		assert.Equal(t, uint16(SampleFormatFloat), ifd.SampleFormat)
		data, err := ifd.Data()
		require.NoError(t, err)
		assert.Equal(t, planes[i], data, "plane %d", i)
	}
}

func TestWriteReadUint8(t *testing.T) {
	planes := [][]byte{seqPlane(6, 3)}
	f := writeFile(t, WriterOptions{Compress: true}, planes, 3, 2, 8, SampleFormatUint, []byte("x"))
	data, err := f.IFDs[0].Data()
	require.NoError(t, err)
	assert.Equal(t, planes[0], data)
}

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want bool
	}{
		{"classic LE", []byte{'I', 'I', 42, 0}, true},
		{"big LE", []byte{'I', 'I', 43, 0}, true},
		{"classic BE", []byte{'M', 'M', 0, 42}, true},
		{"png", []byte{0x89, 'P', 'N', 'G'}, false},
		{"wrong version", []byte{'I', 'I', 44, 0}, false},
		{"short", []byte{'I', 'I'}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sniff(tc.head))
		})
	}
}

func TestParseRejectsNonTIFF(t *testing.T) {
	data := []byte("certainly not a tiff stream")
	_, err := Parse(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNotTIFF)
}

// buildBigEndianClassic hand-assembles a minimal MM-order file: one IFD,
// one strip of two uint16 samples.
func buildBigEndianClassic() []byte {
	be := binary.BigEndian
	var buf bytes.Buffer
	buf.WriteString("MM")
	u16 := func(v uint16) {
		var b [2]byte
		be.PutUint16(b[:], v)
		buf.Write(b[:])
	}
	u32 := func(v uint32) {
		var b [4]byte
		be.PutUint32(b[:], v)
		buf.Write(b[:])
	}

	u16(VersionClassic)
	u32(12) // first IFD, after the 4-byte strip

	// Strip: samples 0x0102, 0x0304 stored big-endian.
	buf.Write([]byte{0x01, 0x02, 0x03, 0x04})

	entry := func(tag, typ uint16, count uint32, short bool, val uint32) {
		u16(tag)
		u16(typ)
		u32(count)
		if short {
			u16(uint16(val)) // left-justified in the value field
			u16(0)
		} else {
			u32(val)
		}
	}

	u16(5) // entry count
	entry(tagImageWidth, typeShort, 1, true, 2)
	entry(tagImageLength, typeShort, 1, true, 1)
	entry(tagBitsPerSample, typeShort, 1, true, 16)
	entry(tagStripOffsets, typeLong, 1, false, 8)
	entry(tagStripByteCounts, typeLong, 1, false, 4)
	u32(0) // end of chain
	return buf.Bytes()
}

func TestParseBigEndianSwapsSamples(t *testing.T) {
	raw := buildBigEndianClassic()
	f, err := Parse(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	assert.Equal(t, binary.BigEndian, f.Order)
	require.Len(t, f.IFDs, 1)
	ifd := f.IFDs[0]
	assert.Equal(t, 2, ifd.Width)
	assert.Equal(t, 1, ifd.Height)
	assert.Equal(t, 16, ifd.Bits)

	data, err := ifd.Data()
	require.NoError(t, err)
	// Samples come back little-endian: 0x0102 -> 02 01.
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, data)
	assert.Equal(t, uint16(0x0102), binary.LittleEndian.Uint16(data))
}

func TestDataRejectsTruncatedStrip(t *testing.T) {
	raw := buildBigEndianClassic()
	// Cut into the strip payload: directory parses, data read fails.
	f, err := Parse(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	f.size = 10
	_, err = f.IFDs[0].Data()
	assert.Error(t, err)
}
