// Package tiff implements the subset of TIFF 6.0 and BigTIFF needed for
// OME-TIFF stacks: little-endian writing of multi-IFD files with one strip
// per plane, and reading of classic and BigTIFF files with uncompressed or
// Deflate strips. Pyramid/tiled layouts are out of scope.
package tiff

import "errors"

// ErrNotTIFF is returned by Parse when the stream does not start with a
// TIFF byte-order mark and version magic.
var ErrNotTIFF = errors.New("not a TIFF file")

// ErrClassicOverflow is returned when writing would place data beyond the
// 4 GiB offset range of classic TIFF. Callers select BigTIFF up front from
// the projected size; this guards the projection being wrong.
var ErrClassicOverflow = errors.New("classic TIFF offset overflow, BigTIFF required")

// Version magic following the byte-order mark.
const (
	VersionClassic = 42
	VersionBig     = 43
)

// Baseline tag IDs used by this writer, plus SampleFormat.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagSoftware         = 305
	tagSampleFormat     = 339
)

// Entry field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeLong8    = 16 // BigTIFF only.
)

// Compression schemes this package reads and writes.
const (
	CompressionNone    = 1
	CompressionDeflate = 8 // zlib-wrapped Deflate streams per strip.
)

// PhotometricMinIsBlack is the only interpretation written: grayscale,
// zero is black.
const PhotometricMinIsBlack = 1

// Sample formats.
const (
	SampleFormatUint  = 1
	SampleFormatFloat = 3
)

// classicMaxOffset is the structural limit of 32-bit offsets.
const classicMaxOffset = int64(1)<<32 - 1
