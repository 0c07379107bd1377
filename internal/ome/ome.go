// Package ome models the OME-XML (2016-06 schema) metadata block that
// OME-TIFF files embed in the ImageDescription tag of their first IFD.
// Only the subset this tool reads and writes is modeled: image extent,
// pixel type, channel names, physical pixel sizes, and the per-plane
// TiffData index.
package ome

import (
	"encoding/xml"
	"fmt"

	"github.com/backmassage/scopemux/internal/pixel"
)

// Namespace is the OME 2016-06 schema namespace.
const Namespace = "http://www.openmicroscopy.org/Schemas/OME/2016-06"

// DimensionOrder is the only plane order this tool writes: planes stored
// channel-outer, Z innermost, single timepoint.
const DimensionOrder = "XYZCT"

// OME is the document root.
type OME struct {
	XMLName xml.Name `xml:"OME"`
	Xmlns   string   `xml:"xmlns,attr"`
	UUID    string   `xml:"UUID,attr,omitempty"`
	Creator string   `xml:"Creator,attr,omitempty"`
	Images  []Image  `xml:"Image"`
}

// Image describes one acquisition.
type Image struct {
	ID     string `xml:"ID,attr"`
	Name   string `xml:"Name,attr,omitempty"`
	Pixels Pixels `xml:"Pixels"`
}

// Pixels describes the pixel grid, its type, and the channel list.
type Pixels struct {
	ID                string  `xml:"ID,attr"`
	DimensionOrder    string  `xml:"DimensionOrder,attr"`
	Type              string  `xml:"Type,attr"`
	SizeX             int     `xml:"SizeX,attr"`
	SizeY             int     `xml:"SizeY,attr"`
	SizeZ             int     `xml:"SizeZ,attr"`
	SizeC             int     `xml:"SizeC,attr"`
	SizeT             int     `xml:"SizeT,attr"`
	SignificantBits   int     `xml:"SignificantBits,attr,omitempty"`
	PhysicalSizeX     float64 `xml:"PhysicalSizeX,attr,omitempty"`
	PhysicalSizeXUnit string  `xml:"PhysicalSizeXUnit,attr,omitempty"`
	PhysicalSizeY     float64 `xml:"PhysicalSizeY,attr,omitempty"`
	PhysicalSizeYUnit string  `xml:"PhysicalSizeYUnit,attr,omitempty"`
	PhysicalSizeZ     float64 `xml:"PhysicalSizeZ,attr,omitempty"`
	PhysicalSizeZUnit string  `xml:"PhysicalSizeZUnit,attr,omitempty"`

	Channels []Channel  `xml:"Channel"`
	TiffData []TiffData `xml:"TiffData"`
}

// Channel carries the experiment-meaningful channel label.
type Channel struct {
	ID              string `xml:"ID,attr"`
	Name            string `xml:"Name,attr,omitempty"`
	SamplesPerPixel int    `xml:"SamplesPerPixel,attr,omitempty"`
}

// TiffData maps one plane of the pixel grid to one IFD of the file.
type TiffData struct {
	IFD        int `xml:"IFD,attr"`
	FirstZ     int `xml:"FirstZ,attr"`
	FirstC     int `xml:"FirstC,attr"`
	FirstT     int `xml:"FirstT,attr"`
	PlaneCount int `xml:"PlaneCount,attr"`
}

// PixelType maps a dtype to its OME Pixels Type attribute value. OME names
// 32-bit IEEE floats "float".
func PixelType(d pixel.DType) (string, error) {
	switch d {
	case pixel.DTypeUint8:
		return "uint8", nil
	case pixel.DTypeUint16:
		return "uint16", nil
	case pixel.DTypeFloat32:
		return "float", nil
	}
	return "", fmt.Errorf("%w: %q", pixel.ErrUnsupportedDType, d)
}

// DTypeOf maps an OME Pixels Type attribute back to a dtype.
func DTypeOf(pixelType string) (pixel.DType, error) {
	switch pixelType {
	case "uint8":
		return pixel.DTypeUint8, nil
	case "uint16":
		return pixel.DTypeUint16, nil
	case "float", "float32":
		return pixel.DTypeFloat32, nil
	}
	return "", fmt.Errorf("%w: OME pixel type %q", pixel.ErrUnsupportedDType, pixelType)
}
