package ome

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/backmassage/scopemux/internal/pixel"
)

const micrometer = "µm"

// Build assembles the OME document for a consolidated image: one Image
// element, one Channel per plane in declared order, and one TiffData entry
// per stored plane with IFD index c*SizeZ+z (channel-outer, Z-inner).
func Build(img *pixel.Image, fileUUID uuid.UUID) (*OME, error) {
	pixelType, err := PixelType(img.DType)
	if err != nil {
		return nil, err
	}

	px := Pixels{
		ID:              "Pixels:0",
		DimensionOrder:  DimensionOrder,
		Type:            pixelType,
		SizeX:           img.SizeX,
		SizeY:           img.SizeY,
		SizeZ:           img.SizeZ,
		SizeC:           img.Channels(),
		SizeT:           1,
		SignificantBits: img.DType.BytesPerSample() * 8,
	}
	if img.PhysicalSizeX > 0 {
		px.PhysicalSizeX = img.PhysicalSizeX
		px.PhysicalSizeXUnit = micrometer
	}
	if img.PhysicalSizeY > 0 {
		px.PhysicalSizeY = img.PhysicalSizeY
		px.PhysicalSizeYUnit = micrometer
	}
	if img.PhysicalSizeZ > 0 {
		px.PhysicalSizeZ = img.PhysicalSizeZ
		px.PhysicalSizeZUnit = micrometer
	}

	for c, p := range img.Planes {
		px.Channels = append(px.Channels, Channel{
			ID:              fmt.Sprintf("Channel:0:%d", c),
			Name:            p.Label,
			SamplesPerPixel: 1,
		})
		for z := 0; z < img.SizeZ; z++ {
			px.TiffData = append(px.TiffData, TiffData{
				IFD:        c*img.SizeZ + z,
				FirstZ:     z,
				FirstC:     c,
				FirstT:     0,
				PlaneCount: 1,
			})
		}
	}

	return &OME{
		Xmlns:   Namespace,
		UUID:    "urn:uuid:" + fileUUID.String(),
		Creator: "scopemux",
		Images: []Image{{
			ID:     "Image:0",
			Name:   img.Name,
			Pixels: px,
		}},
	}, nil
}

// Marshal renders the document with the XML declaration, ready for the
// ImageDescription tag or the standalone metadata sidecar.
func (o *OME) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(o, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Parse decodes an OME document from an ImageDescription payload. Content
// before the <OME element (some writers prepend comments) is tolerated.
func Parse(data []byte) (*OME, error) {
	var o OME
	if err := xml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("OME-XML: %w", err)
	}
	if len(o.Images) == 0 {
		return nil, fmt.Errorf("OME-XML: no Image element")
	}
	return &o, nil
}

// ChannelNames returns the channel names of the first image, with empty
// slots for unnamed channels.
func (o *OME) ChannelNames() []string {
	if len(o.Images) == 0 {
		return nil
	}
	px := o.Images[0].Pixels
	names := make([]string, len(px.Channels))
	for i, ch := range px.Channels {
		names[i] = ch.Name
	}
	// Some writers omit Channel elements entirely; size from SizeC then.
	if len(names) == 0 && px.SizeC > 0 {
		names = make([]string, px.SizeC)
	}
	return names
}

// LooksLikeOME reports whether an ImageDescription payload is an OME-XML
// document, without a full parse.
func LooksLikeOME(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(string(head), "<OME")
}
