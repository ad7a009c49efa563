package models

// DescriptorLength is the fixed dimensionality of a face descriptor.
const DescriptorLength = 128

// Descriptor is a fixed-length numeric embedding of a face.
type Descriptor [DescriptorLength]float32

// Portrait is the face crop and descriptor extracted from a document photo.
type Portrait struct {
	Crop       Frame      `json:"-"`
	Descriptor Descriptor `json:"descriptor"`
}
