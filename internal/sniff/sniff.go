package sniff

import (
	"encoding/hex"
	"strings"
)

type Type string

const (
	TypePNG     Type = "image/png"
	TypeGIF     Type = "image/gif"
	TypeJPEG    Type = "image/jpeg"
	TypeUnknown Type = "unknown"
)

const headerSize = 4

var signatures = map[string]Type{
	"89504e47": TypePNG,
	"47494638": TypeGIF,
	"ffd8ffe0": TypeJPEG,
	"ffd8ffe1": TypeJPEG,
	"ffd8ffe2": TypeJPEG,
}

func (t Type) IsImage() bool {
	return strings.HasPrefix(string(t), "image/")
}

func (t Type) String() string {
	return string(t)
}

// Header returns the lowercase hex form of the first four bytes of data.
func Header(data []byte) string {
	if len(data) > headerSize {
		data = data[:headerSize]
	}
	return hex.EncodeToString(data)
}

// Classify matches the 4-byte prefix of data against the known image
// signatures. Anything shorter than four bytes or not in the table is unknown.
func Classify(data []byte) Type {
	if len(data) < headerSize {
		return TypeUnknown
	}
	return ClassifyHeader(Header(data))
}

func ClassifyHeader(header string) Type {
	if t, ok := signatures[strings.ToLower(header)]; ok {
		return t
	}
	return TypeUnknown
}
