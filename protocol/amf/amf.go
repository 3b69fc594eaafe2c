package amf

import (
	"io"
)

type Version uint8

const (
	AMF0 Version = 0x00
	AMF3 Version = 0x03
)

// AMF0 type markers
const (
	amf0NumberMarker      = 0x00
	amf0BooleanMarker     = 0x01
	amf0StringMarker      = 0x02
	amf0ObjectMarker      = 0x03
	amf0MovieClipMarker   = 0x04
	amf0NullMarker        = 0x05
	amf0UndefinedMarker   = 0x06
	amf0ReferenceMarker   = 0x07
	amf0EcmaArrayMarker   = 0x08
	amf0ObjectEndMarker   = 0x09
	amf0StrictArrayMarker = 0x0a
	amf0DateMarker        = 0x0b
	amf0LongStringMarker  = 0x0c
	amf0UnsupportedMarker = 0x0d
)

// Object is the AMF0 anonymous object / ECMA array value: string keys
// mapping to encodable values.
type Object map[string]any

type ECMAArray Object

type Encoder struct{}

type Decoder struct{}

// DecodeBatch decodes values until the reader is exhausted. A clean end of
// input is reported as io.EOF alongside the values read so far.
func (d *Decoder) DecodeBatch(r io.Reader, ver Version) (ret []any, err error) {
	var v any
	for {
		v, err = d.Decode(r, ver)
		if err != nil {
			break
		}
		ret = append(ret, v)
	}
	return ret, err
}

func (d *Decoder) Decode(r io.Reader, ver Version) (any, error) {
	switch ver {
	case AMF0:
		return d.DecodeAmf0(r)
	case AMF3:
		return nil, ErrUnsupportedAmf3
	}
	return nil, ErrBadVersion
}

// EncodeBatch encodes values back to back, the framing used by RTMP
// command message bodies.
func (e *Encoder) EncodeBatch(w io.Writer, ver Version, vals ...any) (int64, error) {
	var total int64
	for _, v := range vals {
		n, err := e.Encode(w, v, ver)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Encoder) Encode(w io.Writer, val any, ver Version) (int64, error) {
	switch ver {
	case AMF0:
		return e.EncodeAmf0(w, val)
	case AMF3:
		return 0, ErrUnsupportedAmf3
	}
	return 0, ErrBadVersion
}
