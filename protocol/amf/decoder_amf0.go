package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// DecodeAmf0 reads one AMF0 value. Only the subset the publish command
// path can receive is understood, enough for _result/onStatus traffic and
// for decoding what the encoder produces.
func (d *Decoder) DecodeAmf0(r io.Reader) (any, error) {
	marker, err := readByte(r)
	if err != nil {
		return nil, err
	}

	switch marker {
	case amf0NumberMarker:
		v, err := d.decodeAmf0Number(r)
		return v, err
	case amf0BooleanMarker:
		v, err := d.decodeAmf0Boolean(r)
		return v, err
	case amf0StringMarker:
		v, err := d.decodeAmf0String(r)
		return v, err
	case amf0ObjectMarker:
		v, err := d.decodeAmf0Properties(r)
		if err != nil {
			return nil, err
		}
		return v, nil
	case amf0NullMarker, amf0UndefinedMarker, amf0UnsupportedMarker:
		return nil, nil
	case amf0EcmaArrayMarker:
		var count [4]byte
		if _, err := io.ReadFull(r, count[:]); err != nil {
			return nil, err
		}
		v, err := d.decodeAmf0Properties(r)
		if err != nil {
			return nil, err
		}
		return v, nil
	case amf0StrictArrayMarker:
		v, err := d.decodeAmf0StrictArray(r)
		if err != nil {
			return nil, err
		}
		return v, nil
	case amf0LongStringMarker:
		v, err := d.decodeAmf0LongString(r)
		return v, err
	case amf0ObjectEndMarker:
		return nil, fmt.Errorf("amf0 decode: unexpected object end")
	}

	return nil, fmt.Errorf("amf0 decode: unsupported marker 0x%02x", marker)
}

func (d *Decoder) decodeAmf0Number(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

func (d *Decoder) decodeAmf0Boolean(r io.Reader) (bool, error) {
	b, err := readByte(r)
	if err != nil {
		return false, err
	}
	return b != 0x00, nil
}

func (d *Decoder) decodeAmf0String(r io.Reader) (string, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	return readString(r, uint32(binary.BigEndian.Uint16(b[:])))
}

func (d *Decoder) decodeAmf0LongString(r io.Reader) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	return readString(r, binary.BigEndian.Uint32(b[:]))
}

// decodeAmf0Properties reads key/value pairs up to the object end marker.
// ECMA arrays share this layout after their count field.
func (d *Decoder) decodeAmf0Properties(r io.Reader) (Object, error) {
	obj := make(Object)
	for {
		key, err := d.decodeAmf0String(r)
		if err != nil {
			return nil, err
		}
		if key == "" {
			marker, err := readByte(r)
			if err != nil {
				return nil, err
			}
			if marker == amf0ObjectEndMarker {
				return obj, nil
			}
			return nil, fmt.Errorf("amf0 decode: empty key without object end (0x%02x)", marker)
		}
		val, err := d.DecodeAmf0(r)
		if err != nil {
			return nil, err
		}
		obj[key] = val
	}
}

func (d *Decoder) decodeAmf0StrictArray(r io.Reader) ([]any, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(b[:])
	arr := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := d.DecodeAmf0(r)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readString(r io.Reader, n uint32) (string, error) {
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
