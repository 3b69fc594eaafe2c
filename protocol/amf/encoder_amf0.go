package amf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
)

var (
	ErrBadVersion      = errors.New("encoding version not supported")
	ErrUnsupportedAmf3 = errors.New("amf3 not supported")
)

// EncodeAmf0 writes one AMF0 value. The value model is the fixed set the
// RTMP command path produces: numbers (any Go numeric, stored as double),
// booleans, strings, nil, Object/ECMAArray, []any and tagged structs.
// Anything else is an invariant violation of the caller.
func (e *Encoder) EncodeAmf0(w io.Writer, val any) (int64, error) {
	if val == nil {
		return e.encodeAmf0Null(w)
	}

	switch v := val.(type) {
	case float64:
		return e.encodeAmf0Number(w, v)
	case float32:
		return e.encodeAmf0Number(w, float64(v))
	case int:
		return e.encodeAmf0Number(w, float64(v))
	case int8:
		return e.encodeAmf0Number(w, float64(v))
	case int16:
		return e.encodeAmf0Number(w, float64(v))
	case int32:
		return e.encodeAmf0Number(w, float64(v))
	case int64:
		return e.encodeAmf0Number(w, float64(v))
	case uint:
		return e.encodeAmf0Number(w, float64(v))
	case uint8:
		return e.encodeAmf0Number(w, float64(v))
	case uint16:
		return e.encodeAmf0Number(w, float64(v))
	case uint32:
		return e.encodeAmf0Number(w, float64(v))
	case uint64:
		return e.encodeAmf0Number(w, float64(v))
	case bool:
		return e.encodeAmf0Boolean(w, v)
	case string:
		return e.encodeAmf0String(w, v, true)
	case Object:
		return e.encodeAmf0Object(w, v)
	case ECMAArray:
		return e.encodeAmf0EcmaArray(w, v)
	case []any:
		return e.encodeAmf0StrictArray(w, v)
	}

	if rv := reflect.ValueOf(val); rv.Kind() == reflect.Struct {
		return e.encodeAmf0Object(w, structToObject(rv))
	}

	return 0, fmt.Errorf("amf0 encode: unsupported type %T", val)
}

// structToObject flattens a struct into an Object using `amf` field tags,
// the shape the command response structs use.
func structToObject(rv reflect.Value) Object {
	obj := make(Object)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("amf")
		if name == "" {
			name = f.Name
		}
		obj[name] = rv.Field(i).Interface()
	}
	return obj
}

func (e *Encoder) encodeAmf0Number(w io.Writer, v float64) (int64, error) {
	if err := writeMarker(w, amf0NumberMarker); err != nil {
		return 0, err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	if _, err := w.Write(b[:]); err != nil {
		return 1, err
	}
	return 9, nil
}

func (e *Encoder) encodeAmf0Boolean(w io.Writer, v bool) (int64, error) {
	if err := writeMarker(w, amf0BooleanMarker); err != nil {
		return 0, err
	}
	b := []byte{0x00}
	if v {
		b[0] = 0x01
	}
	if _, err := w.Write(b); err != nil {
		return 1, err
	}
	return 2, nil
}

func (e *Encoder) encodeAmf0String(w io.Writer, v string, encodeMarker bool) (int64, error) {
	var n int64
	long := len(v) > 0xffff
	if encodeMarker {
		m := byte(amf0StringMarker)
		if long {
			m = amf0LongStringMarker
		}
		if err := writeMarker(w, m); err != nil {
			return n, err
		}
		n++
	}
	if long {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(v)))
		if _, err := w.Write(b[:]); err != nil {
			return n, err
		}
		n += 4
	} else {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(v)))
		if _, err := w.Write(b[:]); err != nil {
			return n, err
		}
		n += 2
	}
	m, err := io.WriteString(w, v)
	n += int64(m)
	return n, err
}

func (e *Encoder) encodeAmf0Null(w io.Writer) (int64, error) {
	if err := writeMarker(w, amf0NullMarker); err != nil {
		return 0, err
	}
	return 1, nil
}

func (e *Encoder) encodeAmf0Object(w io.Writer, obj Object) (int64, error) {
	if err := writeMarker(w, amf0ObjectMarker); err != nil {
		return 0, err
	}
	n := int64(1)
	m, err := e.encodeAmf0Properties(w, Object(obj))
	n += m
	return n, err
}

func (e *Encoder) encodeAmf0EcmaArray(w io.Writer, arr ECMAArray) (int64, error) {
	if err := writeMarker(w, amf0EcmaArrayMarker); err != nil {
		return 0, err
	}
	n := int64(1)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(arr)))
	if _, err := w.Write(b[:]); err != nil {
		return n, err
	}
	n += 4
	m, err := e.encodeAmf0Properties(w, Object(arr))
	n += m
	return n, err
}

func (e *Encoder) encodeAmf0StrictArray(w io.Writer, arr []any) (int64, error) {
	if err := writeMarker(w, amf0StrictArrayMarker); err != nil {
		return 0, err
	}
	n := int64(1)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(arr)))
	if _, err := w.Write(b[:]); err != nil {
		return n, err
	}
	n += 4
	for _, v := range arr {
		m, err := e.EncodeAmf0(w, v)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (e *Encoder) encodeAmf0Properties(w io.Writer, obj Object) (int64, error) {
	var n int64
	for key, val := range obj {
		m, err := e.encodeAmf0String(w, key, false)
		n += m
		if err != nil {
			return n, err
		}
		m, err = e.EncodeAmf0(w, val)
		n += m
		if err != nil {
			return n, err
		}
	}
	// empty key + object end marker
	if _, err := w.Write([]byte{0x00, 0x00, amf0ObjectEndMarker}); err != nil {
		return n, err
	}
	return n + 3, nil
}

func writeMarker(w io.Writer, m byte) error {
	_, err := w.Write([]byte{m})
	return err
}
