package amf

import (
	"bytes"
	"fmt"
)

const (
	ADD = 0x1
	DEL = 0x3
)

const SetDataFrame string = "@setDataFrame"

var setFrameFrame []byte

func init() {
	b := bytes.NewBuffer(nil)
	encoder := &Encoder{}
	if _, err := encoder.EncodeAmf0(b, SetDataFrame); err != nil {
		panic(err)
	}
	setFrameFrame = b.Bytes()
}

// MetaDataReform adds or strips the leading @setDataFrame command on a
// script tag body. Pushers must send it ahead of onMetaData, recordings
// must not carry it.
func MetaDataReform(p []byte, flag uint8) ([]byte, error) {
	r := bytes.NewReader(p)
	decoder := &Decoder{}
	switch flag {
	case ADD:
		v, err := decoder.DecodeAmf0(r)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok && s == SetDataFrame {
			return p, nil
		}
		b := make([]byte, 0, len(setFrameFrame)+len(p))
		b = append(b, setFrameFrame...)
		b = append(b, p...)
		return b, nil
	case DEL:
		v, err := decoder.DecodeAmf0(r)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok && s == SetDataFrame {
			return p[len(setFrameFrame):], nil
		}
		return p, nil
	default:
		return nil, fmt.Errorf("metadata reform: invalid flag %d", flag)
	}
}
