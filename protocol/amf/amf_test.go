package amf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"testing"
)

func Dump(label string, val any) error {
	json, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return fmt.Errorf("error dumping %s: %w", label, err)
	}

	fmt.Printf("Dumping %s:\n%s\n", label, json)
	return nil
}

func EncodeAndDecode(val any, ver Version) (result any, err error) {
	enc := new(Encoder)
	dec := new(Decoder)

	buf := new(bytes.Buffer)

	_, err = enc.Encode(buf, val, ver)
	if err != nil {
		return nil, fmt.Errorf("error in encode: %w", err)
	}

	result, err = dec.Decode(buf, ver)
	if err != nil {
		return nil, fmt.Errorf("error in decode: %w", err)
	}

	return
}

func Compare(val any, ver Version, name string, t *testing.T) {
	result, err := EncodeAndDecode(val, ver)
	if err != nil {
		t.Errorf("%s: %s", name, err)
	}

	if !reflect.DeepEqual(val, result) {
		val_v := reflect.ValueOf(val)
		result_v := reflect.ValueOf(result)

		t.Errorf(
			"%s: comparison failed between %+v (%s) and %+v (%s)",
			name,
			val,
			val_v.Type(),
			result,
			result_v.Type(),
		)

		Dump("expected", val)
		Dump("got", result)
	}
}

func TestAmf0Number(t *testing.T) {
	Compare(float64(3.14159), 0, "amf0 number float", t)
	Compare(float64(124567890), 0, "amf0 number high", t)
	Compare(float64(-34.2), 0, "amf0 number negative", t)
}

func TestAmf0String(t *testing.T) {
	Compare("a pup!", 0, "amf0 string simple", t)
	Compare("日本語", 0, "amf0 string utf8", t)
}

func TestAmf0Boolean(t *testing.T) {
	Compare(true, 0, "amf0 boolean true", t)
	Compare(false, 0, "amf0 boolean false", t)
}

func TestAmf0Null(t *testing.T) {
	Compare(nil, 0, "amf0 boolean nil", t)
}

func TestAmf0Object(t *testing.T) {
	obj := make(Object)
	obj["dog"] = "alfie"
	obj["coffee"] = true
	obj["drugs"] = false
	obj["pi"] = 3.14159

	res, err := EncodeAndDecode(obj, 0)
	if err != nil {
		t.Errorf("amf0 object: %s", err)
	}

	result, ok := res.(Object)
	if ok != true {
		t.Errorf("amf0 object conversion failed")
	}

	if result["dog"] != "alfie" {
		t.Errorf("amf0 object string: comparison failed")
	}

	if result["coffee"] != true {
		t.Errorf("amf0 object true: comparison failed")
	}

	if result["drugs"] != false {
		t.Errorf("amf0 object false: comparison failed")
	}

	if result["pi"] != 3.14159 {
		t.Errorf("amf0 object number: comparison failed")
	}
}

func TestAmf0MetaDataObject(t *testing.T) {
	obj := make(Object)
	obj["width"] = float64(1280)
	obj["height"] = float64(720)
	obj["videocodecid"] = "avc1"

	res, err := EncodeAndDecode(obj, AMF0)
	if err != nil {
		t.Fatalf("amf0 metadata object: %s", err)
	}

	result, ok := res.(Object)
	if !ok {
		t.Fatalf("amf0 metadata object conversion failed")
	}
	if !reflect.DeepEqual(obj, result) {
		t.Errorf("amf0 metadata object: got %+v want %+v", result, obj)
	}
}

func TestAmf0EcmaArray(t *testing.T) {
	arr := ECMAArray{"k": "v", "n": float64(7)}

	res, err := EncodeAndDecode(arr, AMF0)
	if err != nil {
		t.Fatalf("amf0 ecma array: %s", err)
	}
	result, ok := res.(Object)
	if !ok {
		t.Fatalf("amf0 ecma array conversion failed")
	}
	if result["k"] != "v" || result["n"] != float64(7) {
		t.Errorf("amf0 ecma array: got %+v", result)
	}
}

func TestAmf0StrictArray(t *testing.T) {
	arr := []any{float64(1), "two", true}
	Compare(arr, 0, "amf0 strict array", t)
}

func TestAmf0Struct(t *testing.T) {
	type resp struct {
		FMSVer       string `amf:"fmsVer"`
		Capabilities int    `amf:"capabilities"`
	}

	res, err := EncodeAndDecode(resp{FMSVer: "FMS/3,0,1,123", Capabilities: 31}, AMF0)
	if err != nil {
		t.Fatalf("amf0 struct: %s", err)
	}
	result, ok := res.(Object)
	if !ok {
		t.Fatalf("amf0 struct conversion failed")
	}
	if result["fmsVer"] != "FMS/3,0,1,123" || result["capabilities"] != float64(31) {
		t.Errorf("amf0 struct: got %+v", result)
	}
}

func TestAmf0DecodeBatch(t *testing.T) {
	buf := new(bytes.Buffer)
	enc := new(Encoder)
	if _, err := enc.EncodeBatch(buf, AMF0, "onStatus", float64(0), nil, Object{"code": "NetStream.Publish.Start"}); err != nil {
		t.Fatalf("encode batch: %s", err)
	}

	dec := new(Decoder)
	vs, err := dec.DecodeBatch(bytes.NewReader(buf.Bytes()), AMF0)
	if err != nil && err != io.EOF {
		t.Fatalf("decode batch: %s", err)
	}
	if len(vs) != 4 {
		t.Fatalf("decode batch: got %d values", len(vs))
	}
	if vs[0] != "onStatus" || vs[1] != float64(0) || vs[2] != nil {
		t.Errorf("decode batch: got %+v", vs)
	}
	obj, ok := vs[3].(Object)
	if !ok || obj["code"] != "NetStream.Publish.Start" {
		t.Errorf("decode batch object: got %+v", vs[3])
	}
}

func TestMetaDataReform(t *testing.T) {
	buf := new(bytes.Buffer)
	enc := new(Encoder)
	if _, err := enc.EncodeBatch(buf, AMF0, "onMetaData", Object{"width": float64(640)}); err != nil {
		t.Fatalf("encode: %s", err)
	}
	plain := buf.Bytes()

	added, err := MetaDataReform(plain, ADD)
	if err != nil {
		t.Fatalf("reform add: %s", err)
	}
	if bytes.Equal(added, plain) {
		t.Fatalf("reform add: did not prepend")
	}

	// adding twice must not stack
	again, err := MetaDataReform(added, ADD)
	if err != nil {
		t.Fatalf("reform add twice: %s", err)
	}
	if !bytes.Equal(again, added) {
		t.Errorf("reform add twice: changed data")
	}

	stripped, err := MetaDataReform(added, DEL)
	if err != nil {
		t.Fatalf("reform del: %s", err)
	}
	if !bytes.Equal(stripped, plain) {
		t.Errorf("reform del: did not restore original")
	}
}
