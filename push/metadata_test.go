package push

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/protocol/amf"
)

func TestMetaDataBody(t *testing.T) {
	body, err := metaDataBody(aacInfo(), h264Info())
	require.NoError(t, err)

	d := &amf.Decoder{}
	vs, err := d.DecodeBatch(bytes.NewReader(body), amf.AMF0)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, vs, 2)
	require.Equal(t, "onMetaData", vs[0])

	obj, ok := vs[1].(amf.Object)
	require.True(t, ok)
	require.Equal(t, float64(1280), obj["width"])
	require.Equal(t, float64(720), obj["height"])
	require.Equal(t, float64(30), obj["framerate"])
	require.Equal(t, float64(av.CODEC_AVC), obj["videocodecid"])
	require.Equal(t, float64(av.SOUND_AAC), obj["audiocodecid"])
	require.Equal(t, float64(44100), obj["audiosamplerate"])
	require.Equal(t, float64(2), obj["audiochannels"])
	require.Equal(t, true, obj["stereo"])
}

func TestMetaDataBodySkipsUnsetTracks(t *testing.T) {
	body, err := metaDataBody(aacInfo(), &av.VideoInfo{})
	require.NoError(t, err)

	d := &amf.Decoder{}
	vs, err := d.DecodeBatch(bytes.NewReader(body), amf.AMF0)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, vs, 2)
	obj := vs[1].(amf.Object)
	require.NotContains(t, obj, "width")
	require.NotContains(t, obj, "videocodecid")
	require.Contains(t, obj, "audiocodecid")
}
