package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/protocol/amf"
)

func TestProbeAudioAAC(t *testing.T) {
	// aac sequence header: descriptor, packet type, AudioSpecificConfig
	desc := byte(av.SOUND_AAC<<4 | av.SOUND_44Khz<<2 | av.SOUND_16BIT<<1 | av.SOUND_STEREO)
	info, err := probeAudio([]byte{desc, av.AAC_SEQHDR, 0x12, 0x10})
	require.NoError(t, err)
	require.Equal(t, av.AudioCodecAAC, info.Codec)
	require.Equal(t, uint32(44100), info.SampleRate)
	require.Equal(t, uint8(16), info.BitsPerSample)
	require.Equal(t, uint8(2), info.Channels)
	require.Equal(t, []byte{0x12, 0x10}, info.SpecInfo)
}

func TestProbeAudioMP3(t *testing.T) {
	desc := byte(av.SOUND_MP3<<4 | av.SOUND_22Khz<<2 | av.SOUND_16BIT<<1 | av.SOUND_MONO)
	info, err := probeAudio([]byte{desc, 0xff, 0xfb})
	require.NoError(t, err)
	require.Equal(t, av.AudioCodecMP3, info.Codec)
	require.Equal(t, uint32(22050), info.SampleRate)
	require.Equal(t, uint8(1), info.Channels)
	require.Empty(t, info.SpecInfo)
}

func TestProbeVideoAVC(t *testing.T) {
	record := []byte{0x01, 0x42, 0xc0, 0x1f, 0xff, 0xe1}
	data := append([]byte{av.FRAME_KEY<<4 | av.CODEC_AVC, av.AVC_SEQHDR, 0, 0, 0}, record...)
	info, err := probeVideo(data)
	require.NoError(t, err)
	require.Equal(t, av.VideoCodecH264, info.Codec)
	require.Equal(t, record, info.SpecInfo)
}

func TestProbeVideoWithoutSeqHeaderFails(t *testing.T) {
	data := []byte{av.FRAME_KEY<<4 | av.CODEC_AVC, av.AVC_NALU, 0, 0, 0, 0x65}
	_, err := probeVideo(data)
	require.Error(t, err)
}

func TestDecodeMetaData(t *testing.T) {
	obj := amf.Object{"width": float64(1920), "height": float64(1080)}
	buf := bytes.NewBuffer(nil)
	enc := &amf.Encoder{}
	_, err := enc.EncodeBatch(buf, amf.AMF0, "onMetaData", obj)
	require.NoError(t, err)

	got := decodeMetaData(buf.Bytes())
	require.Equal(t, float64(1920), got["width"])
	require.Equal(t, float64(1080), got["height"])
}
