package flv

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/utils/pio"
)

func appendTag(b []byte, typeID byte, timestamp uint32, data []byte) []byte {
	hdr := make([]byte, headerLen)
	hdr[0] = typeID
	pio.PutU24BE(hdr[1:4], uint32(len(data)))
	pio.PutU24BE(hdr[4:7], timestamp&0xffffff)
	hdr[7] = byte(timestamp >> 24)
	b = append(b, hdr...)
	b = append(b, data...)
	pre := make([]byte, 4)
	pio.PutU32BE(pre, uint32(len(data)+headerLen))
	return append(b, pre...)
}

func TestReader(t *testing.T) {
	var file []byte
	file = append(file, FlvHeader...)
	file = append(file, FlvFirstPreTagSize...)
	file = appendTag(file, av.TAG_VIDEO, 0, []byte{0x17, 0x00, 0, 0, 0, 1, 2, 3})
	file = appendTag(file, av.TAG_AUDIO, 23, []byte{0xaf, 0x01, 4, 5})
	file = appendTag(file, av.TAG_SCRIPTDATAAMF0, 0, []byte{0x02, 0x00, 0x01, 'x'})

	r := NewReader(bytes.NewReader(file))

	p, err := r.Read()
	require.NoError(t, err)
	require.True(t, p.IsVideo)
	require.Equal(t, uint32(0), p.TimeStamp)
	require.Equal(t, []byte{0x17, 0x00, 0, 0, 0, 1, 2, 3}, p.Data)
	vh, ok := p.Header.(av.VideoPacketHeader)
	require.True(t, ok)
	require.Equal(t, uint8(av.CODEC_AVC), vh.CodecID())
	require.True(t, vh.IsSeq())

	p, err = r.Read()
	require.NoError(t, err)
	require.True(t, p.IsAudio)
	require.Equal(t, uint32(23), p.TimeStamp)

	p, err = r.Read()
	require.NoError(t, err)
	require.True(t, p.IsMetadata)

	_, err = r.Read()
	require.Equal(t, io.EOF, err)
}

func TestReaderExtendedTimestamp(t *testing.T) {
	var file []byte
	file = append(file, FlvHeader...)
	file = append(file, FlvFirstPreTagSize...)
	file = appendTag(file, av.TAG_AUDIO, 0x1234567, []byte{0xaf, 0x01, 0})

	r := NewReader(bytes.NewReader(file))
	p, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, uint32(0x1234567), p.TimeStamp)
}

func TestReaderRejectsBadHeader(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("not an flv file at all")))
	_, err := r.Read()
	require.ErrorIs(t, err, ErrHeader)
}

func TestReaderRejectsBadPreTagSize(t *testing.T) {
	var file []byte
	file = append(file, FlvHeader...)
	file = append(file, FlvFirstPreTagSize...)
	file = appendTag(file, av.TAG_AUDIO, 0, []byte{0xaf, 0x01})
	// corrupt the previous-tag-size field
	file[len(file)-1] ^= 0xff

	r := NewReader(bytes.NewReader(file))
	_, err := r.Read()
	require.ErrorIs(t, err, ErrPreDataLen)
}
