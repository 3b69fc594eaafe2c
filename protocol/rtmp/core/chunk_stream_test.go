package core

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zijiren233/livepush/av"
)

func writeOne(t *testing.T, buf *bytes.Buffer, st *csState, c *ChunkStream, chunkSize uint32) {
	t.Helper()
	w := NewReadWriter(buf, 1024)
	require.NoError(t, c.writeChunk(w, chunkSize, st))
	require.NoError(t, w.Flush())
}

func TestWriteChunkHeaderCompression(t *testing.T) {
	st := &csState{}
	payload := bytes.Repeat([]byte{0xaa}, 10)

	msg := func(ts, length uint32) *ChunkStream {
		return &ChunkStream{
			TypeID:    av.TAG_VIDEO,
			Timestamp: ts,
			StreamID:  1,
			Length:    length,
			Data:      payload[:length],
		}
	}

	var buf bytes.Buffer
	writeOne(t, &buf, st, msg(0, 10), 128)
	b := buf.Bytes()
	require.Equal(t, uint8(0), b[0]>>6, "first message must carry a full header")
	require.Equal(t, uint8(6), b[0]&0x3f, "video goes out on csid 6")
	// basic(1) + message header(11) + payload(10)
	require.Len(t, b, 22)

	// same length and type, only the timestamp advanced
	buf.Reset()
	writeOne(t, &buf, st, msg(40, 10), 128)
	b = buf.Bytes()
	require.Equal(t, uint8(2), b[0]>>6)
	require.Len(t, b, 1+3+10)

	// length changed, stream id did not
	buf.Reset()
	writeOne(t, &buf, st, msg(80, 5), 128)
	b = buf.Bytes()
	require.Equal(t, uint8(1), b[0]>>6)
	require.Len(t, b, 1+7+5)

	// timestamp went backwards, back to a full header
	buf.Reset()
	writeOne(t, &buf, st, msg(40, 5), 128)
	b = buf.Bytes()
	require.Equal(t, uint8(0), b[0]>>6)
}

func TestWriteChunkStreamIDChangeForcesFullHeader(t *testing.T) {
	st := &csState{}
	c := &ChunkStream{TypeID: av.TAG_AUDIO, Timestamp: 0, StreamID: 1, Length: 4, Data: []byte{1, 2, 3, 4}}

	var buf bytes.Buffer
	writeOne(t, &buf, st, c, 128)
	buf.Reset()

	c2 := &ChunkStream{TypeID: av.TAG_AUDIO, Timestamp: 40, StreamID: 2, Length: 4, Data: []byte{1, 2, 3, 4}}
	writeOne(t, &buf, st, c2, 128)
	require.Equal(t, uint8(0), buf.Bytes()[0]>>6)
}

func TestWriteChunkSplitsLargePayload(t *testing.T) {
	const chunkSize = 128
	payload := bytes.Repeat([]byte{0x5a}, 1000)
	c := &ChunkStream{
		TypeID:    av.TAG_VIDEO,
		Timestamp: 0,
		StreamID:  1,
		Length:    uint32(len(payload)),
		Data:      payload,
	}

	var buf bytes.Buffer
	writeOne(t, &buf, &csState{}, c, chunkSize)
	b := buf.Bytes()

	// ceil(1000/128) = 8 chunks: one full header and 7 continuations
	wantLen := 1 + 11 + 1000 + 7
	require.Len(t, b, wantLen)

	require.Equal(t, byte(0x06), b[0])
	off := 1 + 11 + chunkSize
	for i := 1; i < 8; i++ {
		require.Equal(t, byte(0xc6), b[off], "chunk %d must be a format 3 continuation", i)
		rest := len(payload) - i*chunkSize
		if rest > chunkSize {
			rest = chunkSize
		}
		off += 1 + rest
	}
}

func TestChunkRoundTrip(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	wc := NewConn(cli, 4096)
	rc := NewConn(srv, 4096)

	msgs := []*ChunkStream{
		{TypeID: av.TAG_VIDEO, Timestamp: 0, StreamID: 1, Length: 300, Data: bytes.Repeat([]byte{1}, 300)},
		{TypeID: av.TAG_VIDEO, Timestamp: 40, StreamID: 1, Length: 300, Data: bytes.Repeat([]byte{2}, 300)},
		{TypeID: av.TAG_AUDIO, Timestamp: 23, StreamID: 1, Length: 5, Data: []byte{1, 2, 3, 4, 5}},
		{TypeID: av.TAG_VIDEO, Timestamp: 0x1000000, StreamID: 1, Length: 10, Data: bytes.Repeat([]byte{3}, 10)},
	}

	errc := make(chan error, 1)
	go func() {
		for _, m := range msgs {
			c := *m
			c.Data = append([]byte(nil), m.Data...)
			if err := wc.Write(&c); err != nil {
				errc <- err
				return
			}
		}
		errc <- wc.Flush()
	}()

	for _, want := range msgs {
		rc.SetDeadline(time.Now().Add(time.Second))
		got, err := rc.Read()
		require.NoError(t, err)
		require.Equal(t, want.TypeID, got.TypeID)
		require.Equal(t, want.Timestamp, got.Timestamp)
		require.Equal(t, want.Length, got.Length)
		require.Equal(t, want.StreamID, got.StreamID)
		require.Equal(t, want.Data, got.Data)
	}
	require.NoError(t, <-errc)
}

func TestSetChunkSizeAppliesToLaterMessages(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	wc := NewConn(cli, 4096)
	rc := NewConn(srv, 4096)

	payload := bytes.Repeat([]byte{7}, 600)
	errc := make(chan error, 1)
	go func() {
		if err := wc.Write(wc.NewSetChunkSize(1024)); err != nil {
			errc <- err
			return
		}
		c := &ChunkStream{TypeID: av.TAG_VIDEO, Timestamp: 0, StreamID: 1, Length: uint32(len(payload)), Data: payload}
		if err := wc.Write(c); err != nil {
			errc <- err
			return
		}
		errc <- wc.Flush()
	}()

	rc.SetDeadline(time.Now().Add(time.Second))
	ctrl, err := rc.Read()
	require.NoError(t, err)
	require.Equal(t, uint32(idSetChunkSize), ctrl.TypeID)

	// the media message went out in one 1024-byte chunk; the reader only
	// reassembles it if it honored the new size
	got, err := rc.Read()
	require.NoError(t, err)
	require.Equal(t, payload, got.Data)
	require.NoError(t, <-errc)
	require.Equal(t, uint32(1024), wc.ChunkSize())
}
