package core

import (
	"fmt"

	"github.com/zijiren233/livepush/av"
)

// ChunkStream is one RTMP message plus the chunk framing state used while
// reading it back from the wire.
type ChunkStream struct {
	Format    uint32
	CSID      uint32
	Timestamp uint32
	Length    uint32
	TypeID    uint32
	StreamID  uint32
	timeDelta uint32
	exted     bool
	index     uint32
	remain    uint32
	got       bool
	tmpFormat uint32
	Data      []byte
}

func (chunkStream *ChunkStream) full() bool {
	return chunkStream.got
}

func (chunkStream *ChunkStream) init() {
	chunkStream.got = false
	chunkStream.index = 0
	chunkStream.remain = chunkStream.Length
	chunkStream.Data = make([]byte, chunkStream.Length)
}

// csState remembers the previous message written on a chunk stream id so
// the next message header can be compressed per the RTMP rules.
type csState struct {
	timestamp uint32
	length    uint32
	typeID    uint32
	streamID  uint32
	hasPrev   bool
}

// observe picks the minimal header format for c and returns it together
// with the value the timestamp field carries (absolute for format 0, a
// delta for formats 1 and 2). The state is advanced to c.
//
// Format 0 is forced when there is no prior message, the message stream id
// changed, the timestamp went backwards, or the delta does not fit the
// 24-bit field (the absolute value then goes to the extended-timestamp
// field).
func (s *csState) observe(c *ChunkStream) (format, tsField uint32) {
	format = 0
	tsField = c.Timestamp
	if s.hasPrev && c.StreamID == s.streamID && c.Timestamp >= s.timestamp {
		delta := c.Timestamp - s.timestamp
		if delta < 0xffffff {
			if c.Length == s.length && c.TypeID == s.typeID {
				format = 2
			} else {
				format = 1
			}
			tsField = delta
		}
	}
	s.timestamp = c.Timestamp
	s.length = c.Length
	s.typeID = c.TypeID
	s.streamID = c.StreamID
	s.hasPrev = true
	return format, tsField
}

func (chunkStream *ChunkStream) writeHeader(w *ReadWriter, format, tsField uint32) error {
	// Chunk Basic Header
	h := format << 6
	switch {
	case chunkStream.CSID < 64:
		h |= chunkStream.CSID
		if err := w.WriteUintBE(h, 1); err != nil {
			return err
		}
	case chunkStream.CSID-64 < 256:
		if err := w.WriteUintBE(h, 1); err != nil {
			return err
		}
		if err := w.WriteUintLE(chunkStream.CSID-64, 1); err != nil {
			return err
		}
	case chunkStream.CSID-64 < 65536:
		h |= 1
		if err := w.WriteUintBE(h, 1); err != nil {
			return err
		}
		if err := w.WriteUintLE(chunkStream.CSID-64, 2); err != nil {
			return err
		}
	default:
		return fmt.Errorf("csid=%d out of range", chunkStream.CSID)
	}
	// Chunk Message Header
	ts := tsField
	if format == 3 {
		goto END
	}
	if ts > 0xffffff {
		ts = 0xffffff
	}
	if err := w.WriteUintBE(ts, 3); err != nil {
		return err
	}
	if format == 2 {
		goto END
	}
	if chunkStream.Length > 0xffffff {
		return fmt.Errorf("length=%d", chunkStream.Length)
	}
	if err := w.WriteUintBE(chunkStream.Length, 3); err != nil {
		return err
	}
	if err := w.WriteUintBE(chunkStream.TypeID, 1); err != nil {
		return err
	}
	if format == 1 {
		goto END
	}
	if err := w.WriteUintLE(chunkStream.StreamID, 4); err != nil {
		return err
	}
END:
	// Extended Timestamp, repeated on every chunk of the message
	if tsField >= 0xffffff {
		if err := w.WriteUintBE(tsField, 4); err != nil {
			return err
		}
	}
	return nil
}

// writeChunk emits the message as ceil(Length/chunkSize) chunks. The first
// chunk carries the header format st picked, continuations use format 3.
func (chunkStream *ChunkStream) writeChunk(w *ReadWriter, chunkSize uint32, st *csState) error {
	switch chunkStream.TypeID {
	case av.TAG_AUDIO:
		chunkStream.CSID = 4
	case av.TAG_VIDEO, av.TAG_SCRIPTDATAAMF0, av.TAG_SCRIPTDATAAMF3:
		chunkStream.CSID = 6
	}

	format, tsField := st.observe(chunkStream)

	if chunkStream.Length == 0 {
		return chunkStream.writeHeader(w, format, tsField)
	}

	totalLen := uint32(0)
	numChunks := (chunkStream.Length / chunkSize)
	for i := uint32(0); i <= numChunks; i++ {
		if totalLen == chunkStream.Length {
			break
		}
		f := format
		if i > 0 {
			f = 3
		}
		if err := chunkStream.writeHeader(w, f, tsField); err != nil {
			return err
		}
		inc := chunkSize
		start := i * chunkSize
		if uint32(len(chunkStream.Data))-start <= inc {
			inc = uint32(len(chunkStream.Data)) - start
		}
		totalLen += inc
		end := start + inc
		if _, err := w.Write(chunkStream.Data[start:end]); err != nil {
			return err
		}
	}

	return nil
}
