package core

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/zijiren233/ksync"
	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/stream"
)

const (
	_ = iota
	idSetChunkSize
	idAbortMessage
	idAck
	idUserControlMessages
	idWindowAckSize
	idSetPeerBandwidth
)

// Conn frames RTMP messages over a net.Conn. One goroutine may write and
// one may read concurrently; the write side keeps per-chunk-stream header
// compression state and is the single owner of the outgoing byte stream.
type Conn struct {
	net.Conn
	chunkSize           uint32
	remoteChunkSize     uint32
	windowAckSize       uint32
	remoteWindowAckSize uint32
	received            uint32
	ackReceived         uint32
	rw                  *ReadWriter
	lock                *ksync.Kmutex
	chunks              map[uint32]*ChunkStream
	writeStates         map[uint32]*csState
}

func NewConn(c net.Conn, bufferSize int) *Conn {
	return &Conn{
		Conn:                c,
		chunkSize:           128,
		remoteChunkSize:     128,
		windowAckSize:       2500000,
		remoteWindowAckSize: 2500000,
		rw:                  NewReadWriter(c, bufferSize),
		lock:                ksync.NewKmutex(),
		chunks:              make(map[uint32]*ChunkStream),
		writeStates:         make(map[uint32]*csState),
	}
}

// Read returns the next complete message, transparently answering window
// acknowledgements and applying the peer's control messages.
func (conn *Conn) Read() (c *ChunkStream, err error) {
	for {
		c, err = conn.readNextChunk()
		if err != nil {
			return nil, err
		}
		if c.full() {
			break
		}
	}

	conn.handleControlMsg(c)

	conn.ack(c.Length)

	return
}

func (conn *Conn) readNextChunk() (chunkStream *ChunkStream, err error) {
	h, err := conn.rw.ReadUintBE(1)
	if err != nil {
		return nil, err
	}
	format := h >> 6
	csid := h & 0x3f
	conn.lock.Lock(csid)
	defer conn.lock.Unlock(csid)
	chunkStream, ok := conn.chunks[csid]
	if !ok {
		chunkStream = &ChunkStream{CSID: csid}
		conn.chunks[csid] = chunkStream
	}
	chunkStream.tmpFormat = format
	if chunkStream.remain != 0 && chunkStream.tmpFormat != 3 {
		return nil, fmt.Errorf("invalid remain = %d", chunkStream.remain)
	}
	switch chunkStream.CSID {
	case 0:
		id, err := conn.rw.ReadUintLE(1)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.CSID = id + 64
	case 1:
		id, err := conn.rw.ReadUintLE(2)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.CSID = id + 64
	}

	switch chunkStream.tmpFormat {
	case 0:
		chunkStream.Format = chunkStream.tmpFormat
		chunkStream.Timestamp, err = conn.rw.ReadUintBE(3)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.Length, err = conn.rw.ReadUintBE(3)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.TypeID, err = conn.rw.ReadUintBE(1)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.StreamID, err = conn.rw.ReadUintLE(4)
		if err != nil {
			return chunkStream, err
		}
		if chunkStream.Timestamp == 0xffffff {
			chunkStream.Timestamp, err = conn.rw.ReadUintBE(4)
			if err != nil {
				return chunkStream, err
			}
			chunkStream.exted = true
		} else {
			chunkStream.exted = false
		}
		chunkStream.init()
	case 1:
		chunkStream.Format = chunkStream.tmpFormat
		timeStamp, err := conn.rw.ReadUintBE(3)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.Length, err = conn.rw.ReadUintBE(3)
		if err != nil {
			return chunkStream, err
		}
		chunkStream.TypeID, err = conn.rw.ReadUintBE(1)
		if err != nil {
			return chunkStream, err
		}
		if timeStamp == 0xffffff {
			timeStamp, err = conn.rw.ReadUintBE(4)
			if err != nil {
				return chunkStream, err
			}
			chunkStream.exted = true
		} else {
			chunkStream.exted = false
		}
		chunkStream.timeDelta = timeStamp
		chunkStream.Timestamp += timeStamp
		chunkStream.init()
	case 2:
		chunkStream.Format = chunkStream.tmpFormat
		timeStamp, err := conn.rw.ReadUintBE(3)
		if err != nil {
			return chunkStream, err
		}
		if timeStamp == 0xffffff {
			timeStamp, err = conn.rw.ReadUintBE(4)
			if err != nil {
				return chunkStream, err
			}
			chunkStream.exted = true
		} else {
			chunkStream.exted = false
		}
		chunkStream.timeDelta = timeStamp
		chunkStream.Timestamp += timeStamp
		chunkStream.init()
	case 3:
		if chunkStream.remain == 0 {
			switch chunkStream.Format {
			case 0:
				if chunkStream.exted {
					timestamp, err := conn.rw.ReadUintBE(4)
					if err != nil {
						return chunkStream, err
					}
					chunkStream.Timestamp = timestamp
				}
			case 1, 2:
				var timedet uint32
				if chunkStream.exted {
					timedet, err = conn.rw.ReadUintBE(4)
					if err != nil {
						return chunkStream, err
					}
				} else {
					timedet = chunkStream.timeDelta
				}
				chunkStream.Timestamp += timedet
			}
			chunkStream.init()
		} else {
			if chunkStream.exted {
				b, err := conn.rw.Peek(4)
				if err != nil {
					return chunkStream, err
				}
				tmpts := binary.BigEndian.Uint32(b)
				if tmpts == chunkStream.Timestamp {
					conn.rw.Discard(4)
				}
			}
		}
	default:
		return chunkStream, fmt.Errorf("invalid format=%d", chunkStream.Format)
	}
	size := chunkStream.remain
	chunkSize := atomic.LoadUint32(&conn.remoteChunkSize)
	if size > chunkSize {
		size = chunkSize
	}

	buf := chunkStream.Data[chunkStream.index : chunkStream.index+size]
	if n, err := conn.rw.Read(buf); err != nil {
		return chunkStream, err
	} else {
		chunkStream.index += uint32(n)
		chunkStream.remain -= uint32(n)
	}
	if chunkStream.remain == 0 {
		chunkStream.got = true
	}

	return chunkStream, nil
}

// Write chunks c onto the outgoing stream. A SetChunkSize message takes
// effect for the messages after it, itself still going out re-chunked at
// the old size.
func (conn *Conn) Write(c *ChunkStream) error {
	chunkSize := atomic.LoadUint32(&conn.chunkSize)
	if err := c.writeChunk(conn.rw, chunkSize, conn.writeState(c)); err != nil {
		return err
	}
	if c.TypeID == idSetChunkSize {
		atomic.StoreUint32(&conn.chunkSize, binary.BigEndian.Uint32(c.Data))
	}
	return nil
}

// writeState must only be touched by the single writer.
func (conn *Conn) writeState(c *ChunkStream) *csState {
	// writeChunk remaps media CSIDs, key the state the same way
	csid := c.CSID
	switch c.TypeID {
	case av.TAG_AUDIO:
		csid = 4
	case av.TAG_VIDEO, av.TAG_SCRIPTDATAAMF0, av.TAG_SCRIPTDATAAMF3:
		csid = 6
	}
	st, ok := conn.writeStates[csid]
	if !ok {
		st = &csState{}
		conn.writeStates[csid] = st
	}
	return st
}

func (conn *Conn) Flush() error {
	return conn.rw.Flush()
}

func (conn *Conn) Close() error {
	return conn.Conn.Close()
}

func (conn *Conn) RemoteAddr() net.Addr {
	return conn.Conn.RemoteAddr()
}

func (conn *Conn) LocalAddr() net.Addr {
	return conn.Conn.LocalAddr()
}

func (conn *Conn) SetDeadline(t time.Time) error {
	return conn.Conn.SetDeadline(t)
}

// ChunkSize is the currently negotiated outgoing chunk size.
func (conn *Conn) ChunkSize() uint32 {
	return atomic.LoadUint32(&conn.chunkSize)
}

func (conn *Conn) NewAck(size uint32) *ChunkStream {
	return initControlMsg(idAck, 4, size)
}

func (conn *Conn) NewSetChunkSize(size uint32) *ChunkStream {
	return initControlMsg(idSetChunkSize, 4, size)
}

func (conn *Conn) NewWindowAckSize(size uint32) *ChunkStream {
	return initControlMsg(idWindowAckSize, 4, size)
}

func (conn *Conn) NewSetPeerBandwidth(size uint32) *ChunkStream {
	ret := initControlMsg(idSetPeerBandwidth, 5, size)
	ret.Data[4] = 2
	return ret
}

func (conn *Conn) handleControlMsg(c *ChunkStream) {
	if c.TypeID == idSetChunkSize {
		atomic.StoreUint32(&conn.remoteChunkSize, binary.BigEndian.Uint32(c.Data))
	} else if c.TypeID == idWindowAckSize {
		atomic.StoreUint32(&conn.remoteWindowAckSize, binary.BigEndian.Uint32(c.Data))
	}
}

func (conn *Conn) ack(size uint32) {
	atomic.AddUint32(&conn.ackReceived, size)
	current := atomic.AddUint32(&conn.received, size)
	if current >= 0xf0000000 {
		atomic.CompareAndSwapUint32(&conn.received, current, 0)
	}
	if ackReceived := atomic.LoadUint32(&conn.ackReceived); ackReceived >= atomic.LoadUint32(&conn.remoteWindowAckSize) {
		cs := conn.NewAck(ackReceived)
		conn.Write(cs)
		atomic.CompareAndSwapUint32(&conn.ackReceived, ackReceived, 0)
	}
}

func initControlMsg(id, size, value uint32) *ChunkStream {
	ret := &ChunkStream{
		Format:   0,
		CSID:     2,
		TypeID:   id,
		StreamID: 0,
		Length:   size,
		Data:     make([]byte, size),
	}
	stream.BigEndian.WriteU32(ret.Data[:size], value)
	return ret
}
