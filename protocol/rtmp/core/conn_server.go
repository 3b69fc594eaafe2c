package core

import (
	"bytes"
	"errors"
	"io"

	"github.com/zijiren233/livepush/protocol/amf"
)

var ErrReq = errors.New("req error")

// ConnectInfo is what the peer announced in its connect command.
type ConnectInfo struct {
	App            string `amf:"app" json:"app"`
	Flashver       string `amf:"flashVer" json:"flashVer"`
	TcUrl          string `amf:"tcUrl" json:"tcUrl"`
	ObjectEncoding int    `amf:"objectEncoding" json:"objectEncoding"`
}

type PublishInfo struct {
	Name string
	Type string
}

// ConnServer answers the publish command sequence. It exists as the
// ingest endpoint the tests run the client against; it is not a full RTMP
// server.
type ConnServer struct {
	done          bool
	streamID      int
	conn          *Conn
	transactionID int
	ConnInfo      ConnectInfo
	PublishInfo   PublishInfo
	decoder       *amf.Decoder
	encoder       *amf.Encoder
	bytesw        *bytes.Buffer
}

func NewConnServer(conn *Conn) *ConnServer {
	return &ConnServer{
		conn:     conn,
		streamID: 1,
		bytesw:   bytes.NewBuffer(nil),
		decoder:  &amf.Decoder{},
		encoder:  &amf.Encoder{},
	}
}

func (connServer *ConnServer) writeMsg(csid, streamID uint32, args ...any) error {
	connServer.bytesw.Reset()
	for _, v := range args {
		if _, err := connServer.encoder.Encode(connServer.bytesw, v, amf.AMF0); err != nil {
			return err
		}
	}
	msg := connServer.bytesw.Bytes()
	c := ChunkStream{
		Format:    0,
		CSID:      csid,
		Timestamp: 0,
		TypeID:    20,
		StreamID:  streamID,
		Length:    uint32(len(msg)),
		Data:      msg,
	}
	if err := connServer.conn.Write(&c); err != nil {
		return err
	}
	return connServer.conn.Flush()
}

func (connServer *ConnServer) connect(vs []any) error {
	for _, v := range vs {
		switch v := v.(type) {
		case string:
		case float64:
			id := int(v)
			if id != 1 {
				return ErrReq
			}
			connServer.transactionID = id
		case amf.Object:
			if app, ok := v["app"]; ok {
				connServer.ConnInfo.App, _ = app.(string)
			}
			if flashVer, ok := v["flashVer"]; ok {
				connServer.ConnInfo.Flashver, _ = flashVer.(string)
			}
			if tcurl, ok := v["tcUrl"]; ok {
				connServer.ConnInfo.TcUrl, _ = tcurl.(string)
			}
			if encoding, ok := v["objectEncoding"]; ok {
				if f, ok := encoding.(float64); ok {
					connServer.ConnInfo.ObjectEncoding = int(f)
				}
			}
		}
	}
	return nil
}

func (connServer *ConnServer) connectResp(csid, streamID uint32) error {
	if err := connServer.conn.Write(connServer.conn.NewWindowAckSize(2500000)); err != nil {
		return err
	}
	if err := connServer.conn.Write(connServer.conn.NewSetPeerBandwidth(2500000)); err != nil {
		return err
	}

	resp := make(amf.Object)
	resp["fmsVer"] = "FMS/3,0,1,123"
	resp["capabilities"] = 31

	event := make(amf.Object)
	event["level"] = "status"
	event["code"] = "NetConnection.Connect.Success"
	event["description"] = "Connection succeeded."
	event["objectEncoding"] = connServer.ConnInfo.ObjectEncoding
	return connServer.writeMsg(csid, streamID, "_result", connServer.transactionID, resp, event)
}

func (connServer *ConnServer) createStream(vs []any) error {
	for _, v := range vs {
		if f, ok := v.(float64); ok {
			connServer.transactionID = int(f)
		}
	}
	return nil
}

func (connServer *ConnServer) createStreamResp(csid, streamID uint32) error {
	return connServer.writeMsg(csid, streamID, "_result", connServer.transactionID, nil, connServer.streamID)
}

func (connServer *ConnServer) publish(vs []any) error {
	for k, v := range vs {
		switch v := v.(type) {
		case string:
			if k == 2 {
				connServer.PublishInfo.Name = v
			} else if k == 3 {
				connServer.PublishInfo.Type = v
			}
		case float64:
			connServer.transactionID = int(v)
		}
	}
	return nil
}

func (connServer *ConnServer) publishResp(csid, streamID uint32) error {
	event := make(amf.Object)
	event["level"] = "status"
	event["code"] = "NetStream.Publish.Start"
	event["description"] = "Start publishing."
	return connServer.writeMsg(csid, streamID, "onStatus", 0, nil, event)
}

func (connServer *ConnServer) handleCmdMsg(c *ChunkStream) error {
	if c.TypeID == 17 {
		c.Data = c.Data[1:]
	}
	r := bytes.NewReader(c.Data)
	vi, err := connServer.decoder.DecodeBatch(r, amf.AMF0)
	if err != nil && err != io.EOF {
		return err
	}
	if len(vi) == 0 {
		return ErrReq
	}

	cmd, ok := vi[0].(string)
	if !ok {
		return ErrReq
	}
	switch cmd {
	case cmdConnect:
		if err = connServer.connect(vi[1:]); err != nil {
			return err
		}
		return connServer.connectResp(c.CSID, c.StreamID)
	case cmdCreateStream:
		if err = connServer.createStream(vi[1:]); err != nil {
			return err
		}
		return connServer.createStreamResp(c.CSID, c.StreamID)
	case cmdPublish:
		if err = connServer.publish(vi[1:]); err != nil {
			return err
		}
		if err = connServer.publishResp(c.CSID, c.StreamID); err != nil {
			return err
		}
		connServer.done = true
	case cmdDeleteStream:
	default:
	}

	return nil
}

// ReadInitMsg consumes messages until the peer's publish command has been
// answered.
func (connServer *ConnServer) ReadInitMsg() error {
	for {
		c, err := connServer.Read()
		if err != nil {
			return err
		}
		switch c.TypeID {
		case 20, 17:
			if err := connServer.handleCmdMsg(c); err != nil {
				return err
			}
		}
		if connServer.done {
			return nil
		}
	}
}

func (connServer *ConnServer) Write(c *ChunkStream) error {
	return connServer.conn.Write(c)
}

func (connServer *ConnServer) Flush() error {
	return connServer.conn.Flush()
}

func (connServer *ConnServer) Read() (*ChunkStream, error) {
	return connServer.conn.Read()
}

func (connServer *ConnServer) GetInfo() (app string, name string) {
	app = connServer.ConnInfo.App
	name = connServer.PublishInfo.Name
	return
}

func (connServer *ConnServer) Close() error {
	return connServer.conn.Close()
}
