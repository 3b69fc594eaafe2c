package core

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/protocol/amf"
)

const (
	respResult     = "_result"
	onStatus       = "onStatus"
	publishStart   = "NetStream.Publish.Start"
	connectSuccess = "NetConnection.Connect.Success"
)

const (
	cmdConnect      = "connect"
	cmdCreateStream = "createStream"
	cmdPublish      = "publish"
	cmdDeleteStream = "deleteStream"
)

const publishLive = "live"

var (
	ErrFail   = errors.New("response err")
	ErrClosed = errors.New("connection closed")
)

const (
	defaultTimeout = 10 * time.Second
	defaultBufSize = 4 * 1024
)

// ConnClient dials an RTMP(S) url and drives the publish command
// sequence: handshake, chunk-size announcement, connect, createStream,
// publish. All socket operations run under a bounded deadline so a
// concurrent Close unblocks the caller.
type ConnClient struct {
	transID    int
	url        string
	app        string
	title      string
	curcmdName string
	streamid   uint32
	isRTMPS    bool
	chunkSize  uint32
	timeout    time.Duration
	tlsVerify  bool

	connMu sync.Mutex
	closed bool
	conn   *Conn

	encoder *amf.Encoder
	decoder *amf.Decoder
	bytesw  *bytes.Buffer
}

type ConnClientConf func(*ConnClient)

// WithChunkSize announces the given outgoing chunk size right after the
// handshake. Zero keeps the protocol default of 128.
func WithChunkSize(size uint32) ConnClientConf {
	return func(c *ConnClient) {
		c.chunkSize = size
	}
}

// WithTimeout bounds the dial and every handshake/command-response read.
func WithTimeout(d time.Duration) ConnClientConf {
	return func(c *ConnClient) {
		c.timeout = d
	}
}

// WithTLSVerify validates the server certificate against the system pool
// on rtmps urls.
func WithTLSVerify(verify bool) ConnClientConf {
	return func(c *ConnClient) {
		c.tlsVerify = verify
	}
}

func NewConnClient(conf ...ConnClientConf) *ConnClient {
	connClient := &ConnClient{
		transID: 1,
		timeout: defaultTimeout,
		bytesw:  bytes.NewBuffer(nil),
		encoder: new(amf.Encoder),
		decoder: new(amf.Decoder),
	}
	for _, c := range conf {
		c(connClient)
	}
	return connClient
}

func (connClient *ConnClient) readRespMsg() error {
	connClient.conn.SetDeadline(time.Now().Add(connClient.timeout))
	defer connClient.conn.SetDeadline(time.Time{})
	for {
		rc, err := connClient.conn.Read()
		if err != nil {
			return err
		}
		switch rc.TypeID {
		case 20, 17:
			r := bytes.NewReader(rc.Data)
			vs, _ := connClient.decoder.DecodeBatch(r, amf.AMF0)

			for k, v := range vs {
				switch v := v.(type) {
				case string:
					switch connClient.curcmdName {
					case cmdConnect, cmdCreateStream:
						if v != respResult {
							return errors.New(v)
						}

					case cmdPublish:
						if v != onStatus {
							return ErrFail
						}
					}
				case float64:
					switch connClient.curcmdName {
					case cmdConnect, cmdCreateStream:
						id := int(v)

						switch k {
						case 1:
							if id != connClient.transID {
								return ErrFail
							}
						case 3:
							connClient.streamid = uint32(id)
						}
					case cmdPublish:
						if int(v) != 0 {
							return ErrFail
						}
					}
				case amf.Object:
					switch connClient.curcmdName {
					case cmdConnect:
						code, ok := v["code"]
						if ok && code.(string) != connectSuccess {
							return ErrFail
						}
					case cmdPublish:
						code, ok := v["code"]
						if ok && code.(string) != publishStart {
							return ErrFail
						}
					}
				}
			}

			return nil
		}
	}
}

func (connClient *ConnClient) writeMsg(args ...any) error {
	connClient.bytesw.Reset()
	for _, v := range args {
		if _, err := connClient.encoder.Encode(connClient.bytesw, v, amf.AMF0); err != nil {
			return err
		}
	}
	msg := connClient.bytesw.Bytes()
	c := &ChunkStream{
		Format:    0,
		CSID:      3,
		Timestamp: 0,
		TypeID:    20,
		StreamID:  connClient.streamid,
		Length:    uint32(len(msg)),
		Data:      msg,
	}
	if err := connClient.conn.Write(c); err != nil {
		return err
	}
	return connClient.conn.Flush()
}

func (connClient *ConnClient) writeConnectMsg() error {
	event := make(amf.Object)
	event["app"] = connClient.app
	event["type"] = "nonprivate"
	event["flashVer"] = "FMS.3.1"
	event["tcUrl"] = connClient.url
	connClient.curcmdName = cmdConnect

	if err := connClient.writeMsg(cmdConnect, connClient.transID, event); err != nil {
		return err
	}
	return connClient.readRespMsg()
}

func (connClient *ConnClient) writeCreateStreamMsg() error {
	connClient.transID++
	connClient.curcmdName = cmdCreateStream

	if err := connClient.writeMsg(cmdCreateStream, connClient.transID, nil); err != nil {
		return err
	}
	return connClient.readRespMsg()
}

func (connClient *ConnClient) writePublishMsg() error {
	connClient.transID++
	connClient.curcmdName = cmdPublish
	if err := connClient.writeMsg(cmdPublish, connClient.transID, nil, connClient.title, publishLive); err != nil {
		return err
	}
	return connClient.readRespMsg()
}

// parseURL splits rtmp://host[:port]/app/stream, defaulting the port for
// the scheme when absent.
func (connClient *ConnClient) parseURL(rtmpURL string) (host string, err error) {
	u, err := neturl.Parse(rtmpURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(u.Scheme, "rtmp") {
		return "", fmt.Errorf("rtmp url err: %s", rtmpURL)
	}
	connClient.url = rtmpURL
	connClient.isRTMPS = strings.EqualFold(u.Scheme, "rtmps")

	path := strings.TrimLeft(u.Path, "/")
	ps := strings.SplitN(path, "/", 2)
	if len(ps) != 2 || ps[0] == "" || ps[1] == "" {
		return "", fmt.Errorf("u path err: %s", path)
	}
	connClient.app = ps[0]
	connClient.title = ps[1]
	if u.RawQuery != "" {
		connClient.title += "?" + u.RawQuery
	}

	host = u.Host
	if u.Port() == "" {
		if connClient.isRTMPS {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "1935")
		}
	}
	return host, nil
}

// Start dials, handshakes and runs connect/createStream/publish. On
// return the connection is ready for media messages on GetStreamId.
func (connClient *ConnClient) Start(rtmpURL string) error {
	host, err := connClient.parseURL(rtmpURL)
	if err != nil {
		return err
	}

	var conn net.Conn
	if connClient.isRTMPS {
		var config tls.Config
		if connClient.tlsVerify {
			roots, err := x509.SystemCertPool()
			if err != nil {
				return err
			}
			config.RootCAs = roots
		} else {
			config.InsecureSkipVerify = true
		}

		dialer := &net.Dialer{Timeout: connClient.timeout}
		conn, err = tls.DialWithDialer(dialer, "tcp", host, &config)
		if err != nil {
			return err
		}
	} else {
		conn, err = net.DialTimeout("tcp", host, connClient.timeout)
		if err != nil {
			return err
		}
	}

	connClient.connMu.Lock()
	if connClient.closed {
		connClient.connMu.Unlock()
		conn.Close()
		return ErrClosed
	}
	connClient.conn = NewConn(conn, defaultBufSize)
	connClient.connMu.Unlock()

	if err := connClient.conn.HandshakeClient(connClient.timeout); err != nil {
		return err
	}

	if connClient.chunkSize > 0 && connClient.chunkSize != 128 {
		if err := connClient.conn.Write(connClient.conn.NewSetChunkSize(connClient.chunkSize)); err != nil {
			return err
		}
		if err := connClient.conn.Flush(); err != nil {
			return err
		}
	}

	if err := connClient.writeConnectMsg(); err != nil {
		return err
	}
	if err := connClient.writeCreateStreamMsg(); err != nil {
		return err
	}
	return connClient.writePublishMsg()
}

func (connClient *ConnClient) Write(c *ChunkStream) error {
	if c.TypeID == av.TAG_SCRIPTDATAAMF0 ||
		c.TypeID == av.TAG_SCRIPTDATAAMF3 {
		var err error
		if c.Data, err = amf.MetaDataReform(c.Data, amf.ADD); err != nil {
			return err
		}
		c.Length = uint32(len(c.Data))
	}
	return connClient.conn.Write(c)
}

func (connClient *ConnClient) Flush() error {
	return connClient.conn.Flush()
}

func (connClient *ConnClient) Read() (*ChunkStream, error) {
	return connClient.conn.Read()
}

func (connClient *ConnClient) GetInfo() (app, name, url string) {
	app = connClient.app
	name = connClient.title
	url = connClient.url
	return
}

func (connClient *ConnClient) GetStreamId() uint32 {
	return connClient.streamid
}

// Close is safe before Start completes: it tears the transport down,
// which also unblocks any read the command sequence is waiting on, and
// makes a dial still in flight abandon its connection.
func (connClient *ConnClient) Close() error {
	connClient.connMu.Lock()
	defer connClient.connMu.Unlock()
	connClient.closed = true
	if connClient.conn == nil {
		return nil
	}
	return connClient.conn.Close()
}
