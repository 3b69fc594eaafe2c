package core

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	handshakeSize = 1536
	rtmpVersion   = 3
)

var (
	ErrHandshakeVersion = errors.New("handshake: bad server version")
	ErrHandshakeEcho    = errors.New("handshake: s2 does not echo c1")
)

// HandshakeClient runs the plain (unencrypted) client handshake: send
// C0+C1, read S0+S1, answer C2 echoing S1, read S2 and check it echoes C1.
// Every read and write runs under the deadline so a concurrent Close on
// the transport unblocks it promptly.
func (conn *Conn) HandshakeClient(timeout time.Duration) error {
	var full [1 + handshakeSize*2]byte
	c0c1c2 := full[:]
	c0 := c0c1c2[:1]
	c1 := c0c1c2[1 : handshakeSize+1]
	c0c1 := c0c1c2[:handshakeSize+1]
	c2 := c0c1c2[handshakeSize+1:]

	c0[0] = rtmpVersion
	// c1: 4-byte epoch, 4-byte zero version, random fill
	binary.BigEndian.PutUint32(c1[0:4], uint32(time.Now().Unix()))
	copy(c1[4:8], []byte{0, 0, 0, 0})
	if _, err := rand.Read(c1[8:]); err != nil {
		return err
	}

	conn.SetDeadline(time.Now().Add(timeout))
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.rw.Write(c0c1); err != nil {
		return err
	}
	if err := conn.rw.Flush(); err != nil {
		return err
	}

	s0s1 := make([]byte, 1+handshakeSize)
	if _, err := conn.rw.Read(s0s1); err != nil {
		return err
	}
	if s0s1[0] != rtmpVersion {
		return fmt.Errorf("%w: %d", ErrHandshakeVersion, s0s1[0])
	}
	s1 := s0s1[1:]

	copy(c2, s1)
	if _, err := conn.rw.Write(c2); err != nil {
		return err
	}
	if err := conn.rw.Flush(); err != nil {
		return err
	}

	s2 := make([]byte, handshakeSize)
	if _, err := conn.rw.Read(s2); err != nil {
		return err
	}
	// the first 8 bytes carry the server's time fields, the random
	// payload is what must match
	if !bytes.Equal(s2[8:], c1[8:]) {
		return ErrHandshakeEcho
	}

	return nil
}

// HandshakeServer is the answering side of the plain handshake. The
// publish client never uses it, the test ingest endpoint does.
func (conn *Conn) HandshakeServer(timeout time.Duration) error {
	conn.SetDeadline(time.Now().Add(timeout))
	defer conn.SetDeadline(time.Time{})

	c0c1 := make([]byte, 1+handshakeSize)
	if _, err := conn.rw.Read(c0c1); err != nil {
		return err
	}
	if c0c1[0] != rtmpVersion {
		return fmt.Errorf("%w: %d", ErrHandshakeVersion, c0c1[0])
	}
	c1 := c0c1[1:]

	var full [1 + handshakeSize*2]byte
	s0s1s2 := full[:]
	s0s1s2[0] = rtmpVersion
	s1 := s0s1s2[1 : handshakeSize+1]
	s2 := s0s1s2[handshakeSize+1:]
	binary.BigEndian.PutUint32(s1[0:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(s1[8:]); err != nil {
		return err
	}
	copy(s2, c1)

	if _, err := conn.rw.Write(s0s1s2); err != nil {
		return err
	}
	if err := conn.rw.Flush(); err != nil {
		return err
	}

	c2 := make([]byte, handshakeSize)
	if _, err := conn.rw.Read(c2); err != nil {
		return err
	}
	if !bytes.Equal(c2[8:], s1[8:]) {
		return ErrHandshakeEcho
	}

	return nil
}
