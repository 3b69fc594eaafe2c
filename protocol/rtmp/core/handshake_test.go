package core

import (
	"crypto/rand"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandshakeClientServer(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- NewConn(srv, 4096).HandshakeServer(time.Second)
	}()

	require.NoError(t, NewConn(cli, 4096).HandshakeClient(time.Second))
	require.NoError(t, <-errc)
}

func TestHandshakeClientRejectsBadVersion(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	go func() {
		buf := make([]byte, 1+handshakeSize)
		if _, err := io.ReadFull(srv, buf); err != nil {
			return
		}
		s0s1 := make([]byte, 1+handshakeSize)
		s0s1[0] = 9
		srv.Write(s0s1)
	}()

	err := NewConn(cli, 4096).HandshakeClient(time.Second)
	require.ErrorIs(t, err, ErrHandshakeVersion)
}

func TestHandshakeClientRejectsBadEcho(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	go func() {
		c0c1 := make([]byte, 1+handshakeSize)
		if _, err := io.ReadFull(srv, c0c1); err != nil {
			return
		}
		s0s1 := make([]byte, 1+handshakeSize)
		s0s1[0] = rtmpVersion
		rand.Read(s0s1[9:])
		if _, err := srv.Write(s0s1); err != nil {
			return
		}
		c2 := make([]byte, handshakeSize)
		if _, err := io.ReadFull(srv, c2); err != nil {
			return
		}
		// s2 must echo c1; send noise instead
		s2 := make([]byte, handshakeSize)
		rand.Read(s2)
		srv.Write(s2)
	}()

	err := NewConn(cli, 4096).HandshakeClient(time.Second)
	require.ErrorIs(t, err, ErrHandshakeEcho)
}
