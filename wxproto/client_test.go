package wxproto_test

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/wxproto"
)

// testPeer accepts one connection and runs fun on it.
func testPeer(t testing.TB, fun func(conn net.Conn)) (string, <-chan struct{}) {
	ll, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ll.Close()
		conn, err := ll.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(time.Second))
		fun(conn)
	}()
	return ll.Addr().String(), done
}

func TestPush(t *testing.T) {
	t.Parallel()
	var got []byte
	addr, done := testPeer(t, func(conn net.Conn) {
		got, _ = io.ReadAll(conn)
	})
	f, err := wxproto.SchemaV2.NewFrame(testTHP, testPM)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wxproto.Push(ctx, "tcp://"+addr, wxproto.SchemaV2, f))
	<-done
	assert.Equal(t, "01"+"05"+hexTHP+hexPM, hex.EncodeToString(got))
}

func TestQuery(t *testing.T) {
	t.Parallel()
	addr, done := testPeer(t, func(conn net.Conn) {
		req := make([]byte, 2)
		_, err := io.ReadFull(conn, req)
		assert.NoError(t, err)
		assert.Equal(t, []byte{wxproto.TypeWeather, 0x0f}, req)
		assert.NoError(t, helpers.WriteAll(conn, helpers.MustHex("05"+hexTHP+hexPM)))
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := wxproto.Query(ctx, addr, wxproto.SchemaV2, 0x0f)
	require.NoError(t, err)
	<-done
	assert.Equal(t, wxproto.Mask(0x05), f.Mask)
	assert.Equal(t, testTHP, f.Values[0])
	assert.Equal(t, testPM, f.Values[2])
	assert.Nil(t, f.Values[1])
}

func TestQueryNoResponse(t *testing.T) {
	t.Parallel()
	addr, done := testPeer(t, func(conn net.Conn) {})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := wxproto.Query(ctx, addr, wxproto.SchemaV2, 0x01)
	<-done
	require.Error(t, err)
	assert.Equal(t, wxproto.ErrMissingHeader, errors.Cause(err))
}

func TestQueryUnrequested(t *testing.T) {
	t.Parallel()
	addr, done := testPeer(t, func(conn net.Conn) {
		_, _ = io.ReadFull(conn, make([]byte, 2))
		_ = helpers.WriteAll(conn, helpers.MustHex("02"+hexCO2))
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := wxproto.Query(ctx, addr, wxproto.SchemaV2, 0x01)
	<-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not requested=02")
}

func TestDialBadScheme(t *testing.T) {
	t.Parallel()
	err := wxproto.Push(context.Background(), "udp://127.0.0.1:1", wxproto.SchemaV2, &wxproto.Frame{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown protocol=udp")
}
