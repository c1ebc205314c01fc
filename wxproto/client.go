package wxproto

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/wxrelay/helpers"
)

const DefaultNetworkTimeout = 5 * time.Second

// Push sends frame over new ingest connection. Hub never responds on ingest,
// so success only means bytes were written.
func Push(ctx context.Context, addr string, schema *Schema, f *Frame) error {
	b := make([]byte, 1, 1+schema.FrameSize(f.Mask))
	b[0] = TypeWeather
	b, err := schema.AppendFrame(b, f.Mask, &f.Values)
	if err != nil {
		return errors.Annotate(err, "push encode")
	}
	conn, err := dialContext(ctx, addr)
	if err != nil {
		return errors.Annotate(err, "push dial")
	}
	defer conn.Close()
	if err = helpers.WriteAll(conn, b); err != nil {
		return errors.Annotatef(err, "push write addr=%s", addr)
	}
	return nil
}

// Query requests categories in mask and decodes response.
// Response mask is subset of request: only categories hub has ever received.
func Query(ctx context.Context, addr string, schema *Schema, mask Mask) (*Frame, error) {
	conn, err := dialContext(ctx, addr)
	if err != nil {
		return nil, errors.Annotate(err, "query dial")
	}
	defer conn.Close()
	if err = helpers.WriteAll(conn, []byte{TypeWeather, byte(mask)}); err != nil {
		return nil, errors.Annotatef(err, "query write addr=%s", addr)
	}
	f := &Frame{}
	_, done, err := schema.ReadFrame(conn, func(bit uint8, s Section) { f.Values[bit] = s })
	f.Mask = done
	if err != nil {
		return f, errors.Annotatef(err, "query response addr=%s", addr)
	}
	if extra := done &^ mask; extra != 0 {
		return f, errors.Errorf("query response mask=%s not requested=%s", done, extra)
	}
	return f, nil
}

// addr is host:port or tcp://host:port
func dialContext(ctx context.Context, addr string) (net.Conn, error) {
	hostport := addr
	if strings.Contains(addr, "://") {
		u, err := url.ParseRequestURI(addr)
		if err != nil {
			return nil, err
		}
		if u.Scheme != "tcp" {
			return nil, fmt.Errorf("unknown protocol=%s", u.Scheme)
		}
		hostport = u.Host
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultNetworkTimeout)
	}
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, err
	}
	if err = conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, errors.Annotate(err, "SetDeadline")
	}
	return conn, nil
}
