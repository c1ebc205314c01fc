package hub

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/internal/cache"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

const (
	DefaultIngestURL   = "tcp://:7777"
	DefaultServeURL    = "tcp://:7788"
	DefaultReadTimeout = 250 * time.Millisecond
)

type Endpoint string

const (
	EndpointIngest Endpoint = "ingest"
	EndpointServe  Endpoint = "serve"
)

type ServerOptions struct {
	Log       *log2.Log
	Schema    *wxproto.Schema
	Cache     *cache.Cache
	Publisher Publisher

	IngestURL string
	ServeURL  string
	// Connection is closed when whole message is not received within ReadTimeout.
	ReadTimeout time.Duration
	// Number of connections serviced at once. 1 means strictly one by one.
	Workers int
}

// Hub server.
// Accept loops of both endpoints feed one queue, workers take connection,
// run handler to completion and close it.
type Server struct {
	alive   *alive.Alive
	handler Handler
	listens struct {
		sync.RWMutex
		m map[Endpoint]net.Listener
	}
	log   *log2.Log
	opt   ServerOptions
	queue chan acceptedConn
	stat  Stat
}

type acceptedConn struct {
	net.Conn
	endpoint Endpoint
}

func NewServer(opt ServerOptions) *Server {
	if opt.Cache == nil {
		panic("code error hub.ServerOptions.Cache is mandatory")
	}
	if opt.Schema == nil {
		opt.Schema = wxproto.DefaultSchema
	}
	if opt.IngestURL == "" {
		opt.IngestURL = DefaultIngestURL
	}
	if opt.ServeURL == "" {
		opt.ServeURL = DefaultServeURL
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = DefaultReadTimeout
	}
	if opt.Workers < 1 {
		opt.Workers = 1
	}
	s := &Server{
		alive: alive.NewAlive(),
		log:   opt.Log,
		opt:   opt,
		queue: make(chan acceptedConn),
	}
	s.handler = Handler{
		Log:       opt.Log,
		Schema:    opt.Schema,
		Cache:     opt.Cache,
		Publisher: opt.Publisher,
		Stat:      &s.stat,
	}
	s.listens.m = make(map[Endpoint]net.Listener, 2)
	return s
}

func (s *Server) Stat() *Stat { return &s.stat }

// Addr returns actual listen address, useful with port 0.
func (s *Server) Addr(e Endpoint) string {
	s.listens.RLock()
	defer s.listens.RUnlock()
	if ll, ok := s.listens.m[e]; ok {
		return ll.Addr().String()
	}
	return ""
}

func (s *Server) Addrs() []string {
	s.listens.RLock()
	defer s.listens.RUnlock()
	addrs := make([]string, 0, len(s.listens.m))
	for _, e := range []Endpoint{EndpointIngest, EndpointServe} {
		if ll, ok := s.listens.m[e]; ok {
			addrs = append(addrs, ll.Addr().String())
		}
	}
	return addrs
}

// Listen opens both endpoints and starts workers.
// Server is closed when ctx is done.
func (s *Server) Listen(ctx context.Context) error {
	s.listens.Lock()
	defer s.listens.Unlock()

	if len(s.listens.m) != 0 {
		return errors.Errorf("code error Listen called twice")
	}
	errs := make([]error, 0)
	for _, x := range []struct {
		e   Endpoint
		url string
	}{{EndpointIngest, s.opt.IngestURL}, {EndpointServe, s.opt.ServeURL}} {
		ll, err := listen(x.url)
		if err != nil {
			errs = append(errs, errors.Annotatef(err, "listen %s url=%s", x.e, x.url))
			continue
		}
		s.log.Debugf("listen %s url=%s addr=%s", x.e, x.url, addrString(ll.Addr()))
		s.listens.m[x.e] = ll
	}
	if err := helpers.FoldErrors(errs); err != nil {
		s.closeListeners()
		return err
	}

	if !s.alive.Add(len(s.listens.m) + s.opt.Workers) {
		s.closeListeners()
		return errors.Annotate(ErrClosing, "Listen after Close")
	}
	for e, ll := range s.listens.m {
		go s.acceptLoop(ll, e)
	}
	for i := 0; i < s.opt.Workers; i++ {
		go s.worker()
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.alive.StopChan():
		}
	}()
	return nil
}

// Close stops accepting, waits for connections in progress.
func (s *Server) Close() error {
	s.alive.Stop()
	var err error
	helpers.WithLock(&s.listens, func() { err = s.closeListeners() })
	s.alive.Wait()
	return err
}

// requires s.listens locked
func (s *Server) closeListeners() error {
	errs := make([]error, 0)
	for e, ll := range s.listens.m {
		if err := ll.Close(); err != nil {
			errs = append(errs, errors.Annotatef(err, "close %s", e))
		}
		delete(s.listens.m, e)
	}
	return helpers.FoldErrors(errs)
}

func (s *Server) acceptLoop(ll net.Listener, e Endpoint) {
	defer s.alive.Done() // one alive subtask for each listener
	stopch := s.alive.StopChan()
	for {
		netConn, err := ll.Accept()
		if !s.alive.IsRunning() {
			if netConn != nil {
				_ = netConn.Close()
			}
			return
		}
		if err != nil {
			err = errors.Annotatef(err, "accept %s listen=%s", e, addrString(ll.Addr()))
			s.log.Error(err)
			s.alive.Stop()
			return
		}

		switch e {
		case EndpointIngest:
			s.stat.IngestConn.Add(1)
		case EndpointServe:
			s.stat.ServeConn.Add(1)
		}
		select {
		case s.queue <- acceptedConn{Conn: netConn, endpoint: e}:
		case <-stopch:
			_ = netConn.Close()
			return
		}
	}
}

func (s *Server) worker() {
	defer s.alive.Done()
	stopch := s.alive.StopChan()
	for {
		select {
		case c := <-s.queue:
			s.processConn(c)
		case <-stopch:
			return
		}
	}
}

func (s *Server) processConn(c acceptedConn) {
	defer c.Close()
	addr := addrString(c.RemoteAddr())
	if err := c.SetDeadline(time.Now().Add(s.opt.ReadTimeout)); err != nil {
		s.log.Errorf("%s addr=%s SetDeadline err=%v", c.endpoint, addr, err)
		return
	}

	r := helpers.NewStatReader(c, &s.stat.RecvBytes)
	var err error
	switch c.endpoint {
	case EndpointIngest:
		err = s.handler.Ingest(r)
	case EndpointServe:
		w := helpers.NewStatWriter(c, &s.stat.SendBytes)
		err = s.handler.Serve(readWriter{r, w})
	}
	if err != nil {
		s.log.Debugf("%s addr=%s err=%v", c.endpoint, addr, err)
	}
}

type readWriter struct {
	io.Reader
	io.Writer
}
