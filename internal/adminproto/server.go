package adminproto

import (
	"errors"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/logging"
)

// Ops is the subset of facade.Facade (plus a config-reload hook) the
// admin socket drives. Defined here, rather than depending on the
// facade package directly, to keep this package's surface
// test-doubleable without the rest of the daemon's wiring.
type Ops interface {
	Names() []string
	AliasNames() []string
	InspectQueue(name string) ([]journal.Stat, bool)
	Stats() []journal.Stat
	Flush(name string) error
	Delete(name string) error
}

// ReloadFunc re-reads configuration and reconciles aliases against it.
// Bound by cmd/ferryd to its own config path and lifecycle.ReconcileAliases.
type ReloadFunc func() error

// ErrUnknownVerb is returned for a Request carrying a Verb this server
// does not recognize.
var ErrUnknownVerb = errors.New("adminproto: unknown verb")

// ErrMissingQueue is returned for a verb that requires Queue but did
// not receive one.
var ErrMissingQueue = errors.New("adminproto: missing queue name")

// Handler builds a per-request dispatch function bound to ops and
// reload, for use with Listen.
func Handler(ops Ops, reload ReloadFunc) func(Request) Response {
	return func(req Request) Response {
		switch req.Verb {
		case VerbList:
			resp := OKResponse()
			resp.Queues = ops.Names()
			resp.Aliases = ops.AliasNames()
			return resp
		case VerbStats:
			resp := OKResponse()
			resp.Stats = ops.Stats()
			return resp
		case VerbInspect:
			if req.Queue == "" {
				return ErrResponse(ErrMissingQueue)
			}
			stats, ok := ops.InspectQueue(req.Queue)
			if !ok {
				return ErrResponse(fmt.Errorf("adminproto: no such queue %q", req.Queue))
			}
			resp := OKResponse()
			resp.Stats = stats
			return resp
		case VerbFlush:
			if req.Queue == "" {
				return ErrResponse(ErrMissingQueue)
			}
			if err := ops.Flush(req.Queue); err != nil {
				return ErrResponse(err)
			}
			return OKResponse()
		case VerbDelete:
			if req.Queue == "" {
				return ErrResponse(ErrMissingQueue)
			}
			if err := ops.Delete(req.Queue); err != nil {
				return ErrResponse(err)
			}
			return OKResponse()
		case VerbReload:
			if reload == nil {
				return ErrResponse(errors.New("adminproto: reload not configured"))
			}
			if err := reload(); err != nil {
				return ErrResponse(err)
			}
			return OKResponse()
		default:
			return ErrResponse(fmt.Errorf("%w: %q", ErrUnknownVerb, req.Verb))
		}
	}
}

// Server serves the admin protocol over a Unix domain socket listener,
// each connection handled in its own goroutine and serving requests
// until the client disconnects.
type Server struct {
	listener net.Listener
	log      *logging.Logger
	handle   func(Request) Response
	done     chan struct{}
}

// Listen binds a Unix domain socket at path and returns a Server ready
// to Serve. A stale socket file left behind by a prior, uncleanly
// terminated run is removed first.
func Listen(path string, handle func(Request) Response, log *logging.Logger) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("adminproto: remove stale socket %q: %w", path, err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("adminproto: listen %q: %w", path, err)
	}
	return &Server{listener: l, log: log, handle: handle, done: make(chan struct{})}, nil
}

// Serve accepts connections until the listener is closed by Close.
func (s *Server) Serve() error {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("adminproto: accept: %w", err)
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	r := NewReader(conn)
	for {
		req, err := r.ReadRequest()
		if err != nil {
			return
		}
		resp := s.handle(req)
		if err := WriteResponse(conn, resp); err != nil {
			s.log.Warn("adminproto: write response failed", zap.Error(err))
			return
		}
	}
}

// Close stops accepting new connections and waits for Serve to
// return. In-flight connections are allowed to finish their current
// request/response.
func (s *Server) Close() error {
	err := s.listener.Close()
	<-s.done
	return err
}
