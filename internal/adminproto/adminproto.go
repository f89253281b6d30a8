// Package adminproto defines the newline-delimited JSON wire protocol
// spoken over ferryd's admin Unix domain socket. It carries only
// operator verbs — list, stats, inspect, flush, delete, reload — and
// deliberately has no add/remove: that remains out of scope for any
// protocol this repository exposes.
package adminproto

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/justapithecus/ferryq/internal/journal"
)

// Verb names the operation a Request carries out.
type Verb string

const (
	VerbList    Verb = "list"
	VerbStats   Verb = "stats"
	VerbInspect Verb = "inspect"
	VerbFlush   Verb = "flush"
	VerbDelete  Verb = "delete"
	VerbReload  Verb = "reload"
)

// Request is one line of client->server NDJSON traffic.
type Request struct {
	Verb  Verb   `json:"verb"`
	Queue string `json:"queue,omitempty"`
}

// Response is one line of server->client NDJSON traffic, answering
// exactly one Request.
type Response struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Queues  []string      `json:"queues,omitempty"`
	Stats   []journal.Stat `json:"stats,omitempty"`
	Aliases []string      `json:"aliases,omitempty"`
}

// ErrResponse builds a failed Response carrying err's message.
func ErrResponse(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

// OKResponse builds a bare success Response.
func OKResponse() Response {
	return Response{OK: true}
}

// Reader decodes a stream of newline-delimited Requests.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for reading one Request per line. The scanner's
// buffer is sized generously since inspect queue names can be long but
// never pathological.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Reader{scanner: s}
}

// ReadRequest reads and decodes the next line as a Request. Returns
// io.EOF when the stream is exhausted cleanly.
func (d *Reader) ReadRequest() (Request, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return Request{}, fmt.Errorf("adminproto: read request: %w", err)
		}
		return Request{}, io.EOF
	}
	var req Request
	if err := json.Unmarshal(d.scanner.Bytes(), &req); err != nil {
		return Request{}, fmt.Errorf("adminproto: decode request: %w", err)
	}
	return req, nil
}

// WriteResponse encodes resp as one JSON line terminated by '\n'.
func WriteResponse(w io.Writer, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("adminproto: encode response: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// WriteRequest encodes req as one JSON line terminated by '\n', used
// by the client side.
func WriteRequest(w io.Writer, req Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("adminproto: encode request: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// ReadResponse decodes a single Response line, used by the client
// side after issuing a Request.
func ReadResponse(r io.Reader) (Response, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return Response{}, fmt.Errorf("adminproto: read response: %w", err)
		}
		return Response{}, io.ErrUnexpectedEOF
	}
	var resp Response
	if err := json.Unmarshal(s.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("adminproto: decode response: %w", err)
	}
	return resp, nil
}
