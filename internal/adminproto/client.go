package adminproto

import (
	"fmt"
	"net"
	"time"
)

// Client issues Requests against a running ferryd's admin socket, one
// connection per call. The admin protocol is low-volume operator
// traffic, so a fresh connection per request is simpler than pooling.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient builds a Client dialing the Unix socket at path.
func NewClient(path string, timeout time.Duration) *Client {
	return &Client{path: path, timeout: timeout}
}

// Do issues req and returns the daemon's Response.
func (c *Client) Do(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return Response{}, fmt.Errorf("adminproto: dial %q: %w", c.path, err)
	}
	defer conn.Close()

	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if err := WriteRequest(conn, req); err != nil {
		return Response{}, err
	}
	return ReadResponse(conn)
}
