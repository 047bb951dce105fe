// Package launch is the client side of the ade-launchd socket protocol.
package launch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/0xADE/ade-launch/parser"
)

const protoVer = "TXT01" // cmdlist protocol, text format, v01

// Application is one line of a result list.
type Application struct {
	Pos  int
	Name string
}

// Result describes a submit, run or cancel.
type Result struct {
	Name string
	PID  int
	Quit bool  // the daemon ended the session
	Err  error // *ServerError when the launch failed
}

// ServerError is an error response from the daemon.
type ServerError struct {
	Cmd  string
	Type string
	Desc string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Cmd, e.Type, e.Desc)
}

// Response is a parsed reply.
type Response struct {
	Attrs map[string]string
	Body  []string
}

// Client handles one session with ade-launchd.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// Dial connects to the daemon at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}

	c, err := NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient sends the protocol header over conn.
func NewClient(conn net.Conn) (*Client, error) {
	if _, err := io.WriteString(conn, protoVer+"\n"); err != nil {
		return nil, fmt.Errorf("failed to send header: %w", err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Do sends cmd and reads the reply.
func (c *Client) Do(cmd parser.Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := parser.Encode(c.conn, cmd); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd.Name, err)
	}

	resp, err := ReadResponse(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// Query returns the results for text. An empty text lists recent entries.
func (c *Client) Query(text string) ([]Application, error) {
	return c.list(parser.Command{Name: parser.CmdQuery, Args: []parser.Value{parser.String(text)}})
}

// Recent lists the recently launched entries.
func (c *Client) Recent() ([]Application, error) {
	return c.list(parser.Command{Name: parser.CmdRecent})
}

// Move places the cursor on result pos.
func (c *Client) Move(pos int) error {
	resp, err := c.Do(parser.Command{Name: parser.CmdMove, Args: []parser.Value{parser.Int(int64(pos))}})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Submit launches the result under the cursor.
func (c *Client) Submit() (Result, error) {
	return c.launch(parser.Command{Name: parser.CmdSubmit})
}

// Run launches the result at pos.
func (c *Client) Run(pos int) (Result, error) {
	return c.launch(parser.Command{Name: parser.CmdRun, Args: []parser.Value{parser.Int(int64(pos))}})
}

// RunName launches the entry named name.
func (c *Client) RunName(name string) (Result, error) {
	return c.launch(parser.Command{Name: parser.CmdRun, Args: []parser.Value{parser.String(name)}})
}

// Cancel ends the session without launching.
func (c *Client) Cancel() (Result, error) {
	return c.launch(parser.Command{Name: parser.CmdCancel})
}

func (c *Client) list(cmd parser.Command) ([]Application, error) {
	resp, err := c.Do(cmd)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Applications(), nil
}

// launch returns a transport error, or a Result whose Err carries the
// daemon's launch failure.
func (c *Client) launch(cmd parser.Command) (Result, error) {
	resp, err := c.Do(cmd)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Name: resp.Attrs["name"],
		Quit: resp.Attrs["quit"] == "1",
		Err:  resp.Err(),
	}
	if pid, ok := resp.Attrs["pid"]; ok {
		res.PID, _ = strconv.Atoi(pid)
	}
	return res, nil
}

// Err returns the server error carried by the response, if any.
func (r *Response) Err() error {
	errType, ok := r.Attrs["error"]
	if !ok {
		return nil
	}
	return &ServerError{
		Cmd:  r.Attrs["error-cmd"],
		Type: errType,
		Desc: r.Attrs["desc"],
	}
}

// Applications parses the body as "<pos> <name>" lines.
func (r *Response) Applications() []Application {
	apps := make([]Application, 0, len(r.Body))
	for _, line := range r.Body {
		posText, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pos, err := strconv.Atoi(posText)
		if err != nil {
			continue
		}
		apps = append(apps, Application{Pos: pos, Name: name})
	}
	return apps
}

// ReadResponse reads one reply: the header line, "key: value" attributes,
// an optional "body:" section, and the terminating blank line.
func ReadResponse(reader *bufio.Reader) (*Response, error) {
	header, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}
	if !strings.HasPrefix(header, "TXT") {
		return nil, fmt.Errorf("unexpected response header %q", strings.TrimSpace(header))
	}

	resp := &Response{Attrs: make(map[string]string)}
	inBody := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read error: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return resp, nil
		}

		if inBody {
			resp.Body = append(resp.Body, line)
			continue
		}
		if line == "body:" {
			inBody = true
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if ok {
			resp.Attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
}
