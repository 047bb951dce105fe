package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xADE/ade-launch/internal/indexer"
	"github.com/0xADE/ade-launch/internal/launcher"
	"github.com/0xADE/ade-launch/internal/session"
	"github.com/0xADE/ade-launch/parser"
)

// Sessions starts one launcher interaction per connection.
type Sessions interface {
	NewSession() *session.Session
}

// Server handles Unix socket connections and command execution
type Server struct {
	listener net.Listener
	sessions Sessions
	running  bool
	mu       sync.RWMutex
}

// New listens on socketPath. A stale socket file is replaced.
func New(socketPath string, sessions Sessions) (*Server, error) {
	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}

	// Remove existing socket if it exists
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		sessions: sessions,
		running:  true,
	}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start accepts connections until Stop is called or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Stop() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return ctx.Err()
			}
			log.Printf("[WARN] Accept failed: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Printf("[DEBUG] New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		log.Printf("[ERROR] Failed to create parser: %v", err)
		writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	sess := s.sessions.NewSession()
	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			log.Printf("[DEBUG] Connection closed by client")
			return
		}
		if errors.Is(err, parser.ErrSyntax) {
			log.Printf("[ERROR] Parse error: %v", err)
			writeError(conn, "parser", "parse error", err.Error())
			continue
		}
		if err != nil {
			log.Printf("[ERROR] Reading command: %v", err)
			return
		}

		log.Printf("[DEBUG] Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		if quit := executeCommand(conn, sess, cmd); quit {
			log.Printf("[DEBUG] Session finished")
			return
		}
	}
}

// executeCommand runs cmd against sess and reports whether the session is over.
func executeCommand(w io.Writer, sess *session.Session, cmd *parser.Command) bool {
	switch cmd.Name {
	case parser.CmdQuery:
		handleQuery(w, sess, cmd)
	case parser.CmdRecent:
		writeList(w, cmd.Name, sess.QueryChanged(""))
	case parser.CmdMove:
		handleMove(w, sess, cmd)
	case parser.CmdSubmit:
		return writeOutcome(w, cmd.Name, sess.Submit())
	case parser.CmdRun:
		return handleRun(w, sess, cmd)
	case parser.CmdCancel:
		return writeOutcome(w, cmd.Name, sess.Cancel())
	default:
		writeError(w, cmd.Name, "unknown command", "Command not recognized")
	}
	return false
}

func handleQuery(w io.Writer, sess *session.Session, cmd *parser.Command) {
	if len(cmd.Args) != 1 || cmd.Args[0].Type != parser.TypeString {
		writeError(w, cmd.Name, "missing parameter", "query requires one string parameter")
		return
	}
	writeList(w, cmd.Name, sess.QueryChanged(cmd.Args[0].Str))
}

func handleMove(w io.Writer, sess *session.Session, cmd *parser.Command) {
	if len(cmd.Args) != 1 || cmd.Args[0].Type != parser.TypeInt {
		writeError(w, cmd.Name, "missing position", "move requires an integer position")
		return
	}

	pos := cmd.Args[0].Int
	if !sess.Move(int(pos)) {
		writeError(w, cmd.Name, "position not found", fmt.Sprintf("No result at position %d", pos))
		return
	}
	writeResponse(w, fmt.Sprintf("cmd: move\nstatus: 0\ncursor: %d\n\n", pos))
}

func handleRun(w io.Writer, sess *session.Session, cmd *parser.Command) bool {
	if len(cmd.Args) != 1 {
		writeError(w, cmd.Name, "missing parameter", "run requires a position or a name")
		return false
	}

	var (
		entry indexer.Entry
		ok    bool
	)
	arg := cmd.Args[0]
	switch arg.Type {
	case parser.TypeInt:
		results := sess.Results()
		if arg.Int >= 0 && arg.Int < int64(len(results)) {
			entry, ok = results[arg.Int], true
		}
	default:
		entry, ok = sess.Lookup(arg.Str)
	}
	if !ok {
		log.Printf("[ERROR] Run target %q (pos %d) not found", arg.Str, arg.Int)
		writeError(w, cmd.Name, "entry not found", "Can't run application, requested entry not found.")
		return false
	}

	return writeOutcome(w, cmd.Name, sess.Select(entry))
}

func writeList(w io.Writer, cmdName string, entries []indexer.Entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "cmd: %s\nstatus: 0\nlist-len: %d\n", cmdName, len(entries))
	if len(entries) > 0 {
		b.WriteString("body:\n")
		for i, entry := range entries {
			fmt.Fprintf(&b, "%d %s\n", i, entry.Name)
		}
	}
	b.WriteString("\n")
	writeResponse(w, b.String())
}

func writeOutcome(w io.Writer, cmdName string, out session.Outcome) bool {
	if out.Err != nil {
		log.Printf("[ERROR] %s: %v", cmdName, out.Err)
		writeResponse(w, fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\nname: %s\nquit: %s\n\n",
			cmdName, errorType(out.Err), oneLine(out.Err.Error()), out.Entry.Name, flag(out.Quit)))
		return out.Quit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cmd: %s\nstatus: 0\n", cmdName)
	if out.Entry.Name != "" {
		fmt.Fprintf(&b, "name: %s\npid: %d\n", out.Entry.Name, out.PID)
	}
	fmt.Fprintf(&b, "quit: %s\n\n", flag(out.Quit))
	writeResponse(w, b.String())
	return out.Quit
}

func errorType(err error) string {
	var lerr *launcher.Error
	switch {
	case errors.As(err, &lerr):
		return lerr.Kind.String()
	case errors.Is(err, session.ErrNoSelection):
		return "no selection"
	case errors.Is(err, session.ErrTerminated):
		return "terminated"
	default:
		return "failed"
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// writeResponse writes a response with TXT01 header
func writeResponse(w io.Writer, response string) {
	if _, err := io.WriteString(w, "TXT01\n"+response); err != nil {
		log.Printf("[ERROR] Failed to write response: %v", err)
		return
	}
	log.Printf("[DEBUG] Response written: %d bytes", len(response))
}

func writeError(w io.Writer, cmd, errType, desc string) {
	log.Printf("[ERROR] Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	writeResponse(w, fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n\n", cmd, errType, oneLine(desc)))
}
