package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/0xADE/ade-launch/internal/indexer"
	"github.com/0xADE/ade-launch/internal/launcher"
	"github.com/0xADE/ade-launch/internal/recent"
	"github.com/0xADE/ade-launch/internal/session"
)

type fixedSettings struct{}

func (fixedSettings) Limit() int     { return 9 }
func (fixedSettings) Bucketed() bool { return false }

type fakeLauncher struct {
	store *recent.Store
	err   error
}

func (f *fakeLauncher) Launch(entry indexer.Entry) (int, error) {
	if _, err := f.store.Touch(entry.Name); err != nil {
		return 0, err
	}
	if f.err != nil {
		return 0, &launcher.Error{Kind: launcher.KindSpawn, Name: entry.Name, Err: f.err}
	}
	return 4242, nil
}

type fakeSessions struct {
	idx      *indexer.Index
	store    *recent.Store
	launcher *fakeLauncher
}

func (f *fakeSessions) NewSession() *session.Session {
	return session.New(f.idx, f.store, f.launcher, fixedSettings{})
}

// readResponse returns one reply without its header line.
func readResponse(r *bufio.Reader) (string, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if header != "TXT01\n" {
		return "", errors.New("bad header: " + header)
	}

	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return b.String(), err
		}
		if line == "\n" {
			return b.String(), nil
		}
		b.WriteString(line)
	}
}

var _ = Describe("Server", func() {
	var (
		sessions   *fakeSessions
		srv        *Server
		clientConn net.Conn
		serverConn net.Conn
		reader     *bufio.Reader
		done       chan struct{}
	)

	send := func(request string) string {
		_, err := io.WriteString(clientConn, request)
		Expect(err).NotTo(HaveOccurred())
		response, err := readResponse(reader)
		Expect(err).NotTo(HaveOccurred())
		return response
	}

	BeforeEach(func() {
		idx := indexer.NewIndex([]indexer.Entry{
			{Name: "Firefox", Exec: "firefox"},
			{Name: "Files", Exec: "nautilus"},
			{Name: "GIMP", Exec: "gimp"},
		})
		store := recent.NewStore(recent.DefaultCapacity, []string{"GIMP"}, nil)
		sessions = &fakeSessions{idx: idx, store: store, launcher: &fakeLauncher{store: store}}
		srv = &Server{sessions: sessions}

		clientConn, serverConn = net.Pipe()
		reader = bufio.NewReader(clientConn)
		done = make(chan struct{})
		go func() {
			defer close(done)
			srv.handleConnection(serverConn)
		}()

		_, err := io.WriteString(clientConn, "TXT01\n")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		clientConn.Close()
		Eventually(done).Should(BeClosed())
	})

	It("should list matches for a query", func() {
		response := send("\"fi\nquery\n")
		Expect(response).To(Equal("cmd: query\nstatus: 0\nlist-len: 2\nbody:\n0 Files\n1 Firefox\n"))
	})

	It("should list nothing for an unmatched query", func() {
		response := send("\"zzz\nquery\n")
		Expect(response).To(Equal("cmd: query\nstatus: 0\nlist-len: 0\n"))
	})

	It("should list recent entries", func() {
		response := send("recent\n")
		Expect(response).To(ContainSubstring("body:\n0 GIMP\n"))
	})

	It("should reject a query without text", func() {
		response := send("query\n")
		Expect(response).To(ContainSubstring("error-cmd: query"))
		Expect(response).To(ContainSubstring("error: missing parameter"))
	})

	It("should report parse errors and keep going", func() {
		response := send("bogus\n")
		Expect(response).To(ContainSubstring("error-cmd: parser"))

		response = send("recent\n")
		Expect(response).To(ContainSubstring("status: 0"))
	})

	It("should drop the connection when reading fails", func() {
		Expect(serverConn.SetReadDeadline(time.Now())).To(Succeed())
		Eventually(done).Should(BeClosed())

		_, err := reader.ReadString('\n')
		Expect(err).To(MatchError(io.EOF))
	})

	It("should move and submit the selection", func() {
		send("\"fi\nquery\n")
		Expect(send("1\nmove\n")).To(ContainSubstring("cursor: 1"))

		response := send("submit\n")
		Expect(response).To(ContainSubstring("name: Firefox"))
		Expect(response).To(ContainSubstring("pid: 4242"))
		Expect(response).To(ContainSubstring("quit: 1"))
		Expect(sessions.store.Snapshot()).To(Equal([]string{"Firefox", "GIMP"}))

		Eventually(done).Should(BeClosed())
	})

	It("should refuse moves out of range", func() {
		response := send("7\nmove\n")
		Expect(response).To(ContainSubstring("error: position not found"))
	})

	It("should run by position", func() {
		send("\"fi\nquery\n")
		Expect(send("1\nrun\n")).To(ContainSubstring("name: Firefox"))
		Eventually(done).Should(BeClosed())
	})

	It("should run by name outside the shown results", func() {
		send("\"fi\nquery\n")
		Expect(send("\"GIMP\nrun\n")).To(ContainSubstring("name: GIMP"))
		Eventually(done).Should(BeClosed())
	})

	It("should report unknown names", func() {
		response := send("\"Nope\nrun\n")
		Expect(response).To(ContainSubstring("error: entry not found"))
	})

	It("should keep the session open after a failed run", func() {
		sessions.launcher.err = errors.New("no such file")

		response := send("0\nrun\n")
		Expect(response).To(ContainSubstring("error-cmd: run"))
		Expect(response).To(ContainSubstring("error: spawn"))
		Expect(response).To(ContainSubstring("quit: 0"))

		Expect(send("recent\n")).To(ContainSubstring("status: 0"))
	})

	It("should end the session after a failed submit", func() {
		sessions.launcher.err = errors.New("no such file")

		response := send("submit\n")
		Expect(response).To(ContainSubstring("error: spawn"))
		Expect(response).To(ContainSubstring("quit: 1"))
		Eventually(done).Should(BeClosed())
	})

	It("should report an empty selection", func() {
		send("\"zzz\nquery\n")
		response := send("submit\n")
		Expect(response).To(ContainSubstring("error: no selection"))
		Expect(response).To(ContainSubstring("quit: 0"))
	})

	It("should cancel", func() {
		Expect(send("cancel\n")).To(Equal("cmd: cancel\nstatus: 0\nquit: 1\n"))
		Eventually(done).Should(BeClosed())
	})
})

var _ = Describe("New", func() {
	It("should replace a stale socket and serve until stopped", func() {
		dir, err := os.MkdirTemp("", "ade")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		socketPath := filepath.Join(dir, "run", "launchd")
		Expect(os.MkdirAll(filepath.Dir(socketPath), 0700)).To(Succeed())
		Expect(os.WriteFile(socketPath, nil, 0600)).To(Succeed())

		idx := indexer.NewIndex([]indexer.Entry{{Name: "Firefox", Exec: "firefox"}})
		store := recent.NewStore(recent.DefaultCapacity, nil, nil)
		srv, err := New(socketPath, &fakeSessions{idx: idx, store: store, launcher: &fakeLauncher{store: store}})
		Expect(err).NotTo(HaveOccurred())

		served := make(chan error, 1)
		go func() { served <- srv.Start(context.Background()) }()

		conn, err := net.Dial("unix", socketPath)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		_, err = io.WriteString(conn, "TXT01\n\"fire\nquery\n")
		Expect(err).NotTo(HaveOccurred())
		response, err := readResponse(bufio.NewReader(conn))
		Expect(err).NotTo(HaveOccurred())
		Expect(response).To(ContainSubstring("0 Firefox"))

		Expect(srv.Stop()).To(Succeed())
		Eventually(served).Should(Receive(BeNil()))
	})
})
