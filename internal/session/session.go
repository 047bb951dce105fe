// Package session is the boundary a presentation layer drives: it turns
// query edits, submits, selections and cancels into searches and at most one
// launch, and tells the host when to exit.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/0xADE/ade-launch/internal/indexer"
	"github.com/0xADE/ade-launch/internal/recent"
	"github.com/0xADE/ade-launch/internal/search"
)

// Session errors.
var (
	ErrNoSelection = errors.New("nothing selected")
	ErrTerminated  = errors.New("session already launched or cancelled")
)

// State of a session.
type State int

const (
	Idle State = iota
	Searching
	Selecting
	Launching
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Selecting:
		return "selecting"
	case Launching:
		return "launching"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Settings are read on every query so they can change while a session runs.
type Settings interface {
	Limit() int
	Bucketed() bool
}

// Launcher starts an entry.
type Launcher interface {
	Launch(entry indexer.Entry) (pid int, err error)
}

// Outcome reports what a submit, select or cancel did.
type Outcome struct {
	Entry indexer.Entry // entry launched or attempted
	PID   int
	Quit  bool  // the host should exit
	Err   error // shown inline, the session stays usable unless Quit
}

// Session holds the query state of one launcher interaction.
type Session struct {
	idx      *indexer.Index
	store    *recent.Store
	launcher Launcher
	settings Settings

	mu      sync.Mutex
	state   State
	query   string
	results []indexer.Entry
	cursor  int
}

// New returns an idle session showing the recent entries.
func New(idx *indexer.Index, store *recent.Store, l Launcher, settings Settings) *Session {
	s := &Session{
		idx:      idx,
		store:    store,
		launcher: l,
		settings: settings,
	}
	s.results = s.recent()
	return s
}

func (s *Session) recent() []indexer.Entry {
	return search.Recent(s.idx, s.store.Snapshot(), s.settings.Limit())
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Query returns the current query text.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Results returns the list currently shown.
func (s *Session) Results() []indexer.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]indexer.Entry(nil), s.results...)
}

// Cursor returns the position Submit launches.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// QueryChanged recomputes the results for text. An empty text shows the
// recently used entries.
func (s *Session) QueryChanged(text string) []indexer.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state >= Launching {
		return append([]indexer.Entry(nil), s.results...)
	}

	s.query = text
	s.cursor = 0
	if text == "" {
		s.results = s.recent()
	} else {
		s.results = search.Search(s.idx, text, search.Options{
			Limit:    s.settings.Limit(),
			Bucketed: s.settings.Bucketed(),
		})
	}
	s.state = Searching

	return append([]indexer.Entry(nil), s.results...)
}

// Lookup returns the first indexed entry named name.
func (s *Session) Lookup(name string) (indexer.Entry, bool) {
	return s.idx.Lookup(name)
}

// Move places the cursor on result i. It reports false if i is out of range.
func (s *Session) Move(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state >= Launching || i < 0 || i >= len(s.results) {
		return false
	}
	s.cursor = i
	s.state = Selecting
	return true
}

// Submit launches the result under the cursor. The host is told to quit
// whether or not the launch worked.
func (s *Session) Submit() Outcome {
	s.mu.Lock()
	if s.state >= Launching {
		s.mu.Unlock()
		return Outcome{Err: ErrTerminated}
	}
	if len(s.results) == 0 {
		s.mu.Unlock()
		return Outcome{Err: ErrNoSelection}
	}
	entry := s.results[s.cursor]
	s.mu.Unlock()

	return s.launch(entry, true)
}

// Select launches entry, as when it is clicked. The host is told to quit only
// if the launch worked; otherwise the session goes back to searching.
func (s *Session) Select(entry indexer.Entry) Outcome {
	return s.launch(entry, false)
}

func (s *Session) launch(entry indexer.Entry, quitOnFailure bool) Outcome {
	s.mu.Lock()
	if s.state >= Launching {
		s.mu.Unlock()
		return Outcome{Err: ErrTerminated}
	}
	s.state = Launching
	s.mu.Unlock()

	log.Printf("[DEBUG] Launching %s", entry.Name)
	pid, err := s.launcher.Launch(entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := Outcome{Entry: entry, PID: pid, Err: err}
	if err == nil || quitOnFailure {
		s.state = Terminated
		out.Quit = true
	} else {
		s.state = Searching
	}
	return out
}

// Cancel ends the session without launching.
func (s *Session) Cancel() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Launching {
		return Outcome{Err: ErrTerminated}
	}
	s.state = Terminated
	return Outcome{Quit: true}
}
