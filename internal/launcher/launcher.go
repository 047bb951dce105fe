package launcher

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/0xADE/ade-launch/internal/cache"
	"github.com/0xADE/ade-launch/internal/indexer"
	"github.com/0xADE/ade-launch/internal/recent"
)

// ErrNoHome is returned when the spawn working directory cannot be resolved.
var ErrNoHome = errors.New("cannot determine home directory")

// Kind classifies launch failures.
type Kind int

const (
	KindLock        Kind = iota // the recent list is held by another process
	KindPersistence             // the recent list could not be written
	KindSpawn                   // the command could not be started
)

func (k Kind) String() string {
	switch k {
	case KindLock:
		return "lock"
	case KindPersistence:
		return "persistence"
	case KindSpawn:
		return "spawn"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Launch.
type Error struct {
	Kind Kind
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("launch %s: %s: %v", e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Spawner starts a command line in dir without waiting for it.
type Spawner interface {
	Spawn(command, dir string) (pid int, err error)
}

// Launcher records a launch in the recent store and then spawns the entry.
type Launcher struct {
	store   *recent.Store
	spawner Spawner
	homeDir func() (string, error)
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithSpawner replaces the process spawner.
func WithSpawner(s Spawner) Option {
	return func(l *Launcher) { l.spawner = s }
}

// WithHomeDir replaces the working directory lookup.
func WithHomeDir(fn func() (string, error)) Option {
	return func(l *Launcher) { l.homeDir = fn }
}

// New returns a launcher writing to store.
func New(store *recent.Store, opts ...Option) *Launcher {
	l := &Launcher{
		store:   store,
		spawner: ExecSpawner{},
		homeDir: os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch commits entry to the recent list, persists it and spawns the
// command in the home directory. Each step is final: a spawn failure does
// not undo the recorded launch. Nothing is spawned if persisting fails.
func (l *Launcher) Launch(entry indexer.Entry) (int, error) {
	if _, err := l.store.Touch(entry.Name); err != nil {
		kind := KindPersistence
		if errors.Is(err, cache.ErrLocked) {
			kind = KindLock
		}
		log.Printf("[ERROR] Recording %s: %v", entry.Name, err)
		return 0, &Error{Kind: kind, Name: entry.Name, Err: err}
	}

	dir, err := l.homeDir()
	if err != nil || dir == "" {
		if err == nil {
			err = ErrNoHome
		} else {
			err = fmt.Errorf("%w: %v", ErrNoHome, err)
		}
		return 0, &Error{Kind: KindSpawn, Name: entry.Name, Err: err}
	}

	log.Printf("[DEBUG] Executing %q in %s", entry.Exec, dir)
	pid, err := l.spawner.Spawn(entry.Exec, dir)
	if err != nil {
		log.Printf("[ERROR] Failed to start %s: %v", entry.Name, err)
		return 0, &Error{Kind: KindSpawn, Name: entry.Name, Err: err}
	}

	log.Printf("[DEBUG] Command started successfully with PID: %d", pid)
	return pid, nil
}
