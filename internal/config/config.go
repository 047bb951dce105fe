package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultRC          = "~/.config/ade/launch.toml"
	defaultResultLimit = 9
	defaultRecentSize  = 10
)

// Source kinds accepted in ADE_LAUNCH_SOURCES.
const (
	SourceDesktop = "desktop"
	SourceExec    = "exec"
)

// Config holds the static environment settings and the dynamic rc settings.
// The rc part is reloaded by Watch; everything else is fixed at Load.
type Config struct {
	static  env
	dynamic rc
	noCache bool
}

type (
	env struct {
		Sources     []string `envconfig:"ADE_LAUNCH_SOURCES" default:"desktop"`
		ExecDirs    []string `envconfig:"ADE_LAUNCH_EXEC_DIRS" default:"/usr/bin"`
		DataHome    string   `envconfig:"XDG_DATA_HOME"`
		DataDirs    string   `envconfig:"XDG_DATA_DIRS"`
		CacheDir    string   `envconfig:"ADE_LAUNCH_CACHE_DIR"`
		UnixSocket  string   `envconfig:"ADE_LAUNCH_SOCK"`
		Workers     int      `envconfig:"ADE_LAUNCH_WORKERS" default:"0"`
		ResultLimit int      `envconfig:"ADE_LAUNCH_RESULT_LIMIT" default:"9"`
		RecentSize  int      `envconfig:"ADE_LAUNCH_RECENT_SIZE" default:"10"`
		Bucketed    bool     `envconfig:"ADE_LAUNCH_BUCKETED" default:"false"`
		RC          string   `envconfig:"ADE_LAUNCH_RC"`
	}
	rc struct {
		sync.RWMutex
		path string
		file rcFile
	}
	rcFile struct {
		ResultLimit   int      `toml:"result_limit"`
		Bucketed      *bool    `toml:"bucketed"`
		ExtraExecDirs []string `toml:"extra_exec_dirs"`
		ExtraDataDirs []string `toml:"extra_data_dirs"`
	}
)

// Load reads the environment and the rc file.
func Load() (*Config, error) {
	c := &Config{}

	if err := envconfig.Process("", &c.static); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if c.static.UnixSocket == "" {
		currentUser, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("resolving current user: %w", err)
		}
		c.static.UnixSocket = fmt.Sprintf("/tmp/ade-%s/launchd", currentUser.Uid)
	}
	c.static.UnixSocket = expandPath(c.static.UnixSocket)

	if c.static.CacheDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolving cache directory: %w", err)
		}
		c.static.CacheDir = filepath.Join(cacheDir, "ade")
	}
	c.static.CacheDir = expandPath(c.static.CacheDir)

	rcPath := c.static.RC
	if rcPath == "" {
		rcPath = defaultRC
	}
	c.dynamic.path = expandPath(rcPath)

	if err := c.loadRC(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) loadRC() error {
	var file rcFile
	_, err := toml.DecodeFile(c.dynamic.path, &file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", c.dynamic.path, err)
	}

	for i, dir := range file.ExtraExecDirs {
		file.ExtraExecDirs[i] = expandPath(dir)
	}
	for i, dir := range file.ExtraDataDirs {
		file.ExtraDataDirs[i] = expandPath(dir)
	}

	c.dynamic.Lock()
	c.dynamic.file = file
	c.dynamic.Unlock()

	return nil
}

// Watch reloads the rc file whenever it is written or created, until ctx is
// done. The rc directory is created if it does not exist yet.
func (c *Config) Watch(ctx context.Context) error {
	rcDir := filepath.Dir(c.dynamic.path)
	if err := os.MkdirAll(rcDir, 0750); err != nil {
		return fmt.Errorf("creating %s: %w", rcDir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Watch the directory, editors replace the file on save
	if err := watcher.Add(rcDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", rcDir, err)
	}

	go c.watchLoop(ctx, watcher)
	return nil
}

func (c *Config) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != c.dynamic.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.loadRC(); err != nil {
				log.Printf("[ERROR] Reloading config: %v", err)
				continue
			}
			log.Printf("[DEBUG] Reloaded %s", c.dynamic.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[ERROR] Config watcher: %v", err)
		}
	}
}

// SetNoCache makes the next startup ignore the index snapshot.
func (c *Config) SetNoCache(v bool) {
	c.noCache = v
}

// NoCache reports whether the index snapshot should be ignored.
func (c *Config) NoCache() bool {
	return c.noCache
}

// SetResultLimit overrides the result limit from the command line.
func (c *Config) SetResultLimit(n int) {
	c.dynamic.Lock()
	defer c.dynamic.Unlock()
	c.dynamic.file.ResultLimit = n
}

// Sources returns the enabled source kinds, lower-cased.
func (c *Config) Sources() []string {
	kinds := make([]string, 0, len(c.static.Sources))
	for _, kind := range c.static.Sources {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind != "" {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// ExecDirs returns the executable directories to scan.
func (c *Config) ExecDirs() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	dirs := make([]string, 0, len(c.static.ExecDirs)+len(c.dynamic.file.ExtraExecDirs))
	for _, dir := range c.static.ExecDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, expandPath(dir))
		}
	}
	return append(dirs, c.dynamic.file.ExtraExecDirs...)
}

// DataDirs returns the XDG data base directories, user directory first.
func (c *Config) DataDirs() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	var dirs []string
	if c.static.DataHome != "" {
		dirs = append(dirs, expandPath(c.static.DataHome))
	} else if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share"))
	}

	system := c.static.DataDirs
	if system == "" {
		system = "/usr/local/share:/usr/share"
	}
	for _, dir := range strings.Split(system, ":") {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return append(dirs, c.dynamic.file.ExtraDataDirs...)
}

// CacheDir returns the directory holding the index snapshot and recent db.
func (c *Config) CacheDir() string {
	return c.static.CacheDir
}

// UnixSocket returns the daemon socket path.
func (c *Config) UnixSocket() string {
	return c.static.UnixSocket
}

// Workers returns the discovery pool size.
func (c *Config) Workers() int {
	if c.static.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.static.Workers
}

// Limit returns the maximum number of search results. The rc file wins over
// the environment.
func (c *Config) Limit() int {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	if c.dynamic.file.ResultLimit > 0 {
		return c.dynamic.file.ResultLimit
	}
	if c.static.ResultLimit > 0 {
		return c.static.ResultLimit
	}
	return defaultResultLimit
}

// Bucketed reports whether search narrows candidates by first letter.
func (c *Config) Bucketed() bool {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	if c.dynamic.file.Bucketed != nil {
		return *c.dynamic.file.Bucketed
	}
	return c.static.Bucketed
}

// RecentSize returns the recency store capacity.
func (c *Config) RecentSize() int {
	if c.static.RecentSize <= 0 {
		return defaultRecentSize
	}
	return c.static.RecentSize
}

// RCPath returns the expanded rc file path.
func (c *Config) RCPath() string {
	return c.dynamic.path
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
