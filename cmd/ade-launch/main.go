// Command ade-launch is a single-shot terminal launcher: type to search,
// press Enter on an unchanged query to launch the first result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/0xADE/ade-launch/internal/app"
	"github.com/0xADE/ade-launch/internal/config"
	"github.com/0xADE/ade-launch/internal/indexer"
	"github.com/0xADE/ade-launch/internal/search"
	"github.com/0xADE/ade-launch/internal/session"
)

const (
	historyName  = "launch.history"
	defaultWidth = 80
)

func main() {
	var (
		rebuild = flag.Bool("rebuild", false, "rediscover entries instead of loading the index snapshot")
		limit   = flag.IntP("limit", "n", 0, "maximum number of results shown")
		verbose = flag.BoolP("verbose", "v", false, "log debug output to stderr")
	)
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	cfg.SetNoCache(*rebuild)
	if *limit > 0 {
		cfg.SetResultLimit(*limit)
	}

	a, err := app.Open(context.Background(), cfg, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	p := &prompt{app: a, sess: a.NewSession()}
	out, err := p.run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if out.Err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", out.Err)
		os.Exit(1)
	}
}

type prompt struct {
	app   *app.App
	sess  *session.Session
	liner *liner.State
}

func (p *prompt) historyFile() string {
	return filepath.Join(p.app.Config.CacheDir(), historyName)
}

// run reads queries until a launch or cancel ends the session.
func (p *prompt) run() (session.Outcome, error) {
	p.liner = liner.NewLiner()
	defer p.liner.Close()

	p.liner.SetCtrlCAborts(true)
	p.liner.SetCompleter(p.completer)

	if f, err := os.Open(p.historyFile()); err == nil {
		p.liner.ReadHistory(f)
		f.Close()
	}
	defer p.saveHistory()

	p.print()
	for {
		line, err := p.liner.PromptWithSuggestion("launch> ", p.sess.Query(), -1)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return p.sess.Cancel(), nil
			}
			return session.Outcome{}, fmt.Errorf("reading input: %w", err)
		}

		out, done := p.handle(line)
		if done {
			return out, nil
		}
		if out.Err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", out.Err)
		}
		p.print()
	}
}

// handle reacts to one submitted line. "#N" launches result N; repeating
// the current query launches the result under the cursor; anything else is
// a new query.
func (p *prompt) handle(line string) (session.Outcome, bool) {
	if rest, ok := strings.CutPrefix(line, "#"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			results := p.sess.Results()
			if n < 0 || n >= len(results) {
				return session.Outcome{Err: fmt.Errorf("no result #%d", n)}, false
			}
			out := p.sess.Select(results[n])
			return out, out.Quit
		}
	}

	if line == p.sess.Query() {
		out := p.sess.Submit()
		if out.Quit && out.Entry.Name != "" {
			p.liner.AppendHistory(out.Entry.Name)
		}
		if errors.Is(out.Err, session.ErrNoSelection) {
			return out, false
		}
		return out, out.Quit
	}

	p.sess.QueryChanged(line)
	if entry, ok := p.sess.Lookup(line); ok {
		for i, r := range p.sess.Results() {
			if r == entry {
				p.sess.Move(i)
				break
			}
		}
	}
	return session.Outcome{}, false
}

func (p *prompt) print() {
	results := p.sess.Results()
	if len(results) == 0 {
		fmt.Println("  (no matches)")
		return
	}

	width := defaultWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	cursor := p.sess.Cursor()
	for i, entry := range results {
		mark := " "
		if i == cursor {
			mark = ">"
		}
		prefix := fmt.Sprintf("%s #%d ", mark, i)
		fmt.Println(prefix + runewidth.Truncate(entry.Name, width-len(prefix)-1, "…"))
	}
}

// completer offers the names matching the typed text without touching the
// session.
func (p *prompt) completer(line string) []string {
	matches := search.Search(p.app.Index, line, search.Options{
		Limit:    p.app.Config.Limit(),
		Bucketed: p.app.Config.Bucketed(),
	})
	return names(matches)
}

func names(entries []indexer.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func (p *prompt) saveHistory() {
	if err := os.MkdirAll(p.app.Config.CacheDir(), 0750); err != nil {
		return
	}
	if f, err := os.Create(p.historyFile()); err == nil {
		p.liner.WriteHistory(f)
		f.Close()
	}
}
