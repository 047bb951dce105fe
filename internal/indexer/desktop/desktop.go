package desktop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ErrIncomplete is returned for files lacking a Name or an Exec key.
var ErrIncomplete = errors.New("missing Name or Exec")

// fieldCodes are the letters of the Exec placeholders removed before
// launching: %f %u %U %F %i %c %k.
const fieldCodes = "fuUFick"

const shellSpecial = " \t\n'\"\\;&|<>`$"

// DesktopEntry represents a parsed .desktop file
type DesktopEntry struct {
	Name string // First Name= value
	Exec string // First Exec= value with field codes removed
	Path string // Path to .desktop file
}

// Source discovers the .desktop files below <Dir>/applications.
type Source struct {
	Dir string // XDG data base directory, e.g. /usr/share
}

// Name identifies the source in logs
func (s Source) Name() string {
	return "desktop:" + s.Dir
}

// Scan walks the applications directory and parses every .desktop file in
// it. Unreadable subdirectories and files that fail to parse are skipped; an
// unreadable applications directory is an error.
func (s Source) Scan(ctx context.Context) ([]*DesktopEntry, error) {
	root := filepath.Join(s.Dir, "applications")
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var result []*DesktopEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !strings.HasSuffix(path, ".desktop") {
			return nil
		}

		entry, err := ParseFile(path)
		if err != nil {
			// Skip invalid files
			return nil
		}

		result = append(result, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return result, nil
}

// ParseFile parses a single .desktop file
func ParseFile(path string) (*DesktopEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entry, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	entry.Path = path

	return entry, nil
}

// Parse reads key=value lines and keeps the first Name and the first Exec.
// Reading stops as soon as both are known.
func Parse(r io.Reader) (*DesktopEntry, error) {
	entry := &DesktopEntry{}
	var haveName, haveExec bool

	scanner := bufio.NewScanner(r)
	for !(haveName && haveExec) && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch strings.TrimSpace(key) {
		case "Name":
			if !haveName {
				entry.Name = strings.TrimSpace(value)
				haveName = true
			}
		case "Exec":
			if !haveExec {
				entry.Exec = CleanExec(value)
				haveExec = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if entry.Name == "" || entry.Exec == "" {
		return nil, ErrIncomplete
	}

	return entry, nil
}

// CleanExec removes field codes from an Exec value and unescapes "%%".
// Quoted arguments survive intact; arguments that consisted only of field
// codes are dropped.
func CleanExec(exec string) string {
	words, err := shellwords.Parse(exec)
	if err != nil {
		// Unbalanced quotes: fall back to plain whitespace splitting
		words = strings.Fields(exec)
	}

	kept := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := stripFieldCodes(word)
		if cleaned == "" && word != "" {
			continue
		}
		kept = append(kept, quoteWord(cleaned))
	}
	return strings.Join(kept, " ")
}

func stripFieldCodes(word string) string {
	if !strings.Contains(word, "%") {
		return word
	}
	var b strings.Builder
	for i := 0; i < len(word); i++ {
		if word[i] == '%' && i+1 < len(word) {
			switch next := word[i+1]; {
			case next == '%':
				b.WriteByte('%')
				i++
				continue
			case strings.IndexByte(fieldCodes, next) >= 0:
				i++
				continue
			}
		}
		b.WriteByte(word[i])
	}
	return b.String()
}

// quoteWord single-quotes words that would not split back into one argument.
func quoteWord(word string) string {
	if word == "" {
		return "''"
	}
	if !strings.ContainsAny(word, shellSpecial) {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}
