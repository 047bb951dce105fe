// Package search ranks index entries against a query.
package search

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/0xADE/ade-launch/internal/indexer"
)

// DefaultLimit caps results when no limit is given.
const DefaultLimit = 9

// Options tune a search.
type Options struct {
	Limit    int  // maximum results, DefaultLimit if <= 0
	Bucketed bool // only scan entries sharing the query's first letter
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Search returns the entries whose name contains query, ignoring case,
// ordered by folded name and cut to the limit. An empty query matches
// nothing. The result depends only on the arguments.
func Search(idx *indexer.Index, query string, opts Options) []indexer.Entry {
	folded := indexer.Fold(query)
	if folded == "" || idx == nil {
		return nil
	}

	var candidates []indexer.Candidate
	if opts.Bucketed {
		first, _ := utf8.DecodeRuneInString(folded)
		candidates = idx.Bucket(first)
	} else {
		candidates = idx.Candidates()
	}

	matches := candidates[:0]
	for _, c := range candidates {
		if strings.Contains(c.Folded, folded) {
			matches = append(matches, c)
		}
	}

	// Stable, so equal names keep discovery order
	slices.SortStableFunc(matches, func(a, b indexer.Candidate) int {
		return strings.Compare(a.Folded, b.Folded)
	})

	limit := min(opts.limit(), len(matches))
	out := make([]indexer.Entry, limit)
	for i := range out {
		out[i] = matches[i].Entry
	}
	return out
}

// Recent maps recently used names back to entries, most recent first. Names
// no longer in the index are skipped.
func Recent(idx *indexer.Index, ids []string, limit int) []indexer.Entry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if idx == nil {
		return nil
	}

	out := make([]indexer.Entry, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if entry, ok := idx.Lookup(id); ok {
			out = append(out, entry)
		}
	}
	return out
}
