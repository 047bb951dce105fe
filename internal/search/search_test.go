package search

import (
	"fmt"
	"math/rand"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/0xADE/ade-launch/internal/indexer"
)

func names(entries []indexer.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

var _ = Describe("Search", func() {
	var idx *indexer.Index

	BeforeEach(func() {
		idx = indexer.NewIndex([]indexer.Entry{
			{Name: "Firefox", Exec: "firefox"},
			{Name: "Files", Exec: "nautilus"},
			{Name: "Finder-like", Exec: "thunar"},
		})
	})

	It("should sort matches by folded name", func() {
		Expect(names(Search(idx, "fi", Options{}))).To(Equal([]string{"Files", "Finder-like", "Firefox"}))
	})

	It("should ignore case in the query", func() {
		Expect(names(Search(idx, "FIRE", Options{}))).To(Equal([]string{"Firefox"}))
	})

	It("should match substrings anywhere", func() {
		Expect(names(Search(idx, "like", Options{}))).To(Equal([]string{"Finder-like"}))
	})

	It("should return nothing for an empty query", func() {
		Expect(Search(idx, "", Options{})).To(BeEmpty())
	})

	It("should return nothing without matches", func() {
		Expect(Search(idx, "zzz", Options{})).To(BeEmpty())
	})

	It("should cut results to the limit", func() {
		Expect(names(Search(idx, "f", Options{Limit: 2}))).To(Equal([]string{"Files", "Finder-like"}))
	})

	It("should return nothing from an empty index", func() {
		empty := indexer.NewIndex(nil)
		for _, q := range []string{"a", "fi", " "} {
			Expect(Search(empty, q, Options{})).To(BeEmpty())
		}
	})

	It("should keep discovery order for equal names", func() {
		dup := indexer.NewIndex([]indexer.Entry{
			{Name: "Files", Exec: "nautilus"},
			{Name: "files", Exec: "thunar"},
			{Name: "Files", Exec: "pcmanfm"},
		})
		Expect(Search(dup, "file", Options{})).To(Equal([]indexer.Entry{
			{Name: "Files", Exec: "nautilus"},
			{Name: "files", Exec: "thunar"},
			{Name: "Files", Exec: "pcmanfm"},
		}))
	})

	Context("when bucketed", func() {
		BeforeEach(func() {
			idx = indexer.NewIndex([]indexer.Entry{
				{Name: "Firefox", Exec: "firefox"},
				{Name: "Wifi Settings", Exec: "nm-connection-editor"},
				{Name: "fish", Exec: "fish"},
			})
		})

		It("should only consider names starting with the query's first letter", func() {
			Expect(names(Search(idx, "fi", Options{Bucketed: true}))).To(Equal([]string{"Firefox", "fish"}))
			Expect(names(Search(idx, "fi", Options{}))).To(ContainElement("Wifi Settings"))
		})
	})

	It("should honor the limit and containment on random data", func() {
		rng := rand.New(rand.NewSource(7))
		letters := "abcdeABCDE"
		var entries []indexer.Entry
		for i := 0; i < 300; i++ {
			var b strings.Builder
			for j := 0; j < 1+rng.Intn(8); j++ {
				b.WriteByte(letters[rng.Intn(len(letters))])
			}
			entries = append(entries, indexer.Entry{Name: b.String(), Exec: fmt.Sprint(i)})
		}
		big := indexer.NewIndex(entries)

		for i := 0; i < 100; i++ {
			q := string(letters[rng.Intn(len(letters))]) + string(letters[rng.Intn(len(letters))])
			limit := 1 + rng.Intn(12)
			got := Search(big, q, Options{Limit: limit})
			Expect(len(got)).To(BeNumerically("<=", limit))
			for _, e := range got {
				Expect(strings.ToLower(e.Name)).To(ContainSubstring(strings.ToLower(q)))
			}
			Expect(Search(big, q, Options{Limit: limit})).To(Equal(got))
		}
	})
})

var _ = Describe("Recent", func() {
	var idx *indexer.Index

	BeforeEach(func() {
		idx = indexer.NewIndex([]indexer.Entry{
			{Name: "a", Exec: "a"},
			{Name: "b", Exec: "b"},
			{Name: "c", Exec: "c"},
		})
	})

	It("should keep the recency order", func() {
		Expect(names(Recent(idx, []string{"c", "a"}, 5))).To(Equal([]string{"c", "a"}))
	})

	It("should drop names missing from the index", func() {
		Expect(names(Recent(idx, []string{"gone", "b"}, 5))).To(Equal([]string{"b"}))
	})

	It("should cap at the limit", func() {
		Expect(names(Recent(idx, []string{"a", "b", "c"}, 2))).To(Equal([]string{"a", "b"}))
	})

	It("should be empty without history", func() {
		Expect(Recent(idx, nil, 0)).To(BeEmpty())
	})
})
