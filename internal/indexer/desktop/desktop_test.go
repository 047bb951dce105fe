package desktop

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parse", func() {
	var (
		input string
		entry *DesktopEntry
		err   error
	)

	JustBeforeEach(func() {
		entry, err = Parse(strings.NewReader(input))
	})

	Context("when Exec carries a placeholder", func() {
		BeforeEach(func() {
			input = "[Desktop Entry]\nName=My App\nExec=myapp %U --flag\n"
		})

		It("should strip the placeholder and the extra space", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Name).To(Equal("My App"))
			Expect(entry.Exec).To(Equal("myapp --flag"))
		})
	})

	Context("when keys repeat", func() {
		BeforeEach(func() {
			input = `[Desktop Entry]
Name[de]=Dateien
Name=Files
Exec=nautilus --new-window %U
[Desktop Action new-window]
Name=New Window
Exec=nautilus --new-window
`
		})

		It("should keep the first Name and Exec", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Name).To(Equal("Files"))
			Expect(entry.Exec).To(Equal("nautilus --new-window"))
		})
	})

	Context("when Exec is missing", func() {
		BeforeEach(func() {
			input = "[Desktop Entry]\nName=Broken\n"
		})

		It("should report an incomplete entry", func() {
			Expect(err).To(MatchError(ErrIncomplete))
		})
	})

	Context("when Name is missing", func() {
		BeforeEach(func() {
			input = "[Desktop Entry]\nExec=thing\n"
		})

		It("should report an incomplete entry", func() {
			Expect(err).To(MatchError(ErrIncomplete))
		})
	})

	Context("when Exec has surrounding whitespace", func() {
		BeforeEach(func() {
			input = "Name = Term \nExec =   xterm   -e  %f  \n"
		})

		It("should trim it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Name).To(Equal("Term"))
			Expect(entry.Exec).To(Equal("xterm -e"))
		})
	})
})

var _ = Describe("CleanExec", func() {
	It("should remove every field code", func() {
		Expect(CleanExec("app %f %u %U %F %i %c %k")).To(Equal("app"))
	})

	It("should keep unrelated arguments", func() {
		Expect(CleanExec("  env FOO=1 app --x  ")).To(Equal("env FOO=1 app --x"))
	})

	It("should remove codes embedded in arguments", func() {
		Expect(CleanExec("app --file=%f")).To(Equal("app --file="))
	})

	It("should keep whitespace inside quoted arguments", func() {
		cleaned := CleanExec(`sh -c "echo  a" %F`)
		Expect(cleaned).To(Equal(`sh -c 'echo  a'`))
		Expect(shellwords.Parse(cleaned)).To(Equal([]string{"sh", "-c", "echo  a"}))
	})

	It("should unescape a literal percent sign", func() {
		Expect(CleanExec("app --ratio=100%%f %u")).To(Equal("app --ratio=100%f"))
		Expect(CleanExec("app 50%")).To(Equal("app 50%"))
	})

	It("should keep quotes inside arguments parseable", func() {
		cleaned := CleanExec(`app "it's here"`)
		Expect(shellwords.Parse(cleaned)).To(Equal([]string{"app", "it's here"}))
	})

	It("should fall back to whitespace splitting on unbalanced quotes", func() {
		Expect(CleanExec(`app "broken %f`)).To(Equal(`app '"broken'`))
	})
})

var _ = Describe("Source", func() {
	var (
		dataDir string
		entries []*DesktopEntry
		err     error
	)

	BeforeEach(func() {
		dataDir = GinkgoT().TempDir()
		apps := filepath.Join(dataDir, "applications")
		Expect(os.MkdirAll(filepath.Join(apps, "vendor"), 0755)).To(Succeed())

		Expect(os.WriteFile(filepath.Join(apps, "firefox.desktop"),
			[]byte("[Desktop Entry]\nName=Firefox\nExec=firefox %u\n"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(apps, "vendor", "tool.desktop"),
			[]byte("[Desktop Entry]\nName=Tool\nExec=tool\n"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(apps, "broken.desktop"),
			[]byte("[Desktop Entry]\nName=Broken\n"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(apps, "notes.txt"),
			[]byte("Name=Notes\nExec=notes\n"), 0644)).To(Succeed())
	})

	JustBeforeEach(func() {
		entries, err = Source{Dir: dataDir}.Scan(context.Background())
	})

	It("should parse every valid .desktop file", func() {
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, e := range entries {
			names = append(names, e.Name)
		}
		Expect(names).To(ConsistOf("Firefox", "Tool"))
	})

	It("should remember where each entry came from", func() {
		for _, e := range entries {
			Expect(e.Path).To(HavePrefix(filepath.Join(dataDir, "applications")))
		}
	})

	Context("when there is no applications directory", func() {
		BeforeEach(func() {
			dataDir = filepath.Join(dataDir, "elsewhere")
		})

		It("should fail", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
