package corrections

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-cam/internal/scanning"
)

var _ = Describe("Store", func() {
	var (
		dir   string
		path  string
		store *Store
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "corrections.txt")
		store = NewStore(path)
	})

	Describe("LoadAll", func() {
		It("starts empty when the file does not exist", func() {
			Expect(store.LoadAll()).To(Succeed())
			Expect(store.Rules()).To(BeEmpty())
			Expect(store.Text()).To(Equal(""))
		})

		It("reads one rule per line and skips blank lines", func() {
			Expect(os.WriteFile(path, []byte("rule one\n\nrule two\r\n"), 0644)).To(Succeed())

			Expect(store.LoadAll()).To(Succeed())
			Expect(store.Rules()).To(Equal([]string{"rule one", "rule two"}))
			Expect(store.Text()).To(Equal("rule one\nrule two"))
		})

		It("returns an error when the path is a directory", func() {
			store = NewStore(dir)
			Expect(store.LoadAll()).To(MatchError(ContainSubstring("reading corrections")))
		})
	})

	Describe("Add", func() {
		BeforeEach(func() {
			Expect(store.LoadAll()).To(Succeed())
		})

		It("appends to the file and the working set", func() {
			Expect(store.Add("rule one")).To(Succeed())
			Expect(store.Add("rule one")).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("rule one\nrule one\n"))
			Expect(store.Rules()).To(Equal([]string{"rule one", "rule one"}))
		})

		It("keeps the working set in step with the file for multi-line and blank text", func() {
			Expect(store.Add("one\ntwo")).To(Succeed())
			Expect(store.Add("")).To(Succeed())
			Expect(store.Add("  \r\n")).To(Succeed())
			Expect(store.Rules()).To(Equal([]string{"one", "two"}))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("one\ntwo\n"))

			Expect(store.Reload()).To(Succeed())
			Expect(store.Rules()).To(Equal([]string{"one", "two"}))
		})

		It("creates missing parent directories", func() {
			store = NewStore(filepath.Join(dir, "nested", "corrections.txt"))
			Expect(store.Add("rule")).To(Succeed())
			Expect(filepath.Join(dir, "nested", "corrections.txt")).To(BeAnExistingFile())
		})

		It("leaves the working set unchanged when the write fails", func() {
			store = NewStore(dir)
			Expect(store.Add("rule")).To(HaveOccurred())
			Expect(store.Rules()).To(BeEmpty())
		})
	})

	Describe("Reload", func() {
		BeforeEach(func() {
			Expect(store.Add("persisted")).To(Succeed())
		})

		It("discards memory-only additions", func() {
			store.AddUnsaved("unsaved")
			Expect(store.Text()).To(Equal("persisted\nunsaved"))

			Expect(store.Reload()).To(Succeed())
			Expect(store.Rules()).To(Equal([]string{"persisted"}))
		})

		It("picks up external edits", func() {
			Expect(os.WriteFile(path, []byte("edited\n"), 0644)).To(Succeed())
			Expect(store.Text()).To(Equal("persisted"))

			Expect(store.Reload()).To(Succeed())
			Expect(store.Text()).To(Equal("edited"))
		})
	})

	It("returns copies from Rules", func() {
		store.AddUnsaved("rule")
		rules := store.Rules()
		rules[0] = "changed"
		Expect(store.Rules()).To(Equal([]string{"rule"}))
	})

	When("feeding prompts", func() {
		var service *scanning.Service

		BeforeEach(func() {
			Expect(store.LoadAll()).To(Succeed())
			service = scanning.NewService(nil, store)
		})

		It("uses an added rule on the very next prompt without reloading", func() {
			Expect(service.BuildPrompt()).To(Equal(scanning.BuildPrompt("")))

			store.AddUnsaved(`When Vendor is "Wallmart", change it to "Walmart"`)
			Expect(service.BuildPrompt()).To(ContainSubstring(`When Vendor is "Wallmart", change it to "Walmart"`))

			Expect(store.Reload()).To(Succeed())
			Expect(service.BuildPrompt()).To(Equal(scanning.BuildPrompt("")))
		})
	})
})
