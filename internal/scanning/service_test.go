package scanning

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockAdapter is a mock implementation of Adapter
type mockAdapter struct {
	text     string
	err      error
	prompts  []string
	images   [][]byte
	closeErr error
	closed   bool
}

func (m *mockAdapter) AnalyzeReceipt(ctx context.Context, imageData []byte, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.images = append(m.images, imageData)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockAdapter) Close() error {
	m.closed = true
	return m.closeErr
}

// staticCorrections is a CorrectionSource with fixed text
type staticCorrections struct {
	text string
}

func (s *staticCorrections) Text() string {
	return s.text
}

var _ = Describe("BuildPrompt", func() {
	It("returns the bare prompt when there are no corrections", func() {
		Expect(BuildPrompt("")).To(Equal(receiptPrompt))
		Expect(BuildPrompt("  \n ")).To(Equal(receiptPrompt))
	})

	It("appends the corrections under the preamble", func() {
		rules := `When Vendor is "Wallmart", change it to "Walmart"`
		prompt := BuildPrompt(rules)
		Expect(prompt).To(HavePrefix(receiptPrompt))
		Expect(prompt).To(HaveSuffix(correctionPreamble + "\n" + rules))
	})
})

var _ = Describe("Service", func() {
	var (
		adapter     *mockAdapter
		corrections *staticCorrections
		service     *Service
	)

	BeforeEach(func() {
		adapter = &mockAdapter{text: "```json\n{\"vendor\":\"Acme\",\"total_amount\":\"9.99\"}\n```"}
		corrections = &staticCorrections{}
		service = NewService(adapter, corrections)
	})

	Describe("AnalyzeReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		JustBeforeEach(func() {
			receipt, err = service.AnalyzeReceipt(context.Background(), []byte("jpeg bytes"))
		})

		When("the adapter answers with valid JSON", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the parsed receipt", func() {
				Expect(receipt.Vendor).To(Equal("Acme"))
				Expect(receipt.TotalAmount).To(Equal("9.99"))
				Expect(receipt.Invoice).To(Equal(NotFound))
			})

			It("should send the image bytes", func() {
				Expect(adapter.images).To(Equal([][]byte{[]byte("jpeg bytes")}))
			})

			It("should send the bare prompt", func() {
				Expect(adapter.prompts).To(ConsistOf(receiptPrompt))
			})
		})

		When("corrections exist", func() {
			BeforeEach(func() {
				corrections.text = `When Vendor is "Wallmart", change it to "Walmart"`
			})

			It("should merge them into the prompt", func() {
				Expect(adapter.prompts).To(HaveLen(1))
				Expect(adapter.prompts[0]).To(ContainSubstring(correctionPreamble))
				Expect(adapter.prompts[0]).To(HaveSuffix(corrections.text))
			})
		})

		When("the adapter fails with an untyped error", func() {
			var setupErr error

			BeforeEach(func() {
				setupErr = errors.New("connection refused")
				adapter.err = setupErr
			})

			It("returns a TransportError wrapping it", func() {
				var te *TransportError
				Expect(errors.As(err, &te)).To(BeTrue())
				Expect(err).To(MatchError(setupErr))
			})

			It("returns no receipt", func() {
				Expect(receipt).To(BeNil())
			})
		})

		When("the adapter fails with a TransportError", func() {
			var setupErr *TransportError

			BeforeEach(func() {
				setupErr = &TransportError{Vendor: VendorOpenAI, StatusCode: 500, Body: "boom"}
				adapter.err = setupErr
			})

			It("returns it unchanged", func() {
				Expect(err).To(BeIdenticalTo(setupErr))
			})
		})

		When("the adapter answers with prose", func() {
			BeforeEach(func() {
				adapter.text = "I could not read this receipt."
			})

			It("returns a ParseError", func() {
				var pe *ParseError
				Expect(errors.As(err, &pe)).To(BeTrue())
			})
		})
	})

	Describe("New", func() {
		It("fails for an unsupported vendor", func() {
			svc, err := New(Config{Vendor: "acme-vision"}, corrections)
			Expect(svc).To(BeNil())
			var ce *ConfigurationError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Vendor).To(Equal("acme-vision"))
		})

		It("fails for a vendor without an API key", func() {
			_, err := New(Config{Vendor: VendorAnthropic}, corrections)
			var ce *ConfigurationError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(strings.ToLower(err.Error())).To(ContainSubstring("api key"))
		})

		It("builds an OpenAI service", func() {
			svc, err := New(Config{Vendor: "OpenAI", OpenAIKey: "sk-test"}, corrections)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Vendor()).To(Equal("OpenAI"))
		})

		It("builds an Ollama service without a key", func() {
			svc, err := New(Config{Vendor: VendorOllama}, corrections)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Close()).To(Succeed())
		})
	})

	Describe("Close", func() {
		It("closes the adapter", func() {
			Expect(service.Close()).To(Succeed())
			Expect(adapter.closed).To(BeTrue())
		})

		It("returns the adapter error", func() {
			adapter.closeErr = errors.New("close error")
			Expect(service.Close()).To(MatchError(adapter.closeErr))
		})
	})
})
