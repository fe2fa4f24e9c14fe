package capture

import (
	"context"
	"errors"
	"image"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-cam/internal/scanning"
)

var _ = Describe("Pipeline", func() {
	var (
		device   *fakeDevice
		analyzer *mockAnalyzer
		pipeline *Pipeline
	)

	BeforeEach(func() {
		device = &fakeDevice{}
		receipt := scanning.NewReceipt()
		receipt.Vendor = "Acme"
		analyzer = &mockAnalyzer{receipt: receipt}
	})

	When("a device is attached", func() {
		JustBeforeEach(func() {
			pipeline = NewPipeline(device, analyzer, PipelineConfig{DisplaySize: image.Pt(8, 8)})
			Expect(pipeline.Start(context.Background())).To(Succeed())
		})

		AfterEach(func() {
			Expect(pipeline.Close()).To(Succeed())
		})

		It("previews and captures frames", func() {
			Eventually(pipeline.Preview).ShouldNot(BeNil())
			Expect(pipeline.Preview().Image.Bounds().Size()).To(Equal(image.Pt(8, 8)))

			_, err := pipeline.Trigger()
			Expect(err).NotTo(HaveOccurred())
			pipeline.Orchestrator.Wait()

			Expect(pipeline.Current().Receipt.Vendor).To(Equal("Acme"))
			Expect(pipeline.Stats().Frames).To(BeNumerically(">", 0))
		})

		It("rotates", func() {
			Expect(pipeline.Rotate()).To(Equal(90))
			Expect(pipeline.Rotation.Angle()).To(Equal(90))
		})
	})

	When("there is no device", func() {
		JustBeforeEach(func() {
			pipeline = NewPipeline(nil, analyzer, PipelineConfig{})
			Expect(pipeline.Start(context.Background())).To(Succeed())
		})

		AfterEach(func() {
			Expect(pipeline.Close()).To(Succeed())
		})

		It("reports no frame on trigger", func() {
			_, err := pipeline.Trigger()
			Expect(err).To(MatchError(ErrNoFrame))
			Expect(pipeline.Snapshot().Status).To(Equal("No frame available"))
		})

		It("still analyzes submitted images", func() {
			id, err := pipeline.Submit([]byte("jpeg"))
			Expect(err).NotTo(HaveOccurred())
			pipeline.Orchestrator.Wait()

			Expect(pipeline.Current().ID).To(Equal(id))
			Expect(pipeline.Reset(id)).To(BeTrue())
			Expect(pipeline.Current()).To(BeNil())
		})
	})

	It("shows camera read failures as an error status", func() {
		device.failOn = map[int]bool{}
		for i := 1; i <= 1000; i++ {
			device.failOn[i] = true
		}
		pipeline = NewPipeline(device, analyzer, PipelineConfig{})
		Expect(pipeline.Start(context.Background())).To(Succeed())
		defer func() { Expect(pipeline.Close()).To(Succeed()) }()

		Eventually(func() uint64 { return pipeline.Stats().ReadErrors }).Should(BeNumerically(">", 0))
		Eventually(func() string { return pipeline.Snapshot().Status }).Should(Equal("Camera read failed"))
		Expect(pipeline.Snapshot().StatusError).To(BeTrue())
	})

	It("joins shutdown errors", func() {
		device.closeErr = errors.New("busy")
		pipeline = NewPipeline(device, analyzer, PipelineConfig{})
		Expect(pipeline.Start(context.Background())).To(Succeed())

		Expect(pipeline.Close()).To(MatchError(ContainSubstring("busy")))
	})
})
