package camera

import (
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-cam/internal/capture"
)

var _ = Describe("Webcam", func() {
	Describe("Open", func() {
		It("returns a device error for a missing source", func() {
			path := filepath.Join(GinkgoT().TempDir(), "missing.mp4")

			_, err := Open(path, 0, 0)
			Expect(err).To(HaveOccurred())

			var deviceErr *capture.DeviceError
			Expect(errors.As(err, &deviceErr)).To(BeTrue())
			Expect(deviceErr.Op).To(Equal("open"))
		})
	})

	It("satisfies the capture device interface", func() {
		var _ capture.Device = (*Webcam)(nil)
	})
})
