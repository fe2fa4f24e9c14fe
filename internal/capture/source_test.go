package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeDevice produces a small frame per read and fails the reads listed in failOn
type fakeDevice struct {
	mu       sync.Mutex
	failOn   map[int]bool
	newImage func() image.Image
	closeErr error

	reads           atomic.Int64
	closes          atomic.Int64
	readsAfterClose atomic.Int64
}

func (d *fakeDevice) Read() (image.Image, error) {
	if d.closes.Load() > 0 {
		d.readsAfterClose.Add(1)
	}
	time.Sleep(time.Millisecond)

	n := int(d.reads.Add(1))
	d.mu.Lock()
	fail := d.failOn[n]
	d.mu.Unlock()
	if fail {
		return nil, errors.New("camera unplugged")
	}

	if d.newImage != nil {
		return d.newImage(), nil
	}
	return solidFrame(4, 3, red).Image, nil
}

func (d *fakeDevice) Close() error {
	d.closes.Add(1)
	return d.closeErr
}

var _ = Describe("Source", func() {
	var (
		device  *fakeDevice
		mailbox *Mailbox
		source  *Source
		opts    []SourceOption
		ctx     context.Context
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		device = &fakeDevice{}
		mailbox = NewMailbox()
		opts = []SourceOption{WithRetryDelay(time.Millisecond)}
		ctx, cancel = context.WithCancel(context.Background())
	})

	JustBeforeEach(func() {
		source = NewSource(device, mailbox, opts...)
	})

	AfterEach(func() {
		cancel()
		Expect(source.Stop()).To(Succeed())
	})

	It("fills the mailbox with frames", func() {
		Expect(source.Start(ctx)).To(Succeed())
		Expect(source.Running()).To(BeTrue())

		Eventually(func() bool {
			_, ok := mailbox.Latest()
			return ok
		}).Should(BeTrue())
		Eventually(func() uint64 { return source.Stats().Frames }).Should(BeNumerically(">=", 2))
	})

	It("stops running when its context is cancelled", func() {
		Expect(source.Start(ctx)).To(Succeed())
		cancel()

		Eventually(source.Running).Should(BeFalse())
	})

	It("refuses a second start", func() {
		Expect(source.Start(ctx)).To(Succeed())
		Expect(source.Start(ctx)).To(MatchError(ErrAlreadyStarted))
	})

	When("the device returns non-RGBA images", func() {
		BeforeEach(func() {
			device.newImage = func() image.Image {
				img := image.NewNRGBA(image.Rect(10, 10, 13, 12))
				img.Set(10, 10, blue)
				return img
			}
		})

		It("converts them to RGBA at the origin", func() {
			Expect(source.Start(ctx)).To(Succeed())

			var frame *Frame
			Eventually(func() bool {
				var ok bool
				frame, ok = mailbox.Latest()
				return ok
			}).Should(BeTrue())

			Expect(frame.Width()).To(Equal(3))
			Expect(frame.Height()).To(Equal(2))
			Expect(isColor(frame.Image.At(0, 0), blue)).To(BeTrue())
		})
	})

	When("reads fail", func() {
		var (
			mu     sync.Mutex
			errs   []error
			hooked = func(err error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		)

		BeforeEach(func() {
			errs = nil
			device.failOn = map[int]bool{1: true, 2: true, 3: true}
			opts = append(opts, WithErrorHandler(hooked))
		})

		It("reports them and keeps reading", func() {
			Expect(source.Start(ctx)).To(Succeed())

			Eventually(func() uint64 { return source.Stats().Frames }).Should(BeNumerically(">=", 1))
			Expect(source.Stats().ReadErrors).To(Equal(uint64(3)))

			mu.Lock()
			defer mu.Unlock()
			Expect(errs).To(HaveLen(3))
			var deviceErr *DeviceError
			Expect(errors.As(errs[0], &deviceErr)).To(BeTrue())
			Expect(deviceErr.Op).To(Equal("read"))
			Expect(deviceErr.Error()).To(ContainSubstring("camera unplugged"))
		})
	})

	Describe("Stop", func() {
		It("closes the device once, after the loop has exited", func() {
			Expect(source.Start(ctx)).To(Succeed())
			Eventually(func() uint64 { return source.Stats().Frames }).Should(BeNumerically(">=", 1))

			Expect(source.Stop()).To(Succeed())
			Expect(source.Stop()).To(Succeed())

			Expect(source.Running()).To(BeFalse())
			Expect(device.closes.Load()).To(Equal(int64(1)))
			Consistently(device.readsAfterClose.Load, 20*time.Millisecond).Should(BeZero())

			_, ok := mailbox.Latest()
			Expect(ok).To(BeFalse())
		})

		It("closes the device when never started", func() {
			Expect(source.Stop()).To(Succeed())
			Expect(device.closes.Load()).To(Equal(int64(1)))
		})

		It("refuses to start after stopping", func() {
			Expect(source.Stop()).To(Succeed())
			Expect(source.Start(ctx)).To(MatchError(ErrClosed))
		})

		When("closing the device fails", func() {
			BeforeEach(func() {
				device.closeErr = errors.New("busy")
			})

			It("returns the error", func() {
				err := source.Stop()
				Expect(err).To(MatchError(ContainSubstring("closing capture device")))
				// replace so AfterEach sees a clean stop
				source = NewSource(&fakeDevice{}, mailbox)
			})
		})
	})

	It("stops the loop when the context is cancelled", func() {
		Expect(source.Start(ctx)).To(Succeed())
		Eventually(func() uint64 { return source.Stats().Frames }).Should(BeNumerically(">=", 1))

		cancel()
		n := device.reads.Load()
		Eventually(func() bool {
			before := device.reads.Load()
			time.Sleep(5 * time.Millisecond)
			return device.reads.Load() == before
		}).Should(BeTrue())
		Expect(device.reads.Load()).To(BeNumerically(">=", n))
	})
})
