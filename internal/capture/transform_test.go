package capture

import (
	"image"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Transform", func() {
	Describe("Rotation", func() {
		var rotation *Rotation

		BeforeEach(func() {
			rotation = &Rotation{}
		})

		It("advances in 90 degree steps", func() {
			Expect(rotation.Rotate()).To(Equal(90))
			Expect(rotation.Rotate()).To(Equal(180))
			Expect(rotation.Rotate()).To(Equal(270))
			Expect(rotation.Rotate()).To(Equal(0))
		})

		It("returns to the starting angle after four rotations", func() {
			for _, start := range []int{0, 90, 180, 270} {
				rotation.Set(start)
				for i := 0; i < 4; i++ {
					rotation.Rotate()
				}
				Expect(rotation.Angle()).To(Equal(start))
			}
		})

		DescribeTable("Set normalises angles",
			func(in, want int) {
				Expect(rotation.Set(in)).To(Equal(want))
				Expect(rotation.Angle()).To(Equal(want))
			},
			Entry("zero", 0, 0),
			Entry("full turn", 360, 0),
			Entry("negative", -90, 270),
			Entry("off step", 135, 90),
			Entry("over a turn", 450, 90),
		)
	})

	Describe("RotateImage", func() {
		var img *image.RGBA

		BeforeEach(func() {
			// one row: red then blue
			img = image.NewRGBA(image.Rect(0, 0, 2, 1))
			img.SetRGBA(0, 0, red)
			img.SetRGBA(1, 0, blue)
		})

		It("copies the image at 0 degrees", func() {
			out := RotateImage(img, 0)
			Expect(out.Bounds().Size()).To(Equal(image.Pt(2, 1)))
			Expect(isColor(out.At(0, 0), red)).To(BeTrue())
		})

		It("rotates clockwise at 90 degrees", func() {
			out := RotateImage(img, 90)
			Expect(out.Bounds().Size()).To(Equal(image.Pt(1, 2)))
			Expect(isColor(out.At(0, 0), red)).To(BeTrue())
			Expect(isColor(out.At(0, 1), blue)).To(BeTrue())
		})

		It("flips at 180 degrees", func() {
			out := RotateImage(img, 180)
			Expect(out.Bounds().Size()).To(Equal(image.Pt(2, 1)))
			Expect(isColor(out.At(0, 0), blue)).To(BeTrue())
		})

		It("rotates counter-clockwise at 270 degrees", func() {
			out := RotateImage(img, 270)
			Expect(out.Bounds().Size()).To(Equal(image.Pt(1, 2)))
			Expect(isColor(out.At(0, 0), blue)).To(BeTrue())
			Expect(isColor(out.At(0, 1), red)).To(BeTrue())
		})
	})

	DescribeTable("CoverRect",
		func(src, dst image.Point, want image.Rectangle) {
			Expect(CoverRect(src, dst)).To(Equal(want))
		},
		Entry("wide source is centred horizontally", image.Pt(1280, 720), image.Pt(400, 400), image.Rect(280, 0, 1000, 720)),
		Entry("tall source is top aligned", image.Pt(720, 1280), image.Pt(400, 400), image.Rect(0, 0, 720, 720)),
		Entry("same aspect uses everything", image.Pt(800, 600), image.Pt(400, 300), image.Rect(0, 0, 800, 600)),
		Entry("wide target crops the bottom", image.Pt(640, 480), image.Pt(640, 240), image.Rect(0, 0, 640, 240)),
		Entry("tall target crops the sides", image.Pt(640, 480), image.Pt(240, 480), image.Rect(200, 0, 440, 480)),
		Entry("empty source", image.Pt(0, 0), image.Pt(10, 10), image.Rectangle{}),
		Entry("empty target", image.Pt(10, 10), image.Pt(0, 10), image.Rectangle{}),
	)

	Describe("Cover", func() {
		It("keeps the horizontal centre of a wide image", func() {
			// 200x100: red | green green | blue, in 50px columns
			img := image.NewRGBA(image.Rect(0, 0, 200, 100))
			for y := 0; y < 100; y++ {
				for x := 0; x < 200; x++ {
					c := green
					if x < 50 {
						c = red
					} else if x >= 150 {
						c = blue
					}
					img.SetRGBA(x, y, c)
				}
			}

			out := Cover(img, image.Pt(50, 50))
			Expect(out.Bounds().Size()).To(Equal(image.Pt(50, 50)))
			Expect(isColor(out.At(25, 25), green)).To(BeTrue())
			Expect(isColor(out.At(5, 25), green)).To(BeTrue())
			Expect(isColor(out.At(44, 25), green)).To(BeTrue())
		})

		It("keeps the top of a tall image", func() {
			// 100x200: red top half, blue bottom half
			img := image.NewRGBA(image.Rect(0, 0, 100, 200))
			for y := 0; y < 200; y++ {
				for x := 0; x < 100; x++ {
					c := red
					if y >= 100 {
						c = blue
					}
					img.SetRGBA(x, y, c)
				}
			}

			out := Cover(img, image.Pt(50, 50))
			Expect(isColor(out.At(25, 5), red)).To(BeTrue())
			Expect(isColor(out.At(25, 44), red)).To(BeTrue())
		})
	})

	Describe("Render", func() {
		It("rotates before covering", func() {
			frame := solidFrame(40, 20, red)
			out := Render(frame.Image, 90, image.Pt(10, 30))
			Expect(out.Bounds().Size()).To(Equal(image.Pt(10, 30)))
			Expect(isColor(out.At(5, 15), red)).To(BeTrue())
		})

		It("skips scaling for a zero size", func() {
			frame := solidFrame(40, 20, red)
			out := Render(frame.Image, 90, image.Point{})
			Expect(out.Bounds().Size()).To(Equal(image.Pt(20, 40)))
		})
	})
})
