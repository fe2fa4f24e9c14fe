package capture

import (
	"image"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Rotation is the clockwise display and capture angle, always one of 0, 90, 180 or 270
type Rotation struct {
	angle atomic.Int32
}

// Angle returns the current angle in degrees
func (r *Rotation) Angle() int {
	return int(r.angle.Load())
}

// Rotate advances the angle by 90 degrees, wrapping at 360, and returns the new angle
func (r *Rotation) Rotate() int {
	for {
		old := r.angle.Load()
		next := (old + 90) % 360
		if r.angle.CompareAndSwap(old, next) {
			return int(next)
		}
	}
}

// Set stores angle snapped down to a multiple of 90 in [0, 360) and returns it
func (r *Rotation) Set(angle int) int {
	a := normalizeAngle(angle)
	r.angle.Store(int32(a))
	return a
}

func normalizeAngle(angle int) int {
	angle %= 360
	if angle < 0 {
		angle += 360
	}
	return angle / 90 * 90
}

// RotateImage rotates img clockwise by angle, in 90 degree steps.
// Preview and capture both rotate through here.
func RotateImage(img image.Image, angle int) *image.NRGBA {
	// imaging rotates counter-clockwise
	switch normalizeAngle(angle) {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// CoverRect returns the region of a src sized image that, scaled to dst, fills
// dst while keeping the aspect ratio. Overflow is cropped evenly from the left
// and right but only from the bottom.
func CoverRect(src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return image.Rectangle{}
	}

	if src.X*dst.Y > dst.X*src.Y {
		// source is wider: full height, centred horizontally
		w := dst.X * src.Y / dst.Y
		x0 := (src.X - w) / 2
		return image.Rect(x0, 0, x0+w, src.Y)
	}

	// source is taller or equal: full width, top aligned
	h := dst.Y * src.X / dst.X
	return image.Rect(0, 0, src.X, h)
}

// Cover scales img to exactly size, cropping as CoverRect describes
func Cover(img image.Image, size image.Point) *image.NRGBA {
	b := img.Bounds()
	sr := CoverRect(b.Size(), size).Add(b.Min)

	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if sr.Empty() {
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, sr, draw.Src, nil)
	return dst
}

// Render rotates img then covers size with it. A zero size skips scaling.
func Render(img image.Image, angle int, size image.Point) *image.NRGBA {
	rotated := RotateImage(img, angle)
	if size.X <= 0 || size.Y <= 0 {
		return rotated
	}
	return Cover(rotated, size)
}
