package preprocess

import (
	"image"
	"image/color"

	"github.com/cardmill/invoicecard/internal/utils"
)

// dewarp finds the largest 4-sided foreground region covering at least 30%
// of the image area and warps it to an axis-aligned rectangle sized by its
// longest detected side. It returns ok=false when no region of sufficient
// coverage is found, leaving the page untouched.
func (p *Preprocessor) dewarp(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img, false
	}

	fg := foregroundPoints(img)
	if len(fg) < 4 {
		return img, false
	}

	quad := utils.MinimumAreaRectangle(fg)
	if len(quad) != 4 {
		return img, false
	}

	area := quadArea(quad)
	if area < 0.30*float64(w*h) {
		return img, false
	}

	side := longestSide(quad)
	outW, outH := outputSize(quad, side)
	if outW <= 0 || outH <= 0 {
		return img, false
	}

	dst := []utils.Point{{X: 0, Y: 0}, {X: float64(outW), Y: 0}, {X: float64(outW), Y: float64(outH)}, {X: 0, Y: float64(outH)}}
	H, ok := computeHomography(dst, quad)
	if !ok {
		return img, false
	}

	return warpPerspective(img, H, outW, outH), true
}

// foregroundPoints thresholds the grayscale image against its own mean
// intensity and returns the coordinates of below-mean (ink/content) pixels,
// subsampled for performance.
func foregroundPoints(img image.Image) []utils.Point {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var sum float64
	n := 0
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			sum += float64(r >> 8)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	threshold := mean * 0.9

	var pts []utils.Point
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if float64(r>>8) < threshold {
				pts = append(pts, utils.Point{X: float64(x), Y: float64(y)})
			}
		}
	}
	return pts
}

func quadArea(q []utils.Point) float64 {
	var area float64
	n := len(q)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}

func longestSide(q []utils.Point) float64 {
	var longest float64
	n := len(q)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dx := q[j].X - q[i].X
		dy := q[j].Y - q[i].Y
		d := dx*dx + dy*dy
		if d > longest {
			longest = d
		}
	}
	return sqrt(longest)
}

func outputSize(q []utils.Point, longestSide float64) (int, int) {
	top := dist(q[0], q[1])
	left := dist(q[0], q[3])
	if top <= 0 || left <= 0 {
		return 0, 0
	}
	ratio := left / top
	outW := int(longestSide)
	outH := int(longestSide * ratio)
	return outW, outH
}

func dist(a, b utils.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	return sqrt(dx*dx + dy*dy)
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for range 20 {
		x = 0.5 * (x + v/x)
	}
	return x
}

// computeHomography solves for the 3x3 matrix mapping src points to dst
// points, following the same Gaussian-elimination approach as
// internal/rectify's homography solver, reimplemented here since that
// solver is unexported.
func computeHomography(src, dst []utils.Point) ([9]float64, bool) {
	if len(src) != 4 || len(dst) != 4 {
		return [9]float64{}, false
	}

	var a [8][9]float64
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		a[r] = [9]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x, x}
		a[r+1] = [9]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y, y}
	}

	for col := 0; col < 8; col++ {
		pivot := -1
		best := 0.0
		for row := col; row < 8; row++ {
			v := a[row][col]
			if v < 0 {
				v = -v
			}
			if v > best {
				best = v
				pivot = row
			}
		}
		if pivot == -1 || best < 1e-12 {
			return [9]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		pv := a[col][col]
		for k := col; k < 9; k++ {
			a[col][k] /= pv
		}
		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			factor := a[row][col]
			for k := col; k < 9; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	h := [9]float64{a[0][8], a[1][8], a[2][8], a[3][8], a[4][8], a[5][8], a[6][8], a[7][8], 1}
	return h, true
}

// warpPerspective samples dst[outW x outH] by inverse-mapping each output
// pixel through H into the source image with nearest-neighbor lookup.
func warpPerspective(src image.Image, H [9]float64, outW, outH int) image.Image {
	out := image.NewGray(image.Rect(0, 0, outW, outH))
	b := src.Bounds()

	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			sx, sy, ok := applyHomography(H, float64(x), float64(y))
			if !ok {
				continue
			}
			ix, iy := int(sx), int(sy)
			if ix < 0 || iy < 0 || ix >= b.Dx() || iy >= b.Dy() {
				continue
			}
			r, _, _, _ := src.At(b.Min.X+ix, b.Min.Y+iy).RGBA()
			out.SetGray(x, y, color.Gray{Y: uint8(r >> 8)})
		}
	}
	return out
}

func applyHomography(H [9]float64, x, y float64) (float64, float64, bool) {
	denom := H[6]*x + H[7]*y + H[8]
	if denom == 0 {
		return 0, 0, false
	}
	sx := (H[0]*x + H[1]*y + H[2]) / denom
	sy := (H[3]*x + H[4]*y + H[5]) / denom
	return sx, sy, true
}
