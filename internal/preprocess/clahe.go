package preprocess

import (
	"image"
	"image/color"
)

// applyCLAHE runs contrast-limited adaptive histogram equalization: the
// image is divided into tileSize x tileSize tiles, each tile's histogram is
// clipped at clipLimit and redistributed, then per-pixel output is
// bilinearly interpolated between the four nearest tile mappings. No
// library in the retrieved pack implements CLAHE; this is the one
// stdlib-only algorithm in the module.
func applyCLAHE(img image.Image, clipLimit float64, tileSize int) image.Image {
	if tileSize <= 0 {
		tileSize = 8
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	tilesX := (w + tileSize - 1) / tileSize
	tilesY := (h + tileSize - 1) / tileSize
	if tilesX < 1 {
		tilesX = 1
	}
	if tilesY < 1 {
		tilesY = 1
	}

	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum[y*w+x] = float64(r >> 8)
		}
	}

	mappings := make([][256]float64, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			mappings[ty*tilesX+tx] = tileMapping(lum, w, h, tx, ty, tileSize, clipLimit)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lum[y*w+x]
			out.SetGray(x, y, color.Gray{Y: uint8(interpolate(mappings, tilesX, tilesY, tileSize, x, y, v))})
		}
	}
	return out
}

// tileMapping builds a clipped, cumulative histogram equalization mapping
// (256 output levels) for one tile.
func tileMapping(lum []float64, w, h, tx, ty, tileSize int, clipLimit float64) [256]float64 {
	x0 := tx * tileSize
	y0 := ty * tileSize
	x1 := min(x0+tileSize, w)
	y1 := min(y0+tileSize, h)

	var hist [256]int
	count := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			v := int(lum[y*w+x])
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			hist[v]++
			count++
		}
	}
	if count == 0 {
		var identity [256]float64
		for i := range identity {
			identity[i] = float64(i)
		}
		return identity
	}

	clip := int(clipLimit * float64(count) / 256)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	redistribute := excess / 256
	for i := range hist {
		hist[i] += redistribute
	}

	var mapping [256]float64
	cum := 0
	for i := range hist {
		cum += hist[i]
		mapping[i] = 255 * float64(cum) / float64(count)
	}
	return mapping
}

func interpolate(mappings [][256]float64, tilesX, tilesY, tileSize, x, y int, v float64) float64 {
	tx := float64(x)/float64(tileSize) - 0.5
	ty := float64(y)/float64(tileSize) - 0.5

	tx0 := clampInt(int(floor(tx)), 0, tilesX-1)
	ty0 := clampInt(int(floor(ty)), 0, tilesY-1)
	tx1 := clampInt(tx0+1, 0, tilesX-1)
	ty1 := clampInt(ty0+1, 0, tilesY-1)

	fx := tx - floor(tx)
	fy := ty - floor(ty)
	if tx < 0 {
		fx = 0
	}
	if ty < 0 {
		fy = 0
	}

	vi := clampInt(int(v), 0, 255)

	m00 := mappings[ty0*tilesX+tx0][vi]
	m10 := mappings[ty0*tilesX+tx1][vi]
	m01 := mappings[ty1*tilesX+tx0][vi]
	m11 := mappings[ty1*tilesX+tx1][vi]

	top := m00*(1-fx) + m10*fx
	bottom := m01*(1-fx) + m11*fx
	return top*(1-fy) + bottom*fy
}

func floor(v float64) float64 {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return float64(i)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
