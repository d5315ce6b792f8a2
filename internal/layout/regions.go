package layout

import "container/list"

// region is one connected patch of above-threshold pixels in a probability
// or ink-intensity grid.
type region struct {
	bbox      rectI
	meanScore float32
}

type rectI struct{ minX, minY, maxX, maxY int }

// extractRegions runs a 4-connected BFS flood fill over values at or above
// thresh, following the same mask-and-visit approach as
// internal/detector's connected-component labeling, reimplemented here for
// a generic single-channel grid so this package doesn't need that package's
// unexported compStats/labels plumbing.
func extractRegions(values []float32, w, h int, thresh float32) []region {
	if w <= 0 || h <= 0 || len(values) != w*h {
		return nil
	}
	visited := make([]bool, w*h)
	var regions []region

	idx := func(x, y int) int { return y*w + x }

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := idx(x, y)
			if visited[i] || values[i] < thresh {
				continue
			}

			q := list.New()
			q.PushBack([2]int{x, y})
			visited[i] = true

			r := rectI{minX: x, minY: y, maxX: x, maxY: y}
			var sum float64
			count := 0

			for q.Len() > 0 {
				e := q.Front()
				q.Remove(e)
				p := e.Value.([2]int)
				px, py := p[0], p[1]
				pi := idx(px, py)
				sum += float64(values[pi])
				count++
				if px < r.minX {
					r.minX = px
				}
				if px > r.maxX {
					r.maxX = px
				}
				if py < r.minY {
					r.minY = py
				}
				if py > r.maxY {
					r.maxY = py
				}

				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := px+d[0], py+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := idx(nx, ny)
					if visited[ni] || values[ni] < thresh {
						continue
					}
					visited[ni] = true
					q.PushBack([2]int{nx, ny})
				}
			}

			if count == 0 {
				continue
			}
			regions = append(regions, region{bbox: r, meanScore: float32(sum / float64(count))})
		}
	}
	return regions
}
