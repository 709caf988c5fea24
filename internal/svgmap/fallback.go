package svgmap

import (
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/insurance-maps/internal/domain"
)

const (
	tileSize = 44
	tileGap  = 4
	gridCols = 12
	gridRows = 8
)

// tileGrid places every state on a 12x8 grid that roughly follows
// geography. Column first, then row.
var tileGrid = map[domain.StateCode][2]int{
	"AK": {0, 0}, "ME": {11, 0},
	"VT": {10, 1}, "NH": {11, 1},
	"WA": {1, 2}, "ID": {2, 2}, "MT": {3, 2}, "ND": {4, 2}, "MN": {5, 2}, "IL": {6, 2},
	"WI": {7, 2}, "MI": {8, 2}, "NY": {9, 2}, "RI": {10, 2}, "MA": {11, 2},
	"OR": {1, 3}, "NV": {2, 3}, "WY": {3, 3}, "SD": {4, 3}, "IA": {5, 3}, "IN": {6, 3},
	"OH": {7, 3}, "PA": {8, 3}, "NJ": {9, 3}, "CT": {10, 3},
	"CA": {1, 4}, "UT": {2, 4}, "CO": {3, 4}, "NE": {4, 4}, "MO": {5, 4}, "KY": {6, 4},
	"WV": {7, 4}, "VA": {8, 4}, "MD": {9, 4}, "DE": {10, 4},
	"AZ": {2, 5}, "NM": {3, 5}, "KS": {4, 5}, "AR": {5, 5}, "TN": {6, 5}, "NC": {7, 5}, "SC": {8, 5},
	"OK": {4, 6}, "LA": {5, 6}, "MS": {6, 6}, "AL": {7, 6}, "GA": {8, 6},
	"HI": {0, 7}, "TX": {4, 7}, "FL": {9, 7},
}

var (
	fallbackOnce sync.Once
	fallbackMap  *Map
)

// Fallback returns a tile-grid substrate with one square per state, used
// when no map SVG is configured.
func Fallback() *Map {
	fallbackOnce.Do(func() {
		m, err := Parse([]byte(tileGridSVG()))
		if err != nil {
			panic(fmt.Sprintf("svgmap: fallback grid: %v", err))
		}
		fallbackMap = m
	})
	return fallbackMap
}

func tileGridSVG() string {
	step := tileSize + tileGap
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" class="tile-grid" role="img" aria-label="Map of the United States">`,
		gridCols*step, gridRows*step)
	for _, code := range domain.States() {
		pos := tileGrid[code]
		x, y := pos[0]*step, pos[1]*step
		fmt.Fprintf(&b, `<g class="tile"><rect id="state-%s" x="%d" y="%d" width="%d" height="%d" rx="4"></rect>`,
			code, x, y, tileSize, tileSize)
		fmt.Fprintf(&b, `<text class="state-label" x="%d" y="%d" text-anchor="middle" dominant-baseline="central">%s</text></g>`,
			x+tileSize/2, y+tileSize/2, code)
	}
	b.WriteString(`</svg>`)
	return b.String()
}
