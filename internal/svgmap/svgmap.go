// Package svgmap tags the state shapes of a U.S. map SVG with heat-map
// classes. Shapes are addressed either by an id of the form state-XX or
// state-XX-n (multi-part states), or by a bare two-letter class such as
// class="ga".
package svgmap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/insurance-maps/internal/domain"
	"golang.org/x/net/html"
)

// ErrNoSVG is returned when the input has no <svg> element.
var ErrNoSVG = errors.New("no <svg> element found")

// ErrNoShapes is returned when no element addresses a known state.
var ErrNoShapes = errors.New("svg has no state shapes")

// Map is a parsed substrate. It is immutable and safe for concurrent Render
// calls.
type Map struct {
	raw    []byte
	shapes map[domain.StateCode]int
}

// Load reads the SVG at path. An empty path returns the built-in tile grid.
func Load(path string) (*Map, error) {
	if path == "" {
		return Fallback(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read svg: %w", err)
	}
	return Parse(data)
}

// Parse validates data and indexes its state shapes.
func Parse(data []byte) (*Map, error) {
	root, err := parseSVG(data)
	if err != nil {
		return nil, err
	}
	shapes := make(map[domain.StateCode]int)
	walk(root, func(n *html.Node) {
		if code, ok := shapeState(n); ok {
			shapes[code]++
		}
	})
	if len(shapes) == 0 {
		return nil, ErrNoShapes
	}
	return &Map{raw: append([]byte(nil), data...), shapes: shapes}, nil
}

// States lists the states that have at least one shape.
func (m *Map) States() []domain.StateCode {
	out := make([]domain.StateCode, 0, len(m.shapes))
	for code := range m.shapes {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Shapes reports how many shapes belong to code.
func (m *Map) Shapes(code domain.StateCode) int {
	return m.shapes[code]
}

// Render writes the <svg> element with every state shape tagged. States
// absent from buckets get "no-data". Shapes of selected additionally get
// "selected". Inline event handlers and <title> elements are dropped.
func (m *Map) Render(w io.Writer, buckets map[domain.StateCode]int, selected domain.StateCode) error {
	root, err := parseSVG(m.raw)
	if err != nil {
		return err
	}

	var titles []*html.Node
	parts := make(map[domain.StateCode]int)
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data == "title" {
			titles = append(titles, n)
			return
		}
		stripHandlers(n)

		code, ok := shapeState(n)
		if !ok {
			return
		}
		parts[code]++
		id := "state-" + string(code)
		if parts[code] > 1 {
			id += "-" + strconv.Itoa(parts[code])
		}
		if cur := attr(n, "id"); strings.HasPrefix(cur, "state-") {
			id = cur
		}
		setAttr(n, "id", id)
		setAttr(n, "class", shapeClass(code, buckets, selected))
		setAttr(n, "data-state", string(code))
	})
	for _, t := range titles {
		t.Parent.RemoveChild(t)
	}

	if err := html.Render(w, root); err != nil {
		return fmt.Errorf("render svg: %w", err)
	}
	return nil
}

// RenderString is Render into a string.
func (m *Map) RenderString(buckets map[domain.StateCode]int, selected domain.StateCode) (string, error) {
	var buf bytes.Buffer
	if err := m.Render(&buf, buckets, selected); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func shapeClass(code domain.StateCode, buckets map[domain.StateCode]int, selected domain.StateCode) string {
	cls := "state-path no-data"
	if b, ok := buckets[code]; ok {
		cls = "state-path heat-" + strconv.Itoa(b)
	}
	if code == selected {
		cls += " selected"
	}
	return cls
}

func parseSVG(data []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	var svg *html.Node
	walk(doc, func(n *html.Node) {
		if svg == nil && n.Type == html.ElementNode && n.Data == "svg" {
			svg = n
		}
	})
	if svg == nil {
		return nil, ErrNoSVG
	}
	svg.Parent.RemoveChild(svg)
	return svg, nil
}

// shapeState reports which state an element draws.
func shapeState(n *html.Node) (domain.StateCode, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	if id := attr(n, "id"); strings.HasPrefix(id, "state-") {
		code := domain.NormalizeShapeID(id)
		return code, code.Valid()
	}
	if n.Data != "path" && n.Data != "polygon" {
		return "", false
	}
	// Legacy maps mark paths with a single lowercase class like "tx".
	cls := strings.TrimSpace(attr(n, "class"))
	if len(cls) == 2 && cls == strings.ToLower(cls) {
		return domain.ParseStateCode(cls)
	}
	return "", false
}

func stripHandlers(n *html.Node) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if strings.HasPrefix(strings.ToLower(a.Key), "on") {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		fn(c)
		walk(c, fn)
		c = next
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
