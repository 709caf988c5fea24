// Package render produces the static map page for a trade: toggles,
// legend, tagged SVG, detail panel, SEO table and the structured data a
// client script needs to keep interacting without a round trip.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/catalog"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	"github.com/couchcryptid/insurance-maps/internal/svgmap"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Palette is the default heat gradient, bucket 0 first.
var Palette = [domain.NumBuckets]string{
	"#e8f4f8", "#c6e3ef", "#9fcfe3", "#72b6d4",
	"#4a9bc2", "#2f7fad", "#1d6290", "#114670",
}

// Renderer renders map pages. It is safe for concurrent use.
type Renderer struct {
	tmpl    *template.Template
	svg     *svgmap.Map
	catalog *catalog.Catalog
	cache   *pageCache
	metrics *observability.Metrics
}

// New creates a Renderer. cacheSize 0 disables the page cache.
func New(svg *svgmap.Map, cat *catalog.Catalog, cacheSize int, metrics *observability.Metrics) (*Renderer, error) {
	tmpl, err := template.New("page.html.tmpl").Funcs(template.FuncMap{
		"heatColor": func(i int) template.CSS { return template.CSS(Palette[i]) }, //nolint:gosec // fixed palette
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r := &Renderer{tmpl: tmpl, svg: svg, catalog: cat, metrics: metrics}
	if cacheSize > 0 {
		r.cache = newPageCache(cacheSize)
	}
	return r, nil
}

// Snapshot computes the heat map state of ds for m and state.
func (r *Renderer) Snapshot(ds *domain.Dataset, m domain.Metric, state domain.StateCode) (*Snapshot, error) {
	return NewSnapshot(ds, r.catalog.Lookup(ds.Trade, ds.ClassCodes), m, state)
}

// Page renders the full HTML page. Results are cached per dataset version,
// so a re-import never serves a stale page.
func (r *Renderer) Page(ds *domain.Dataset, m domain.Metric, state domain.StateCode) ([]byte, error) {
	if !state.Valid() {
		state = ""
	}
	key := cacheKey(ds, m, state)
	if r.cache != nil {
		if page, ok := r.cache.get(key); ok {
			r.metrics.PageRenders.WithLabelValues("hit").Inc()
			return page, nil
		}
	}

	start := time.Now()
	page, err := r.render(ds, m, state)
	if err != nil {
		return nil, err
	}
	r.metrics.RenderDuration.Observe(time.Since(start).Seconds())

	if r.cache == nil {
		r.metrics.PageRenders.WithLabelValues("disabled").Inc()
		return page, nil
	}
	r.metrics.PageRenders.WithLabelValues("miss").Inc()
	r.cache.put(key, page)
	return page, nil
}

// Invalidate drops every cached page of trade.
func (r *Renderer) Invalidate(trade domain.Trade) {
	if r.cache != nil {
		r.cache.dropPrefix(string(trade) + "|")
	}
}

func cacheKey(ds *domain.Dataset, m domain.Metric, state domain.StateCode) string {
	return string(ds.Trade) + "|" + m.ID() + "|" + string(state) + "|" + strconv.FormatInt(ds.UpdatedAt.UnixNano(), 10)
}

func (r *Renderer) render(ds *domain.Dataset, m domain.Metric, state domain.StateCode) ([]byte, error) {
	entry := r.catalog.Lookup(ds.Trade, ds.ClassCodes)
	snap, err := NewSnapshot(ds, entry, m, state)
	if err != nil {
		return nil, err
	}

	svg, err := r.svg.RenderString(snap.Buckets, snap.Selected())
	if err != nil {
		return nil, err
	}

	data, err := r.pageData(ds, entry, snap)
	if err != nil {
		return nil, err
	}
	data.Map = template.HTML(svg) //nolint:gosec // re-serialized from a parsed tree with handlers stripped

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute page template: %w", err)
	}
	return buf.Bytes(), nil
}

func jsonJS(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil //nolint:gosec // encoding/json escapes <, > and &
}
