package render

import (
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/catalog"
	"github.com/couchcryptid/insurance-maps/internal/domain"
)

type pageData struct {
	Title        string
	Subtitle     string
	TradeName    string
	ActiveMetric string
	Buttons      []button
	WCActive     bool
	WCButtons    []button
	HasWC        bool
	Legend       domain.Legend
	LegendMin    string
	LegendMax    string
	States       []stateOption
	Map          template.HTML
	Detail       domain.DetailPanel
	QuoteURL     string
	Publisher    string
	Table        table
	UpdatedAt    string
	StructData   template.JS
	PayloadData  template.JS
	Buckets      []int
}

type button struct {
	ID     string
	Label  string
	Href   string
	Active bool
}

type stateOption struct {
	Code     domain.StateCode
	Name     string
	Selected bool
}

type table struct {
	Columns []string
	Rows    [][]string
}

// jsonLD is a schema.org Dataset block.
type jsonLD struct {
	Context          string     `json:"@context"`
	Type             string     `json:"@type"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Creator          ldThing    `json:"creator"`
	TemporalCoverage string     `json:"temporalCoverage"`
	SpatialCoverage  ldThing    `json:"spatialCoverage"`
	DateModified     string     `json:"dateModified,omitempty"`
	VariableMeasured []string   `json:"variableMeasured"`
	Distribution     []ldObject `json:"distribution,omitempty"`
}

type ldThing struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type ldObject struct {
	Type           string `json:"@type"`
	EncodingFormat string `json:"encodingFormat"`
	ContentURL     string `json:"contentUrl"`
}

// payload is what the client script reads to switch metrics and states
// locally.
type payload struct {
	Trade    domain.Trade                `json:"trade"`
	Active   string                      `json:"active"`
	Selected domain.StateCode            `json:"selected,omitempty"`
	QuoteURL string                      `json:"quote_url"`
	Names    map[domain.StateCode]string `json:"state_names"`
	Metrics  []payloadMetric             `json:"metrics"`
}

type payloadMetric struct {
	ID           string                      `json:"id"`
	Label        string                      `json:"label"`
	Description  string                      `json:"description"`
	ReverseScale bool                        `json:"reverse_scale"`
	Display      map[domain.StateCode]string `json:"display"`
	Buckets      map[domain.StateCode]int    `json:"buckets"`
	Legend       domain.Legend               `json:"legend"`
	LegendMin    string                      `json:"legend_min,omitempty"`
	LegendMax    string                      `json:"legend_max,omitempty"`
}

func (r *Renderer) pageData(ds *domain.Dataset, entry catalog.Entry, snap *Snapshot) (*pageData, error) {
	set := snap.set
	active := snap.metric
	selected := snap.Selected()

	d := &pageData{
		Title:        entry.Name + " Insurance Cost Metrics by State",
		Subtitle:     "Explore insurance costs and savings opportunities across the United States",
		TradeName:    entry.Name,
		ActiveMetric: active.ID(),
		HasWC:        len(set.ClassCodes) > 0,
		WCActive:     active.Kind == domain.KindWCRate,
		Legend:       snap.Legend,
		Detail:       snap.Detail,
		QuoteURL:     r.catalog.QuoteURL,
		Publisher:    r.catalog.Publisher,
		Buckets:      make([]int, domain.NumBuckets),
	}
	for i := range d.Buckets {
		d.Buckets[i] = i
	}
	if snap.Legend.HasData {
		d.LegendMin = legendValue(active, snap.Legend.Min)
		d.LegendMax = legendValue(active, snap.Legend.Max)
	}
	if !ds.UpdatedAt.IsZero() {
		d.UpdatedAt = ds.UpdatedAt.Format("January 2, 2006")
	}

	for _, m := range []domain.Metric{domain.Premium(), domain.Savings(), domain.Competitiveness()} {
		d.Buttons = append(d.Buttons, button{
			ID:     m.ID(),
			Label:  buttonLabel(m),
			Href:   pageHref(m, selected),
			Active: m == active,
		})
	}
	for _, code := range set.ClassCodes {
		m := domain.WCRate(code)
		label := "Class " + code
		if l := set.ClassLabel(code); l != "" {
			label += " (" + l + ")"
		}
		d.WCButtons = append(d.WCButtons, button{
			ID:     m.ID(),
			Label:  label,
			Href:   pageHref(m, selected),
			Active: m == active,
		})
	}
	if d.HasWC {
		first := domain.WCRate(set.ClassCodes[0])
		d.Buttons = append(d.Buttons, button{
			ID:     "wcRate",
			Label:  "Workers' Comp Rates",
			Href:   pageHref(first, selected),
			Active: d.WCActive,
		})
	}

	for _, code := range domain.StatesByName() {
		d.States = append(d.States, stateOption{Code: code, Name: code.Name(), Selected: code == selected})
	}

	d.Table = seoTable(ds, set)

	ld, err := jsonJS(r.structuredData(ds, entry, set))
	if err != nil {
		return nil, err
	}
	d.StructData = ld

	pl, err := jsonJS(r.clientPayload(ds, set, active, selected))
	if err != nil {
		return nil, err
	}
	d.PayloadData = pl
	return d, nil
}

func buttonLabel(m domain.Metric) string {
	switch m.Kind {
	case domain.KindPremium:
		return "GL Premium %"
	case domain.KindSavings:
		return "GL Savings %"
	case domain.KindCompetitiveness:
		return "GL Competitiveness"
	default:
		return m.Label()
	}
}

func pageHref(m domain.Metric, selected domain.StateCode) string {
	q := url.Values{}
	q.Set("metric", m.ID())
	if selected != "" {
		q.Set("state", string(selected))
	}
	return "?" + q.Encode()
}

func legendValue(m domain.Metric, v float64) string {
	switch m.Kind {
	case domain.KindWCRate:
		return "$" + strconv.FormatFloat(v, 'f', 2, 64)
	case domain.KindCompetitiveness:
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return strconv.FormatFloat(v, 'f', 1, 64) + "%"
	}
}

func seoTable(ds *domain.Dataset, set *domain.MetricSet) table {
	t := table{Columns: []string{"State", "GL Premium Range", "GL Savings %", "GL Competitiveness"}}
	for _, code := range set.ClassCodes {
		t.Columns = append(t.Columns, "WC Rate (Class "+code+")")
	}

	metrics := set.Metrics()
	for _, code := range domain.StatesByName() {
		if _, ok := ds.Records[code]; !ok {
			continue
		}
		row := []string{code.Name()}
		for _, m := range metrics {
			v, ok := set.Format(m, code)
			if !ok {
				v = domain.PlaceholderValue
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (r *Renderer) structuredData(ds *domain.Dataset, entry catalog.Entry, set *domain.MetricSet) jsonLD {
	year := domain.Now().Year()
	if !ds.UpdatedAt.IsZero() {
		year = ds.UpdatedAt.Year()
	}
	ld := jsonLD{
		Context:          "https://schema.org",
		Type:             "Dataset",
		Name:             entry.Name + " Insurance Cost Metrics by US State",
		Description:      "Comprehensive insurance cost data for " + string(ds.Trade) + " professionals across all 50 US states, including General Liability premiums, savings potential, carrier competitiveness, and Workers Compensation rates.",
		Creator:          ldThing{Type: "Organization", Name: r.catalog.Publisher},
		TemporalCoverage: strconv.Itoa(year),
		SpatialCoverage:  ldThing{Type: "Place", Name: "United States"},
		Distribution: []ldObject{{
			Type:           "DataDownload",
			EncodingFormat: "text/csv",
			ContentURL:     "/api/trades/" + string(ds.Trade) + "/csv",
		}},
	}
	if !ds.UpdatedAt.IsZero() {
		ld.DateModified = ds.UpdatedAt.Format(time.DateOnly)
	}
	for _, m := range set.Metrics() {
		ld.VariableMeasured = append(ld.VariableMeasured, m.Label())
	}
	return ld
}

func (r *Renderer) clientPayload(ds *domain.Dataset, set *domain.MetricSet, active domain.Metric, selected domain.StateCode) payload {
	p := payload{
		Trade:    ds.Trade,
		Active:   active.ID(),
		Selected: selected,
		QuoteURL: r.catalog.QuoteURL,
		Names:    make(map[domain.StateCode]string),
	}
	// Every shape is clickable, including states the dataset lacks.
	for _, code := range domain.States() {
		p.Names[code] = code.Name()
	}

	sess := domain.NewSession(set)
	for _, m := range set.Metrics() {
		sess.SelectMetric(m)
		pm := payloadMetric{
			ID:           m.ID(),
			Label:        m.Label(),
			Description:  m.Description(set.ClassLabel(m.ClassCode)),
			ReverseScale: m.ReverseScale(),
			Display:      make(map[domain.StateCode]string, len(ds.Records)),
			Buckets:      sess.ComputeBuckets(),
			Legend:       sess.Legend(),
		}
		if pm.Legend.HasData {
			pm.LegendMin = legendValue(m, pm.Legend.Min)
			pm.LegendMax = legendValue(m, pm.Legend.Max)
		}
		for code := range ds.Records {
			if v, ok := set.Format(m, code); ok {
				pm.Display[code] = v
			}
		}
		p.Metrics = append(p.Metrics, pm)
	}
	return p
}
