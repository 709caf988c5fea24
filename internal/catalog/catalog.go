// Package catalog describes the trades the service knows about: display
// names and the workers' comp classification codes each trade reports.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/insurance-maps/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Class is one WC classification code with its label.
type Class struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// Entry describes one trade.
type Entry struct {
	Trade   domain.Trade `yaml:"-"`
	Name    string       `yaml:"name"`
	Classes []Class      `yaml:"wc_classes"`
}

// Labels maps class code to label.
func (e Entry) Labels() map[string]string {
	out := make(map[string]string, len(e.Classes))
	for _, c := range e.Classes {
		if c.Label != "" {
			out[c.Code] = c.Label
		}
	}
	return out
}

// Codes returns the class codes in catalog order.
func (e Entry) Codes() []string {
	out := make([]string, len(e.Classes))
	for i, c := range e.Classes {
		out[i] = c.Code
	}
	return out
}

// Catalog is the set of known trades plus the publisher details shown on
// rendered pages.
type Catalog struct {
	Publisher string           `yaml:"publisher"`
	QuoteURL  string           `yaml:"quote_url"`
	Trades    map[string]Entry `yaml:"trades"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for name, e := range c.Trades {
		e.Trade = domain.Trade(name)
		c.Trades[name] = e
	}
	return &c, nil
}

// Load reads the catalog at path. An empty path or a missing file yields
// the built-in default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks trade names and class codes.
func (c *Catalog) Validate() error {
	var errs []error
	for name, e := range c.Trades {
		if _, err := domain.ParseTrade(name); err != nil {
			errs = append(errs, fmt.Errorf("trade %q: %w", name, err))
			continue
		}
		if len(e.Classes) > 2 {
			errs = append(errs, fmt.Errorf("trade %q: at most 2 WC classes, got %d", name, len(e.Classes)))
		}
		for _, cl := range e.Classes {
			if _, err := domain.ParseMetric("wcRate", cl.Code); err != nil {
				errs = append(errs, fmt.Errorf("trade %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Names lists the catalog's trades, sorted.
func (c *Catalog) Names() []domain.Trade {
	out := make([]domain.Trade, 0, len(c.Trades))
	for name := range c.Trades {
		out = append(out, domain.Trade(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the entry for trade. A trade the catalog does not list
// gets a derived entry: its title-cased name and the given class codes
// without labels. Codes a listed trade's dataset carries beyond the
// catalog are appended unlabeled.
func (c *Catalog) Lookup(trade domain.Trade, classCodes []string) Entry {
	e, ok := c.Trades[string(trade)]
	if !ok {
		e = Entry{Trade: trade, Name: trade.Title()}
	}
	if e.Name == "" {
		e.Name = trade.Title()
	}

	known := make(map[string]bool, len(e.Classes))
	classes := append([]Class(nil), e.Classes...)
	for _, cl := range classes {
		known[cl.Code] = true
	}
	for _, code := range classCodes {
		if !known[code] {
			classes = append(classes, Class{Code: code})
		}
	}
	e.Classes = classes
	return e
}
