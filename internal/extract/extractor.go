// Package extract classifies a fetched status page. Everything here is pure:
// the same document and period always give the same result.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"rcsync/internal/domain"
)

const (
	DefaultMarkerPhrase   = "transaction details"
	DefaultCommodityLabel = "frice"

	StrategyQuantity = "quantity"
	StrategyPresence = "presence"
)

// DefaultAllowedQuantities are the entitlement sizes a completed transaction can show.
var DefaultAllowedQuantities = []string{"5.000", "10.000", "15.000", "20.000", "25.000", "30.000", "35.000", "40.000"}

var quantityPattern = regexp.MustCompile(`\b\d{1,2}\.000\b`)

type Result struct {
	Status   domain.Status
	Quantity string
}

type Extractor interface {
	Extract(doc []byte, period domain.ReportingPeriod) Result
}

type Options struct {
	MarkerPhrase      string
	CommodityLabel    string
	AllowedQuantities []string
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.MarkerPhrase) == "" {
		o.MarkerPhrase = DefaultMarkerPhrase
	}
	if strings.TrimSpace(o.CommodityLabel) == "" {
		o.CommodityLabel = DefaultCommodityLabel
	}
	if len(o.AllowedQuantities) == 0 {
		o.AllowedQuantities = DefaultAllowedQuantities
	}
	o.MarkerPhrase = strings.ToLower(strings.TrimSpace(o.MarkerPhrase))
	o.CommodityLabel = strings.ToLower(strings.TrimSpace(o.CommodityLabel))
	return o
}

// New returns the extractor for a configured strategy name.
func New(strategy string, opts Options) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyQuantity:
		return NewQuantityExtractor(opts), nil
	case StrategyPresence:
		return NewPresenceExtractor(opts), nil
	default:
		return nil, fmt.Errorf("unknown extract strategy %q (want %s or %s)", strategy, StrategyQuantity, StrategyPresence)
	}
}

// QuantityExtractor looks for a measured entitlement row inside the
// period's transaction table.
type QuantityExtractor struct {
	opts    Options
	allowed map[string]bool
}

func NewQuantityExtractor(opts Options) *QuantityExtractor {
	opts = opts.withDefaults()
	allowed := make(map[string]bool, len(opts.AllowedQuantities))
	for _, q := range opts.AllowedQuantities {
		allowed[strings.TrimSpace(q)] = true
	}
	return &QuantityExtractor{opts: opts, allowed: allowed}
}

func (e *QuantityExtractor) Extract(doc []byte, period domain.ReportingPeriod) Result {
	tables, ok := periodTables(doc, e.opts.MarkerPhrase, period)
	if !ok {
		return Result{Status: domain.StatusNotDone}
	}
	for _, table := range tables {
		if qty, found := e.scanTable(table); found {
			return Result{Status: domain.StatusDone, Quantity: qty}
		}
	}
	return Result{Status: domain.StatusNotDone}
}

func (e *QuantityExtractor) scanTable(table *goquery.Selection) (string, bool) {
	var qty string
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := rowCells(row)
		if e.isHeaderRow(cells) {
			return true
		}
		for _, cell := range cells {
			if q, ok := e.matchQuantity(cell); ok {
				qty = q
				return false
			}
		}
		return true
	})
	return qty, qty != ""
}

func (e *QuantityExtractor) isHeaderRow(cells []string) bool {
	for _, c := range cells {
		if strings.Contains(strings.ToLower(c), e.opts.CommodityLabel) {
			return true
		}
	}
	return false
}

// matchQuantity only accepts a whole-token value from the allowed set, so
// "100.000" never reads as "10.000".
func (e *QuantityExtractor) matchQuantity(cell string) (string, bool) {
	if !e.mentionsAllowed(cell) {
		return "", false
	}
	for _, m := range quantityPattern.FindAllString(cell, -1) {
		if e.allowed[m] {
			return m, true
		}
	}
	return "", false
}

func (e *QuantityExtractor) mentionsAllowed(cell string) bool {
	for q := range e.allowed {
		if strings.Contains(cell, q) {
			return true
		}
	}
	return false
}

// PresenceExtractor treats any table naming both the marker and the period
// as proof of a transaction. It never reports a quantity.
type PresenceExtractor struct {
	opts Options
}

func NewPresenceExtractor(opts Options) *PresenceExtractor {
	return &PresenceExtractor{opts: opts.withDefaults()}
}

func (e *PresenceExtractor) Extract(doc []byte, period domain.ReportingPeriod) Result {
	if _, ok := periodTables(doc, e.opts.MarkerPhrase, period); ok {
		return Result{Status: domain.StatusDone}
	}
	return Result{Status: domain.StatusNotDone}
}

// periodTables returns, in document order, every table whose text carries
// both the marker phrase and the reporting period.
func periodTables(doc []byte, marker string, period domain.ReportingPeriod) ([]*goquery.Selection, bool) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, false
	}
	var out []*goquery.Selection
	parsed.Find("table").Each(func(_ int, table *goquery.Selection) {
		text := strings.ToLower(normalizedText(table))
		if strings.Contains(text, marker) && period.Matches(text) {
			out = append(out, table)
		}
	})
	return out, len(out) > 0
}

func rowCells(row *goquery.Selection) []string {
	var cells []string
	row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, normalizedText(cell))
	})
	return cells
}

// normalizedText joins the text nodes under sel with single spaces, so
// adjacent cells never run together.
func normalizedText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
