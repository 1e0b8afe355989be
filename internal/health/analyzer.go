// Package health scores product content against a fixed SEO checklist.
package health

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cwygoda/bulkseo/internal/domain"
)

// FieldStatus is the outcome of checking one field.
type FieldStatus string

const (
	FieldComplete FieldStatus = "complete"
	FieldPoor     FieldStatus = "poor"
	FieldMissing  FieldStatus = "missing"
)

// Status is the overall content status of a product.
type Status string

const (
	StatusComplete       Status = "complete"
	StatusNeedsAttention Status = "needs_attention"
	StatusCritical       Status = "critical"
)

// FieldCheck is the result of scoring one checklist field.
type FieldCheck struct {
	Field  string      `json:"field"`
	Status FieldStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// ProductHealth is the content health report for one product.
type ProductHealth struct {
	ProductID     int64        `json:"product_id"`
	ProductName   string       `json:"product_name"`
	Checks        []FieldCheck `json:"checks"`
	MissingFields []string     `json:"missing_fields"`
	Status        Status       `json:"overall_status"`
	SEOScore      int          `json:"seo_score"`
	LastChecked   time.Time    `json:"last_checked"`
}

// Analyzer scores products. The zero value is not usable; use NewAnalyzer.
type Analyzer struct {
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewAnalyzer creates an Analyzer using the wall clock.
func NewAnalyzer() *Analyzer {
	// Stripped tags become spaces so adjacent blocks do not merge words.
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Analyzer{
		policy: policy,
		now:    time.Now,
	}
}

// WithClock returns a copy of a that stamps reports using now.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	c := *a
	c.now = now
	return &c
}

// AnalyzeProduct scores p. plugin selects the SEO plugin dialect whose meta
// keys are consulted first; an empty or unknown plugin uses only the
// universal keys and the product's own attributes.
func (a *Analyzer) AnalyzeProduct(p *domain.Product, plugin string) ProductHealth {
	plugin = NormalizePlugin(plugin)

	report := ProductHealth{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Checks:        make([]FieldCheck, 0, len(Checklist)),
		MissingFields: []string{},
		LastChecked:   a.now().UTC(),
	}

	var complete, poor, missing int
	for _, field := range Checklist {
		check := scoreField(field, a.lookup(p, field.Name, plugin))
		report.Checks = append(report.Checks, check)
		switch check.Status {
		case FieldComplete:
			complete++
		case FieldPoor:
			poor++
		case FieldMissing:
			missing++
			report.MissingFields = append(report.MissingFields, field.Name)
		}
	}

	switch {
	case missing == 0 && poor == 0:
		report.Status = StatusComplete
	case missing >= 3 || missing+poor >= 4:
		report.Status = StatusCritical
	default:
		report.Status = StatusNeedsAttention
	}
	report.SEOScore = int(math.Round(100 * (float64(complete) + 0.5*float64(poor)) / float64(len(Checklist))))
	return report
}

// AnalyzeBatch scores every product in order.
func (a *Analyzer) AnalyzeBatch(products []domain.Product, plugin string) []ProductHealth {
	out := make([]ProductHealth, 0, len(products))
	for i := range products {
		out = append(out, a.AnalyzeProduct(&products[i], plugin))
	}
	return out
}

// lookup resolves a field value: dialect keys, then universal keys, then the
// product attribute. The first candidate with text left after stripping wins.
func (a *Analyzer) lookup(p *domain.Product, field, plugin string) string {
	for _, key := range dialects[plugin][field] {
		if v := a.metaText(p, key); v != "" {
			return v
		}
	}
	for _, key := range universalKeys[field] {
		if v := a.metaText(p, key); v != "" {
			return v
		}
	}
	return a.stripMarkup(directValue(p, field))
}

func (a *Analyzer) metaText(p *domain.Product, key string) string {
	for _, md := range p.MetaData {
		if md.Key != key {
			continue
		}
		if v := a.stripMarkup(md.StringValue()); v != "" {
			return v
		}
	}
	return ""
}

func directValue(p *domain.Product, field string) string {
	switch field {
	case FieldMetaTitle:
		return p.Name
	case FieldMetaDescription, FieldShortDescription:
		return p.ShortDescription
	case FieldLongDescription:
		return p.Description
	case FieldAltText:
		if len(p.Images) > 0 {
			return p.Images[0].Alt
		}
	case FieldFocusKeywords:
		return strings.Join(p.TagNames(), ", ")
	case FieldPermalink:
		return p.Permalink
	}
	return ""
}

// stripMarkup removes tags and entities and collapses whitespace.
func (a *Analyzer) stripMarkup(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(a.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

func scoreField(field ContentField, value string) FieldCheck {
	check := FieldCheck{Field: field.Name}
	if value == "" {
		check.Status = FieldMissing
		if field.Required {
			check.Reason = "Required field is empty"
		} else {
			check.Reason = "Optional field is empty"
		}
		return check
	}
	if field.MinLength > 0 {
		if n := utf8.RuneCountInString(value); n < field.MinLength {
			check.Status = FieldPoor
			check.Reason = fmt.Sprintf("Too short: %d characters (minimum %d)", n, field.MinLength)
			return check
		}
	}
	if field.MinWords > 0 {
		if n := len(strings.Fields(value)); n < field.MinWords {
			check.Status = FieldPoor
			check.Reason = fmt.Sprintf("Too few words: %d (minimum %d)", n, field.MinWords)
			return check
		}
	}
	check.Status = FieldComplete
	return check
}
