package domain

import (
	"encoding/json"
	"fmt"
)

// Product is a catalog product record as returned by the store.
type Product struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Permalink        string     `json:"permalink"`
	Description      string     `json:"description"`
	ShortDescription string     `json:"short_description"`
	Categories       []Term     `json:"categories"`
	Tags             []Term     `json:"tags"`
	Images           []Image    `json:"images"`
	MetaData         []MetaData `json:"meta_data"`
}

// Term is a category or tag attached to a product.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Image is a product image.
type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// MetaData is a generic key/value entry. Values are arbitrary JSON.
type MetaData struct {
	ID    int64           `json:"id,omitempty"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// StringValue renders the value as text. Objects and arrays yield "".
func (m MetaData) StringValue() string {
	if len(m.Value) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(m.Value, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprint(t)
	case bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// CategoryNames returns the names of the product's categories.
func (p *Product) CategoryNames() []string {
	return termNames(p.Categories)
}

// TagNames returns the names of the product's tags.
func (p *Product) TagNames() []string {
	return termNames(p.Tags)
}

func termNames(terms []Term) []string {
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}
