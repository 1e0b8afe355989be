package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cwygoda/bulkseo/internal/domain"
)

const systemPrompt = `You write SEO content for e-commerce product pages.
Respond with a single JSON object with exactly these string keys:
short_description, long_description, meta_title, meta_description, alt_text, focus_keywords, permalink.
meta_title must be 30 to 60 characters, meta_description 80 to 160 characters.
short_description needs at least 10 words and long_description at least 100 words.
focus_keywords is a comma separated list. permalink is a lowercase URL slug.`

// DefaultPromptTemplate is used when a job carries no template.
const DefaultPromptTemplate = `Write product content for "{{name}}".
Categories: {{categories}}
Current short description: {{short_description}}
Current description: {{description}}`

var errEmptyContent = errors.New("response contained no content")

// renderPrompt fills the template placeholders from the request.
func renderPrompt(req domain.GenerationRequest) string {
	tmpl := req.PromptTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultPromptTemplate
	}
	r := strings.NewReplacer(
		"{{name}}", req.Name,
		"{{description}}", req.Description,
		"{{short_description}}", req.ShortDescription,
		"{{categories}}", strings.Join(req.Categories, ", "),
	)
	out := r.Replace(tmpl)
	if !strings.Contains(tmpl, "{{name}}") {
		out += "\n\nProduct: " + req.Name
	}
	return out
}

// contentResponse accepts focus_keywords as a string or a list.
type contentResponse struct {
	ShortDescription string          `json:"short_description"`
	LongDescription  string          `json:"long_description"`
	MetaTitle        string          `json:"meta_title"`
	MetaDescription  string          `json:"meta_description"`
	AltText          string          `json:"alt_text"`
	FocusKeywords    json.RawMessage `json:"focus_keywords"`
	Permalink        string          `json:"permalink"`
}

func parseContent(raw string) (*domain.GeneratedContent, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var resp contentResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	content := &domain.GeneratedContent{
		ShortDescription: strings.TrimSpace(resp.ShortDescription),
		LongDescription:  strings.TrimSpace(resp.LongDescription),
		MetaTitle:        strings.TrimSpace(resp.MetaTitle),
		MetaDescription:  strings.TrimSpace(resp.MetaDescription),
		AltText:          strings.TrimSpace(resp.AltText),
		FocusKeywords:    keywords(resp.FocusKeywords),
		Permalink:        strings.TrimSpace(resp.Permalink),
	}
	if *content == (domain.GeneratedContent{}) {
		return nil, errEmptyContent
	}
	return content, nil
}

func keywords(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return ""
}
