package health

import "strings"

// Field names of the content checklist.
const (
	FieldMetaTitle        = "meta_title"
	FieldMetaDescription  = "meta_description"
	FieldShortDescription = "short_description"
	FieldLongDescription  = "long_description"
	FieldAltText          = "alt_text"
	FieldFocusKeywords    = "focus_keywords"
	FieldPermalink        = "permalink"
)

// ContentField describes the thresholds a product field is scored against.
// A zero MinLength or MinWords means no threshold.
type ContentField struct {
	Name      string
	MinLength int
	MinWords  int
	Required  bool
}

// Checklist is the fixed set of fields every product is scored on, in report order.
var Checklist = []ContentField{
	{Name: FieldMetaTitle, MinLength: 30, Required: true},
	{Name: FieldMetaDescription, MinLength: 80, Required: true},
	{Name: FieldShortDescription, MinWords: 10, Required: true},
	{Name: FieldLongDescription, MinWords: 100, Required: true},
	{Name: FieldAltText, MinLength: 5},
	{Name: FieldFocusKeywords},
	{Name: FieldPermalink},
}

// Supported SEO plugin dialects.
const (
	PluginYoast        = "yoast"
	PluginRankMath     = "rankmath"
	PluginAIOSEO       = "aioseo"
	PluginSEOPress     = "seopress"
	PluginSEOFramework = "seoframework"
)

// dialects maps plugin -> field -> product meta keys that plugin writes.
var dialects = map[string]map[string][]string{
	PluginYoast: {
		FieldMetaTitle:       {"_yoast_wpseo_title"},
		FieldMetaDescription: {"_yoast_wpseo_metadesc"},
		FieldFocusKeywords:   {"_yoast_wpseo_focuskw"},
	},
	PluginRankMath: {
		FieldMetaTitle:       {"rank_math_title"},
		FieldMetaDescription: {"rank_math_description"},
		FieldFocusKeywords:   {"rank_math_focus_keyword"},
	},
	PluginAIOSEO: {
		FieldMetaTitle:       {"_aioseo_title"},
		FieldMetaDescription: {"_aioseo_description"},
		FieldFocusKeywords:   {"_aioseo_keywords"},
	},
	PluginSEOPress: {
		FieldMetaTitle:       {"_seopress_titles_title"},
		FieldMetaDescription: {"_seopress_titles_desc"},
		FieldFocusKeywords:   {"_seopress_analysis_target_kw"},
	},
	PluginSEOFramework: {
		FieldMetaTitle:       {"_genesis_title"},
		FieldMetaDescription: {"_genesis_description"},
	},
}

// universalKeys are meta keys checked regardless of plugin.
var universalKeys = map[string][]string{
	FieldMetaTitle:       {"_meta_title", "meta_title", "_seo_title"},
	FieldMetaDescription: {"_meta_description", "meta_description", "_seo_description"},
	FieldFocusKeywords:   {"_focus_keywords", "focus_keywords", "_keywords"},
}

// NormalizePlugin lowercases and trims a plugin name.
func NormalizePlugin(plugin string) string {
	return strings.ToLower(strings.TrimSpace(plugin))
}

// ValidPlugin reports whether plugin is empty or a known dialect.
func ValidPlugin(plugin string) bool {
	plugin = NormalizePlugin(plugin)
	if plugin == "" {
		return true
	}
	_, ok := dialects[plugin]
	return ok
}

// Plugins returns the known dialect names.
func Plugins() []string {
	return []string{PluginYoast, PluginRankMath, PluginAIOSEO, PluginSEOPress, PluginSEOFramework}
}
