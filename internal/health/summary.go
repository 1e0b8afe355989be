package health

import "sort"

// maxTopMissing bounds the number of fields listed in a summary.
const maxTopMissing = 6

// FieldCount is how many products are missing a field.
type FieldCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// Summary aggregates a set of product reports.
type Summary struct {
	TotalProducts    int          `json:"total_products"`
	CompleteContent  int          `json:"complete_content"`
	MissingOnePlus   int          `json:"missing_one_plus"`
	MissingThreePlus int          `json:"missing_three_plus"`
	CriticalIssues   int          `json:"critical_issues"`
	TopMissing       []FieldCount `json:"top_missing_fields"`
}

// GenerateSummary counts products by overall status and ranks the most
// frequently missing fields. Ties keep checklist order.
func GenerateSummary(results []ProductHealth) Summary {
	s := Summary{TotalProducts: len(results), TopMissing: []FieldCount{}}

	counts := make(map[string]int)
	for _, r := range results {
		switch r.Status {
		case StatusComplete:
			s.CompleteContent++
		case StatusNeedsAttention:
			s.MissingOnePlus++
		case StatusCritical:
			s.MissingOnePlus++
			s.MissingThreePlus++
			s.CriticalIssues++
		}
		for _, f := range r.MissingFields {
			counts[f]++
		}
	}

	for _, field := range Checklist {
		if n := counts[field.Name]; n > 0 {
			s.TopMissing = append(s.TopMissing, FieldCount{Field: field.Name, Count: n})
		}
	}
	sort.SliceStable(s.TopMissing, func(i, j int) bool {
		return s.TopMissing[i].Count > s.TopMissing[j].Count
	})
	if len(s.TopMissing) > maxTopMissing {
		s.TopMissing = s.TopMissing[:maxTopMissing]
	}
	return s
}
