package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/bulkseo/internal/domain"
)

func TestGenerateSummary(t *testing.T) {
	a := NewAnalyzer()

	noShort := completeProduct()
	noShort.ShortDescription = ""

	empty := &domain.Product{ID: 3}

	results := []ProductHealth{
		a.AnalyzeProduct(completeProduct(), ""),
		a.AnalyzeProduct(noShort, ""),
		a.AnalyzeProduct(empty, ""),
	}
	s := GenerateSummary(results)

	assert.Equal(t, 3, s.TotalProducts)
	assert.Equal(t, 1, s.CompleteContent)
	assert.Equal(t, 2, s.MissingOnePlus)
	assert.Equal(t, 1, s.MissingThreePlus)
	assert.Equal(t, 1, s.CriticalIssues)
	assert.Equal(t, s.TotalProducts, s.MissingOnePlus+s.CompleteContent)

	require.Len(t, s.TopMissing, 6)
	// short_description is missing twice; the rest once each in checklist order
	assert.Equal(t, FieldCount{Field: FieldShortDescription, Count: 2}, s.TopMissing[0])
	assert.Equal(t, FieldMetaTitle, s.TopMissing[1].Field)
	assert.Equal(t, FieldMetaDescription, s.TopMissing[2].Field)
	assert.Equal(t, FieldLongDescription, s.TopMissing[3].Field)
}

func TestGenerateSummary_Empty(t *testing.T) {
	s := GenerateSummary(nil)
	assert.Equal(t, 0, s.TotalProducts)
	assert.NotNil(t, s.TopMissing)
	assert.Empty(t, s.TopMissing)
}

func TestGenerateSummary_TotalsAddUp(t *testing.T) {
	a := NewAnalyzer()
	var products []domain.Product
	for i := 0; i < 25; i++ {
		p := *completeProduct()
		p.ID = int64(i + 1)
		switch i % 3 {
		case 1:
			p.ShortDescription = ""
		case 2:
			p.Name = ""
			p.Description = ""
			p.MetaData = nil
		}
		products = append(products, p)
	}

	s := GenerateSummary(a.AnalyzeBatch(products, ""))
	assert.Equal(t, len(products), s.TotalProducts)
	assert.Equal(t, s.TotalProducts, s.MissingOnePlus+s.CompleteContent)
	assert.LessOrEqual(t, len(s.TopMissing), 6)
}
