package domaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwygoda/bulkseo/internal/domain"
)

// Catalog serves products from memory. Unknown ids yield a 404 UpstreamFetchError.
type Catalog struct {
	mu       sync.Mutex
	Products map[int64]*domain.Product
	Fetched  []int64
}

// NewCatalog creates a catalog holding a generated product for each id.
func NewCatalog(ids ...int64) *Catalog {
	c := &Catalog{Products: make(map[int64]*domain.Product)}
	for _, id := range ids {
		c.Products[id] = &domain.Product{
			ID:               id,
			Name:             fmt.Sprintf("Product %d", id),
			Description:      "A product description",
			ShortDescription: "Short",
			Categories:       []domain.Term{{ID: 1, Name: "Shoes"}},
		}
	}
	return c
}

func (c *Catalog) FetchProduct(ctx context.Context, store domain.StoreCredentials, productID int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Fetched = append(c.Fetched, productID)
	p, ok := c.Products[productID]
	if !ok {
		return nil, &domain.UpstreamFetchError{ProductID: productID, StatusCode: 404}
	}
	cp := *p
	return &cp, nil
}

// Generator returns canned content, failing for the ids in Fail.
type Generator struct {
	mu       sync.Mutex
	Fail     map[int64]string
	Requests []domain.GenerationRequest
}

// NewGenerator creates a generator that fails for the given ids.
func NewGenerator(failing ...int64) *Generator {
	g := &Generator{Fail: make(map[int64]string)}
	for _, id := range failing {
		g.Fail[id] = "model overloaded"
	}
	return g
}

func (g *Generator) Name() string             { return "fake" }
func (g *Generator) Match(model string) bool { return true }

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if detail, ok := g.Fail[req.ProductID]; ok {
		return nil, &domain.GenerationError{ProductID: req.ProductID, Detail: detail}
	}
	return &domain.GeneratedContent{
		MetaTitle:        req.Name + " | Shop",
		MetaDescription:  "Buy " + req.Name,
		ShortDescription: "Short copy for " + req.Name,
		LongDescription:  "Long copy for " + req.Name,
	}, nil
}
