package config

import (
	"fmt"
	"os"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedProduct is one entry of the catalog seed file:
//
//	products:
//	  - id: "9780143127550"
//	    name: The Martian
//	    author: Andy Weir
//	    price: "12.99"
//	    stock: 10
type SeedProduct struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Author string `yaml:"author"`
	Price  string `yaml:"price"`
	Stock  int    `yaml:"stock"`
}

type seedFile struct {
	Products []SeedProduct `yaml:"products"`
}

// DefaultSeed is the catalog used when no seed file is configured.
var DefaultSeed = []SeedProduct{
	{ID: "9780143127550", Name: "The Martian", Author: "Andy Weir", Price: "12.99", Stock: 10},
	{ID: "9780262033848", Name: "Introduction to Algorithms", Author: "Cormen et al.", Price: "89.99", Stock: 3},
	{ID: "9780140449136", Name: "The Odyssey", Author: "Homer", Price: "9.50", Stock: 25},
}

// LoadSeed reads the YAML seed at path, or returns DefaultSeed when path is empty.
func LoadSeed(path string) ([]SeedProduct, error) {
	if path == "" {
		return DefaultSeed, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog seed %s: no products", path)
	}
	return f.Products, nil
}

// Products converts seed entries into validated catalog products.
func Products(seed []SeedProduct) ([]*domcatalog.Product, error) {
	out := make([]*domcatalog.Product, 0, len(seed))
	seen := make(map[string]bool, len(seed))
	for _, s := range seed {
		if seen[s.ID] {
			return nil, fmt.Errorf("catalog seed: %w: %s", domcatalog.ErrDuplicateProduct, s.ID)
		}
		seen[s.ID] = true
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog seed: price of %s: %w", s.ID, err)
		}
		p, err := domcatalog.NewProduct(s.ID, s.Name, s.Author, price, s.Stock)
		if err != nil {
			return nil, fmt.Errorf("catalog seed: %s: %w", s.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}
