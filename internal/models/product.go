package models

import (
	"fmt"
	"time"
)

// SearchFilter bounds the price range of a search, in whole currency units.
type SearchFilter struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (f SearchFilter) Validate() error {
	if f.Min < 0 || f.Max < 0 {
		return fmt.Errorf("price filter bounds cannot be negative")
	}
	if f.Min > f.Max {
		return fmt.Errorf("price filter min %.2f is greater than max %.2f", f.Min, f.Max)
	}
	return nil
}

// ProductRecord is a fully resolved product. Partial records are never built.
type ProductRecord struct {
	ASIN   string  `json:"asin"`
	URL    string  `json:"url"`
	Title  string  `json:"title"`
	Seller string  `json:"seller"`
	Price  float64 `json:"price"`
}

// Report is the document written once per run.
type Report struct {
	Title       string          `json:"title"`
	Date        string          `json:"date"`
	BestItem    *ProductRecord  `json:"best_item"`
	Currency    string          `json:"currency"`
	Filters     SearchFilter    `json:"filters"`
	BaseLink    string          `json:"base_link"`
	Products    []ProductRecord `json:"products"`
	GeneratedAt time.Time       `json:"-"`
}
