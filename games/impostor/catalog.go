/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrEmptyCatalog = errors.New("word catalog is empty")

//go:embed words.json
var defaultCatalogJSON []byte

// Catalog is a flat list of secret words.
type Catalog []WordEntry

// categoryGroup is the on-disk layout: words grouped under their category.
type categoryGroup struct {
	Category string   `json:"category"`
	Words    []string `json:"words"`
}

// ParseCatalog flattens a JSON list of category groups into a Catalog.
// Blank words are skipped; a catalog with no usable words is an error.
func ParseCatalog(data []byte) (Catalog, error) {
	var groups []categoryGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing word catalog: %w", err)
	}

	var catalog Catalog
	for _, g := range groups {
		category := strings.TrimSpace(g.Category)

		for _, w := range g.Words {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}

			catalog = append(catalog, WordEntry{
				Word:     w,
				Category: category,
			})
		}
	}

	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}

	return catalog, nil
}

// LoadCatalog reads a catalog file in the same format as the built-in one.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word catalog: %w", err)
	}

	return ParseCatalog(data)
}

// DefaultCatalog returns the catalog shipped with the binary.
func DefaultCatalog() Catalog {
	catalog, err := ParseCatalog(defaultCatalogJSON)
	if err != nil {
		panic("embedded word catalog: " + err.Error())
	}

	return catalog
}

// Categories lists each category once, in the order it first appears.
func (c Catalog) Categories() []string {
	seen := make(map[string]bool)
	categories := make([]string, 0)

	for _, e := range c {
		if seen[e.Category] {
			continue
		}
		seen[e.Category] = true
		categories = append(categories, e.Category)
	}

	return categories
}
