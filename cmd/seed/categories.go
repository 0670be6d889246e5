package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin/binding"
	"gopkg.in/yaml.v3"

	"storefront/internal/categories"
	"storefront/internal/httpx"
)

// parseCategories decodes a YAML list of categories and validates each entry
// with the same rules as the admin API.
func parseCategories(r io.Reader) ([]categories.Input, error) {
	var reqs []categories.CreateCategoryReq
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&reqs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("category file is empty")
		}
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	httpx.RegisterValidators()
	seen := make(map[string]int, len(reqs))
	out := make([]categories.Input, 0, len(reqs))
	for i, req := range reqs {
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			return nil, fmt.Errorf("category #%d (%q): %w", i+1, req.Name, err)
		}
		in := req.ToInput()
		if prev, dup := seen[in.Slug]; dup {
			return nil, fmt.Errorf("category #%d duplicates #%d (slug %q)", i+1, prev, in.Slug)
		}
		seen[in.Slug] = i + 1
		out = append(out, in)
	}
	return out, nil
}
