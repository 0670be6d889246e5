package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategories(t *testing.T) {
	in, err := parseCategories(strings.NewReader(`
- name: "  Ethnic Wear "
  description: Sarees and kurtas
  featured: true
  sortOrder: 2
  subcategories:
    - name: Sarees
    - name: Kurtas
- name: Accessories
  isActive: false
`))
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, "Ethnic Wear", in[0].Name)
	assert.Equal(t, "ethnic-wear", in[0].Slug)
	assert.True(t, in[0].Featured)
	assert.Len(t, in[0].Subcategories, 2)
	assert.False(t, in[1].IsActive)
}

func TestParseCategoriesRejects(t *testing.T) {
	_, err := parseCategories(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")

	_, err = parseCategories(strings.NewReader("- name: X\n"))
	assert.ErrorContains(t, err, "category #1")

	_, err = parseCategories(strings.NewReader("- name: Home Decor\n- name: home decor\n"))
	assert.ErrorContains(t, err, "duplicates #1")

	_, err = parseCategories(strings.NewReader("- name: Bags\n  colour: red\n"))
	assert.ErrorContains(t, err, "decode categories")
}

func TestBundledCategoriesFile(t *testing.T) {
	f, err := os.Open("../../seed/categories.yaml")
	require.NoError(t, err)
	defer f.Close()
	in, err := parseCategories(f)
	require.NoError(t, err)
	assert.NotEmpty(t, in)
}
