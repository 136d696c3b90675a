package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		env     string
		want    time.Duration
		wantErr bool
	}{
		{name: "unset runs once", want: 0},
		{name: "flag", flag: "30m", want: 30 * time.Minute},
		{name: "env fallback", env: "6h", want: 6 * time.Hour},
		{name: "flag wins over env", flag: " 1h ", env: "6h", want: time.Hour},
		{name: "garbage", flag: "soon", wantErr: true},
		{name: "negative", flag: "-5m", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInterval(tt.flag, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategoryList(t *testing.T) {
	all, err := parseCategoryList("  ")
	require.NoError(t, err)
	assert.Equal(t, entities.AllCategories(), all)

	some, err := parseCategoryList("products, Artist,products")
	require.NoError(t, err)
	assert.Equal(t, []entities.Category{entities.CategoryProduct, entities.CategoryArtist}, some)

	_, err = parseCategoryList("products,galleries")
	assert.Error(t, err)
}
