package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"Invoice Bot", "invoice-bot"},
		{"  CRM Sync 2.0  ", "crm-sync-2-0"},
		{"Über-Automation!", "ber-automation"},
		{"---", ""},
		{"already-slugged", "already-slugged"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, slugify(tt.title), "slugify(%q)", tt.title)
	}
}
