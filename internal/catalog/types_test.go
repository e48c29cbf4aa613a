package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenBriefConcatenatesFields(t *testing.T) {
	b := Brief{
		Title:        "Mobile game key art",
		Description:  "We need striking character art for a fantasy RPG.",
		Modality:     "remote",
		Contract:     "fixed_price",
		Specialty:    "character_illustration",
		Requirements: "Experience with painterly fantasy styles.",
	}
	got := FlattenBrief(b)

	assert.Contains(t, got, "Mobile game key art")
	assert.Contains(t, got, "character illustration")
	assert.Contains(t, got, "We need striking character art for a fantasy RPG.")
	assert.Contains(t, got, "Experience with painterly fantasy styles.")
	assert.Contains(t, got, "remote")
	assert.Contains(t, got, "fixed price")
	assert.NotContains(t, got, "_")
}

func TestFlattenBriefOmitsEmptyOptionalFields(t *testing.T) {
	b := Brief{Title: "T", Description: "D"}
	got := FlattenBrief(b)
	assert.Contains(t, got, "T")
	assert.Contains(t, got, "D")
	assert.NotContains(t, got, "Technical requirements")
}
