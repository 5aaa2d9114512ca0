package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // valid UUIDv7
		"0188D0F2-7B8C-7B4A-8A2B-6B8B8B8B8B8B", // valid UUIDv7 (uppercase)
	}
	invalid := []string{
		"123e4567-e89b-12d3-a456-426614174000", // not v7
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",     // missing dashes
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // invalid hex
		"",                                     // empty
	}
	for _, uuid := range valid {
		if !IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = false, want true", uuid)
		}
	}
	for _, uuid := range invalid {
		if IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = true, want false", uuid)
		}
	}
}

type sample struct {
	Owner   string `json:"-" validate:"required"`
	From    string `json:"from" validate:"required,datetime=2006-01-02"`
	Version string `json:"snapshot,omitempty" validate:"omitempty,uuid7"`
	Node    string `json:"node,omitempty" validate:"omitempty,max=4"`
}

func TestStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		err := Struct(sample{Owner: "u1", From: "2024-03-01", Version: "0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b"})
		assert.NoError(t, err)
	})

	t.Run("reports json field names", func(t *testing.T) {
		err := Struct(sample{From: "03/01/2024", Version: "not-a-uuid", Node: "toolong"})
		require.Error(t, err)

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		m := verrs.ToMap()
		assert.Equal(t, "is required", m["owner"])
		assert.Equal(t, "must be a date in YYYY-MM-DD format", m["from"])
		assert.Contains(t, m, "snapshot")
		assert.Equal(t, "must be at most 4 characters", m["node"])
	})
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "from", Message: "is required"},
		{Field: "to", Message: "is required"},
	}
	assert.Equal(t, "from: is required; to: is required", errs.Error())
}
