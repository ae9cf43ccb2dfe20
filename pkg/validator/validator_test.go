package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/pkg/errors"
)

type dose struct {
	Amount string `json:"amount" validate:"required,max=5"`
}

type prescription struct {
	Name  string `json:"medicine_name" validate:"required,min=2"`
	Kind  string `json:"kind" validate:"omitempty,oneof=tablet syrup"`
	Dose  dose   `json:"dose"`
	Notes string `validate:"max=3"`
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name     string
		in       prescription
		wantRule string
		wantMsg  string
	}{
		{
			name: "valid",
			in:   prescription{Name: "Metformin", Kind: "tablet", Dose: dose{Amount: "500"}},
		},
		{
			name:     "missing name",
			in:       prescription{Dose: dose{Amount: "1"}},
			wantRule: "medicine_name",
			wantMsg:  "medicine_name is required",
		},
		{
			name:     "oneof",
			in:       prescription{Name: "Metformin", Kind: "patch", Dose: dose{Amount: "1"}},
			wantRule: "kind",
			wantMsg:  "kind must be one of tablet syrup",
		},
		{
			name:     "nested field",
			in:       prescription{Name: "Metformin", Dose: dose{Amount: "500000"}},
			wantRule: "dose.amount",
			wantMsg:  "dose.amount is too long 5",
		},
		{
			name:     "untagged field keeps go name",
			in:       prescription{Name: "Metformin", Dose: dose{Amount: "1"}, Notes: "long"},
			wantRule: "Notes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantRule == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrValidation))
			assert.Equal(t, tt.wantRule, errors.RuleOf(err))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
		})
	}
}

func TestValidateNonStruct(t *testing.T) {
	err := New().Validate("not a struct")
	assert.True(t, errors.HasCode(err, errors.ErrInternal))
}
