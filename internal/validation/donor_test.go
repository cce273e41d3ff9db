package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDonor(t *testing.T) {
	tests := []struct {
		name  string
		donor Donor
		field string
	}{
		{
			name:  "valid named donor",
			donor: Donor{Name: "Aisha", Email: "aisha@example.com"},
		},
		{
			name:  "anonymous without name",
			donor: Donor{Anonymous: true, Email: "anon@example.com"},
		},
		{
			name:  "missing name",
			donor: Donor{Name: "   ", Email: "donor@example.com"},
			field: "name",
		},
		{
			name:  "invalid email",
			donor: Donor{Name: "Omar", Email: "not-an-email"},
			field: "email",
		},
		{
			name:  "missing email",
			donor: Donor{Name: "Omar"},
			field: "email",
		},
		{
			name:  "phone too long",
			donor: Donor{Name: "Omar", Email: "omar@example.com", Phone: strings.Repeat("1", 40)},
			field: "phone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDonor(tt.donor)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("ValidateDonor() unexpected error: %v", err)
				}
				return
			}

			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("ValidateDonor() error = %v, want *FieldError", err)
			}
			if fe.Field != tt.field {
				t.Fatalf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}
