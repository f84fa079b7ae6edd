package validation

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "web", false},
		{"with separators", "web_app-v2.1", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"spaces inside", "web app", true},
		{"slash", "web/app", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
		{"at limit", strings.Repeat("a", MaxIDLength), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("collection", tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEntityID(t *testing.T) {
	if err := ValidateEntityID("user/42 with spaces"); err != nil {
		t.Fatalf("entity ids allow arbitrary characters, got %v", err)
	}
	if err := ValidateEntityID(""); err == nil {
		t.Fatalf("empty entity id must fail")
	}
	if err := ValidateEntityID(strings.Repeat("x", MaxEntityIDLength+1)); err == nil {
		t.Fatalf("oversized entity id must fail")
	}
}
