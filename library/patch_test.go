package library

import (
	"errors"
	"testing"
)

func TestParseToolPatch(t *testing.T) {
	cases := []struct {
		name    string
		fields  map[string]string
		wantErr bool
	}{
		{"name only", map[string]string{"name": "Pick"}, false},
		{"status", map[string]string{"status": "in_repair"}, false},
		{"all fields", map[string]string{"name": "Pick", "category": "dig", "status": "active", "estimated_value": "4"}, false},
		{"unknown field", map[string]string{"available_quantity": "9"}, true},
		{"bad status", map[string]string{"status": "lost"}, true},
		{"bad number", map[string]string{"estimated_value": "cheap"}, true},
		{"negative value", map[string]string{"estimated_value": "-1"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseToolPatch(tc.fields)
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("want ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if p.Empty() {
				t.Fatalf("parsed patch is empty")
			}
		})
	}
}

func TestParseUserPatch(t *testing.T) {
	p, err := ParseUserPatch(map[string]string{"role": "administrator", "phone": "555 1234 567"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Role == nil || *p.Role != RoleAdministrator || p.Phone == nil {
		t.Fatalf("unexpected patch %+v", p)
	}
	if p.Names != nil || p.Password != nil {
		t.Fatalf("unset fields must stay nil")
	}

	for _, fields := range []map[string]string{
		{"is_active": "true"},
		{"role": "mayor"},
		{"phone": "call me"},
		{"names": "J"},
	} {
		if _, err := ParseUserPatch(fields); !errors.Is(err, ErrValidation) {
			t.Fatalf("%v: want ErrValidation, got %v", fields, err)
		}
	}
}
