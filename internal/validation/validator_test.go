// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

type sinkStruct struct {
	Name       string `validate:"required"`
	Type       string `validate:"required,oneof=file database badger memory"`
	MaxBackups int    `validate:"gte=0"`
	BatchSize  int    `validate:"min=1,max=10000"`
	Pattern    string `validate:"omitempty,regexp"`
	Addr       string `validate:"omitempty,listenaddr"`
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input sinkStruct
	}{
		{
			name:  "minimal",
			input: sinkStruct{Name: "primary", Type: "file", BatchSize: 1},
		},
		{
			name: "all fields",
			input: sinkStruct{
				Name:       "db",
				Type:       "database",
				MaxBackups: 5,
				BatchSize:  10000,
				Pattern:    `(?i)^tenant[_-]?id$`,
				Addr:       ":9090",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() returned unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		input     sinkStruct
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{
			name:      "missing name",
			input:     sinkStruct{Type: "file", BatchSize: 1},
			wantField: "Name",
			wantTag:   "required",
			wantMsg:   "Name is required",
		},
		{
			name:      "unknown type",
			input:     sinkStruct{Name: "x", Type: "s3", BatchSize: 1},
			wantField: "Type",
			wantTag:   "oneof",
			wantMsg:   "Type must be one of: file database badger memory",
		},
		{
			name:      "negative backups",
			input:     sinkStruct{Name: "x", Type: "file", BatchSize: 1, MaxBackups: -1},
			wantField: "MaxBackups",
			wantTag:   "gte",
			wantMsg:   "MaxBackups must be greater than or equal to 0",
		},
		{
			name:      "batch size zero",
			input:     sinkStruct{Name: "x", Type: "file"},
			wantField: "BatchSize",
			wantTag:   "min",
			wantMsg:   "BatchSize must be at least 1",
		},
		{
			name:      "bad pattern",
			input:     sinkStruct{Name: "x", Type: "file", BatchSize: 1, Pattern: "("},
			wantField: "Pattern",
			wantTag:   "regexp",
			wantMsg:   "Pattern must be a valid regular expression",
		},
		{
			name:      "bad address",
			input:     sinkStruct{Name: "x", Type: "file", BatchSize: 1, Addr: "localhost"},
			wantField: "Addr",
			wantTag:   "listenaddr",
			wantMsg:   "Addr must be a host:port address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() expected error, got nil")
			}

			var sve *StructValidationError
			if !errors.As(err, &sve) {
				t.Fatalf("expected *StructValidationError, got %T", err)
			}

			errs := sve.Errors()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
			if errs[0].Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", errs[0].Error(), tt.wantMsg)
			}
		})
	}
}

func TestStructValidationError_Multiple(t *testing.T) {
	err := ValidateStruct(&sinkStruct{})
	if err == nil {
		t.Fatal("expected error")
	}

	var sve *StructValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected *StructValidationError, got %T", err)
	}

	fields := sve.Fields()
	for _, f := range []string{"Name", "Type", "BatchSize"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("Fields() missing %q: %v", f, fields)
		}
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("combined message should join errors: %q", err.Error())
	}
}

func TestStructValidationError_Empty(t *testing.T) {
	ve := &StructValidationError{}
	if ve.Error() != "validation failed" {
		t.Errorf("Error() = %q", ve.Error())
	}
}

type nested struct {
	Inner sinkStruct `validate:"required"`
}

func TestNestedStructValidation(t *testing.T) {
	err := ValidateStruct(&nested{Inner: sinkStruct{Name: "x", Type: "memory", BatchSize: 1}})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err = ValidateStruct(&nested{Inner: sinkStruct{Name: "x", Type: "memory"}})
	if err == nil {
		t.Error("expected nested validation error")
	}
}

type sinkEntry struct {
	Name string `koanf:"name" validate:"required"`
	Kind string `json:"kind,omitempty" validate:"omitempty,oneof=file memory"`
}

type pipelineDecl struct {
	BatchSize int         `koanf:"batch_size" validate:"gte=1"`
	Sinks     []sinkEntry `koanf:"sinks" validate:"dive"`
}

func TestValidateStruct_ConfigPaths(t *testing.T) {
	err := ValidateStruct(&pipelineDecl{
		BatchSize: 0,
		Sinks:     []sinkEntry{{Name: "ok"}, {Kind: "s3"}},
	})

	var sve *StructValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected *StructValidationError, got %T", err)
	}

	want := map[string]string{
		"batch_size":    "batch_size must be greater than or equal to 1",
		"sinks[1].name": "sinks[1].name is required",
		"sinks[1].kind": "sinks[1].kind must be one of: file memory",
	}
	got := sve.Fields()
	for path, msg := range want {
		if got[path] != msg {
			t.Errorf("Fields()[%q] = %q, want %q", path, got[path], msg)
		}
	}
	if len(got) != len(want) {
		t.Errorf("Fields() = %v, want %d entries", got, len(want))
	}
}

func TestValidationError_FieldAndPath(t *testing.T) {
	err := ValidateStruct(&pipelineDecl{BatchSize: 1, Sinks: []sinkEntry{{}}})

	var sve *StructValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected *StructValidationError, got %T", err)
	}
	e := sve.Errors()[0]
	if e.Field() != "name" {
		t.Errorf("Field() = %q, want %q", e.Field(), "name")
	}
	if e.Path() != "sinks[0].name" {
		t.Errorf("Path() = %q, want %q", e.Path(), "sinks[0].name")
	}
}
