package persistence_test

import (
	"testing"

	"github.com/artpar/appkernel/domain/persistence"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw  string
		want persistence.Mode
	}{
		{"true", persistence.Document},
		{"", persistence.Relational},
		{"false", persistence.Relational},
		{"TRUE", persistence.Relational},
		{"True", persistence.Relational},
		{"1", persistence.Relational},
		{"yes", persistence.Relational},
		{" true", persistence.Relational},
		{"true ", persistence.Relational},
		{"garbage", persistence.Relational},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := persistence.ParseMode(tt.raw); got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	if got := persistence.Relational.String(); got != "relational" {
		t.Errorf("Relational.String() = %s, want relational", got)
	}
	if got := persistence.Document.String(); got != "document" {
		t.Errorf("Document.String() = %s, want document", got)
	}
	if persistence.Relational.IsDocument() {
		t.Error("Relational.IsDocument() = true")
	}
	if !persistence.Document.IsDocument() {
		t.Error("Document.IsDocument() = false")
	}
}
