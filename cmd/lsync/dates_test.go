package main

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", now, false},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"01/02/2024", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-01 09:15", time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC), false},
		{"flibbertigibbet", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := parseDate(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate_NaturalLanguage(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	got, err := parseDate("yesterday", now)
	if err != nil {
		t.Fatalf("parseDate(yesterday) error = %v", err)
	}
	if y, m, d := got.Date(); y != 2024 || m != time.March || d != 14 {
		t.Errorf("parseDate(yesterday) = %v, want 2024-03-14", got)
	}
}
