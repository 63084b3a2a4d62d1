package extractor

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"media-ingest/internal/database"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello world"},
		{"Zoë_Smith-Beach", "zoe smith beach"},
		{"  __multiple...separators__ ", "multiple separators"},
		{"CAFÉ", "cafe"},
		{"", ""},
		{"!!!", ""},
		{"ﬁle", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestContainsWords(t *testing.T) {
	tests := []struct {
		haystack string
		needle   string
		expected bool
	}{
		{"ann smith beach", "ann", true},
		{"annual report", "ann", false},
		{"ann smith beach", "smith beach", true},
		{"ann smith beach", "", false},
		{"media videos ann", "ann", true},
	}

	for _, tt := range tests {
		if got := containsWords(tt.haystack, tt.needle); got != tt.expected {
			t.Errorf("containsWords(%q, %q) = %v, expected %v", tt.haystack, tt.needle, got, tt.expected)
		}
	}
}

func setupExtractor(t *testing.T) (*Extractor, *database.Catalog) {
	t.Helper()
	cat, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return New(cat), cat
}

func TestExtractActors(t *testing.T) {
	ctx := context.Background()
	e, cat := setupExtractor(t)

	actors := []*database.Actor{
		{ID: "ac_b", Name: "Zoë Smith"},
		{ID: "ac_a", Name: "Jane Doe", Aliases: []string{"JD"}},
		{ID: "ac_c", Name: "Ann"},
	}
	for _, a := range actors {
		if err := cat.Actors.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	tests := []struct {
		path     string
		expected []string
	}{
		{"/media/videos/zoe-smith_and_jd.mp4", []string{"ac_a", "ac_b"}},
		{"/media/videos/Annual Report.mp4", []string{}},
		{"/media/Ann/holiday.mp4", []string{"ac_c"}},
		{"/media/videos/nobody.mp4", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := e.ExtractActors(ctx, tt.path)
			if err != nil {
				t.Fatalf("ExtractActors failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestExtractLabels(t *testing.T) {
	ctx := context.Background()
	e, cat := setupExtractor(t)

	if err := cat.Labels.Upsert(ctx, &database.Label{ID: "la_1", Name: "Outdoor", Aliases: []string{"outside"}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := e.ExtractLabels(ctx, "/images/OUTSIDE/photo.jpg")
	if err != nil {
		t.Fatalf("ExtractLabels failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"la_1"}) {
		t.Errorf("Expected [la_1], got %v", got)
	}
}

func TestExtractScenes(t *testing.T) {
	ctx := context.Background()
	e, cat := setupExtractor(t)

	scenes := []*database.Scene{
		{ID: "sc_1", Name: "Summer Trip", Path: "/videos/summer trip.mp4"},
		{ID: "sc_2", Name: "clip", Path: "/videos/other/clip.mp4"},
	}
	for _, s := range scenes {
		if err := cat.Scenes.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"name in path", "/images/summer_trip/001.jpg", []string{"sc_1"}},
		{"sidecar", "/videos/other/clip.jpg", []string{"sc_2"}},
		{"no match", "/images/winter/002.jpg", []string{}},
		{"own file", "/videos/summer trip.mp4", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractScenes(ctx, tt.path)
			if err != nil {
				t.Fatalf("ExtractScenes failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
