package description_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelqueue/internal/description"
	"reelqueue/internal/queue"
	"reelqueue/internal/services"
	"reelqueue/internal/testsupport"
)

func TestComposeLabelsAndOmitsEmpty(t *testing.T) {
	movie := &queue.Movie{
		Overview:        "A hacker learns the truth.",
		Tagline:         "Welcome to the Real World!",
		Genres:          []string{"Action", "Science Fiction"},
		SpokenLanguages: []string{"English"},
	}
	got := description.Compose(movie)
	want := "Overview: A hacker learns the truth. Tagline: Welcome to the Real World. Genres: Action, Science Fiction. Spoken Languages: English"
	if got != want {
		t.Fatalf("Compose mismatch\n got: %q\nwant: %q", got, want)
	}
	if description.Compose(&queue.Movie{}) != "" {
		t.Fatal("expected empty composition for empty movie")
	}
}

func TestNormalize(t *testing.T) {
	n := description.NewNormalizer(10)
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapse whitespace", "  a \t\n b  ", "a b"},
		{"strip control and format", "a\u0007b\u200bc", "abc"},
		{"nfc", "e\u0301", "\u00e9"},
		{"truncate on rune boundary", "äöüäöüäöüäöü", "äöüäöüäöüä"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := n.Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
			again, _ := n.Normalize(got)
			if again != got {
				t.Fatalf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeEmptyIsValidationError(t *testing.T) {
	_, err := description.NewNormalizer(0).Normalize(" \u200b\t ")
	if !errors.Is(err, description.ErrEmptyDescription) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected empty description validation error, got %v", err)
	}
}

func TestStageStoresDescription(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if _, err := store.SaveMovie(ctx, &queue.Movie{TMDBID: 5, Title: "Five", Overview: "Plot.", Genres: []string{"Drama"}}); err != nil {
		t.Fatalf("SaveMovie failed: %v", err)
	}
	stg := description.NewStage(store, description.NewNormalizer(cfg.Description.MaxRunes), nil)

	item := &queue.Item{ID: 1, ExternalID: 5}
	if err := stg.Execute(ctx, item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasPrefix(item.Description, "Overview: Plot. Genres: Drama") || item.Title != "Five" {
		t.Fatalf("unexpected item %+v", item)
	}

	missing := &queue.Item{ID: 2, ExternalID: 6}
	if err := stg.Execute(ctx, missing); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing movie, got %v", err)
	}
	if !stg.HealthCheck(ctx).Ready {
		t.Fatal("expected healthy stage")
	}
}
