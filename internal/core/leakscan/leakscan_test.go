package leakscan

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "reconctl/internal/platform/errors"
)

func TestFilterDropsNonLiveURLs(t *testing.T) {
	live := []string{"https://a.example.com", "https://b.example.com"}
	requested := []string{"https://a.example.com", "https://not-live.example.com"}

	got, err := Filter(live, requested)
	if err != nil {
		t.Fatalf("Filter() error: %v", err)
	}
	want := []string{"https://a.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterEmptyResultIsInvalidArgument(t *testing.T) {
	_, err := Filter([]string{"https://a.example.com"}, []string{"https://b.example.com"})
	if err == nil {
		t.Fatal("expected an error when no requested URL is live")
	}
	if !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected an InvalidArgumentError, got %v (%T)", err, err)
	}
}

func TestFilterPreservesRequestedOrder(t *testing.T) {
	live := []string{"https://c.example.com", "https://a.example.com", "https://b.example.com"}
	requested := []string{"https://b.example.com", "https://a.example.com"}

	got, err := Filter(live, requested)
	if err != nil {
		t.Fatalf("Filter() error: %v", err)
	}
	want := []string{"https://b.example.com", "https://a.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}
