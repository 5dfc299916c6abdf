package service

import (
	"testing"
	"time"

	"github.com/smallbiznis/assessly/internal/analytics/domain"
)

func TestRate(t *testing.T) {
	cases := []struct {
		completed, candidates int
		want                  float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{3, 3, 100},
		{1, 8, 12.5},
	}
	for _, tc := range cases {
		if got := rate(tc.completed, tc.candidates); got != tc.want {
			t.Fatalf("rate(%d, %d): expected %v, got %v", tc.completed, tc.candidates, tc.want, got)
		}
	}
}

func TestTopProjectsTieBreaks(t *testing.T) {
	ranks := []domain.ProjectRank{
		{Name: "zeta", Candidates: 4, CompletionRate: 50},
		{Name: "alpha", Candidates: 4, CompletionRate: 50},
		{Name: "big", Candidates: 10, CompletionRate: 50},
		{Name: "best", Candidates: 1, CompletionRate: 100},
	}
	got := topProjects(ranks, 3)
	want := []string{"best", "big", "alpha"}
	if len(got) != len(want) {
		t.Fatalf("expected %d ranks, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestNewTrendCrossesYear(t *testing.T) {
	buckets := newTrend(time.Date(2025, time.February, 28, 23, 0, 0, 0, time.UTC), 3)
	want := []string{"2024-12", "2025-01", "2025-02"}
	for i, month := range want {
		if buckets[i].Month != month {
			t.Fatalf("bucket %d: expected %s, got %s", i, month, buckets[i].Month)
		}
	}
}
