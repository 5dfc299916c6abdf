package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusStarted, StatusCompleted, StatusExpired}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusStarted}:   true,
		{StatusPending, StatusCompleted}: true,
		{StatusPending, StatusExpired}:   true,
		{StatusStarted, StatusCompleted}: true,
		{StatusStarted, StatusExpired}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
	if Status("archived").CanTransition(StatusStarted) {
		t.Fatalf("unknown status must not transition")
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]struct {
		in      string
		want    string
		wantErr bool
	}{
		"plain":        {in: "a@x.com", want: "a@x.com"},
		"mixed case":   {in: " Jane@Example.COM ", want: "jane@example.com"},
		"display name": {in: "Jane <jane@x.com>", wantErr: true},
		"missing at":   {in: "jane.x.com", wantErr: true},
		"empty":        {in: "", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeEmail(tc.in)
			if tc.wantErr {
				if err != ErrInvalidEmail {
					t.Fatalf("expected ErrInvalidEmail, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	inv := Invite{Status: StatusStarted, ExpiresAt: now}
	if got := inv.EffectiveStatus(now.Add(-time.Second)); got != StatusStarted {
		t.Fatalf("expected started before deadline, got %s", got)
	}
	if got := inv.EffectiveStatus(now); got != StatusExpired {
		t.Fatalf("expected expired at deadline, got %s", got)
	}
	inv.Status = StatusCompleted
	if got := inv.EffectiveStatus(now.Add(time.Hour)); got != StatusCompleted {
		t.Fatalf("completed must stay completed, got %s", got)
	}
}
