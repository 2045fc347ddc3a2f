package consumer

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
	"github.com/fitstake/p2p-wager-platform/pkg/contracts/events"
)

type fakeBets struct{ bets []*repo.Bet }

func (f *fakeBets) ListActiveBetsForUser(context.Context, string) ([]*repo.Bet, error) {
	return f.bets, nil
}

type fakeTracker struct {
	applied []string
	skip    map[string]bool
}

func (f *fakeTracker) Apply(_ context.Context, b *repo.Bet, _ repo.Activity) (*repo.ProgressRecord, error) {
	if f.skip[b.ID] {
		return nil, nil
	}
	f.applied = append(f.applied, b.ID)
	return &repo.ProgressRecord{BetID: b.ID}, nil
}

type fakeDetector struct{ checked []string }

func (f *fakeDetector) CheckBet(_ context.Context, betID string) error {
	f.checked = append(f.checked, betID)
	return nil
}

func validEvent() events.ActivityReported {
	return events.ActivityReported{
		EventID:        "e1",
		UserID:         "u1",
		WorkoutType:    "running",
		StartedAt:      time.Now().UTC().Add(-time.Hour),
		DurationSecs:   1800,
		DistanceMeters: 5000,
	}
}

func TestValidBounds(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*events.ActivityReported)
		ok   bool
	}{
		{"ok", func(*events.ActivityReported) {}, true},
		{"missing event id", func(e *events.ActivityReported) { e.EventID = "" }, false},
		{"missing user", func(e *events.ActivityReported) { e.UserID = "" }, false},
		{"zero duration", func(e *events.ActivityReported) { e.DurationSecs = 0 }, false},
		{"over a day", func(e *events.ActivityReported) { e.DurationSecs = 86401 }, false},
		{"negative distance", func(e *events.ActivityReported) { e.DistanceMeters = -1 }, false},
		{"zero start", func(e *events.ActivityReported) { e.StartedAt = time.Time{} }, false},
	}
	for _, tc := range cases {
		ev := validEvent()
		tc.mut(&ev)
		if got := valid(ev); got != tc.ok {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.ok, got)
		}
	}
}

func TestProcessOneRoutesToAllActiveBets(t *testing.T) {
	bets := []*repo.Bet{{ID: "b1"}, {ID: "b2"}, {ID: "b3"}}
	ft := &fakeTracker{skip: map[string]bool{"b2": true}} // b2: treino irrelevante
	fd := &fakeDetector{}
	p := &Processor{
		Log:      zap.NewNop(),
		Bets:     &fakeBets{bets: bets},
		Tracker:  ft,
		Detector: fd,
	}

	if err := p.processOne(context.Background(), validEvent()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(ft.applied) != 2 {
		t.Fatalf("expected 2 applications, got %v", ft.applied)
	}
	// o detector só roda quando o placar mudou
	if len(fd.checked) != 2 {
		t.Fatalf("expected 2 completion checks, got %v", fd.checked)
	}
	for _, id := range fd.checked {
		if id == "b2" {
			t.Fatalf("skipped bet must not be checked")
		}
	}
}
