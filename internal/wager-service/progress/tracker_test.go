package progress

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

type fakeTrackerRepo struct {
	acts  map[string][]repo.Activity // userID -> razão
	saved []repo.ProgressRecord
}

func newFakeTrackerRepo() *fakeTrackerRepo {
	return &fakeTrackerRepo{acts: make(map[string][]repo.Activity)}
}

func (f *fakeTrackerRepo) UpsertActivity(_ context.Context, _ string, act repo.Activity) error {
	list := f.acts[act.UserID]
	for i, a := range list {
		if a.EventID == act.EventID {
			list[i] = act
			return nil
		}
	}
	f.acts[act.UserID] = append(list, act)
	return nil
}

func (f *fakeTrackerRepo) ListActivities(_ context.Context, _, userID string) ([]repo.Activity, error) {
	return f.acts[userID], nil
}

func (f *fakeTrackerRepo) SaveProgress(_ context.Context, rec repo.ProgressRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

func trackedBet(now time.Time) *repo.Bet {
	start := now.AddDate(0, 0, -1)
	end := now.AddDate(0, 0, 6)
	return &repo.Bet{
		ID:            "bet-1",
		ChallengerID:  "u1",
		OpponentID:    "u2",
		ConditionType: repo.ConditionDistanceGoal,
		Conditions:    repo.Conditions{TargetValue: 10, Unit: "km"},
		Status:        repo.StatusActive,
		StartDate:     &start,
		EndDate:       &end,
	}
}

func TestApplyAccumulatesAndReplaysClean(t *testing.T) {
	now := time.Now().UTC()
	fr := newFakeTrackerRepo()
	tr := NewTracker(zap.NewNop(), fr)
	b := trackedBet(now)

	act := run("e1", now.Add(-time.Hour), 4000, 1500)
	rec, err := tr.Apply(context.Background(), b, act)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rec == nil || rec.Cumulative != 4 {
		t.Fatalf("expected 4km, got %+v", rec)
	}

	// reentrega do mesmo event_id deixa o placar inalterado
	rec, err = tr.Apply(context.Background(), b, act)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rec.Cumulative != 4 || rec.EventCount != 1 {
		t.Fatalf("replay changed the score: %+v", rec)
	}
}

func TestApplySkipsIrrelevantAndOutOfWindow(t *testing.T) {
	now := time.Now().UTC()
	fr := newFakeTrackerRepo()
	tr := NewTracker(zap.NewNop(), fr)
	b := trackedBet(now)
	ctx := context.Background()

	// não participante
	out := run("e1", now.Add(-time.Hour), 4000, 1500)
	out.UserID = "outsider"
	if rec, err := tr.Apply(ctx, b, out); err != nil || rec != nil {
		t.Fatalf("non-participant must be skipped, got %+v %v", rec, err)
	}

	// antes da janela
	early := run("e2", now.AddDate(0, 0, -3), 4000, 1500)
	if rec, err := tr.Apply(ctx, b, early); err != nil || rec != nil {
		t.Fatalf("activity before start must be skipped, got %+v %v", rec, err)
	}

	// treino sem distância não conta para meta de distância
	swim := repo.Activity{EventID: "e3", UserID: "u1", WorkoutType: "swimming", StartedAt: now, DurationSecs: 1800}
	if rec, err := tr.Apply(ctx, b, swim); err != nil || rec != nil {
		t.Fatalf("irrelevant workout must be skipped, got %+v %v", rec, err)
	}

	if len(fr.saved) != 0 {
		t.Fatalf("skipped activities must not write progress, got %d", len(fr.saved))
	}
}

func TestApplyFreezesOutsideActive(t *testing.T) {
	now := time.Now().UTC()
	fr := newFakeTrackerRepo()
	tr := NewTracker(zap.NewNop(), fr)
	b := trackedBet(now)
	b.Status = repo.StatusCompleted

	rec, err := tr.Apply(context.Background(), b, run("e1", now, 4000, 1500))
	if err != nil || rec != nil {
		t.Fatalf("score must freeze outside ACTIVE, got %+v %v", rec, err)
	}
}
