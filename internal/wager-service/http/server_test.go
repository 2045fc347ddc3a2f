package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/dto"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/engine"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

type fakeStore struct {
	bets     map[string][]*repo.Bet // groupID -> apostas
	progress map[string]map[string]repo.ProgressRecord
	profiles map[string]repo.Profile
}

func (f *fakeStore) GetBet(_ context.Context, betID string) (*repo.Bet, error) {
	for _, bets := range f.bets {
		for _, b := range bets {
			if b.ID == betID {
				return b, nil
			}
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeStore) ListBetsForGroup(_ context.Context, groupID string) ([]*repo.Bet, error) {
	return f.bets[groupID], nil
}

func (f *fakeStore) ListActiveBetsForUser(_ context.Context, userID string) ([]*repo.Bet, error) {
	var out []*repo.Bet
	for _, bets := range f.bets {
		for _, b := range bets {
			if b.Status == repo.StatusActive && b.Participant(userID) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListPendingArbitration(_ context.Context, _ string) ([]*repo.Bet, error) {
	return nil, nil
}

func (f *fakeStore) GetProgressPair(_ context.Context, betID string) (map[string]repo.ProgressRecord, error) {
	return f.progress[betID], nil
}

func (f *fakeStore) GetProfiles(_ context.Context, userIDs []string) (map[string]repo.Profile, error) {
	out := make(map[string]repo.Profile)
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type nopSnapshots struct{}

func (nopSnapshots) Get(_ context.Context, _ string, _ any) (bool, error) { return false, nil }
func (nopSnapshots) Set(_ context.Context, _ string, _ any) error { return nil }
func (nopSnapshots) Invalidate(_ context.Context, _ ...string) {}

type stubLifecycle struct{}

func (stubLifecycle) Create(_ context.Context, _ engine.CreateInput) (*repo.Bet, error) {
	return nil, repo.ErrNotFound
}
func (stubLifecycle) Accept(_ context.Context, _, _ string) (*repo.Bet, error) {
	return nil, repo.ErrNotFound
}
func (stubLifecycle) Decline(_ context.Context, _, _ string) (*repo.Bet, error) {
	return nil, repo.ErrNotFound
}
func (stubLifecycle) Arbitrate(_ context.Context, _, _, _ string) (*repo.Bet, error) {
	return nil, repo.ErrNotFound
}

func testBet(id string, status repo.Status) *repo.Bet {
	now := time.Now().UTC()
	b := &repo.Bet{
		ID:                id,
		ChallengerID:      "u1",
		OpponentID:        "u2",
		GroupID:           "g1",
		ConditionType:     repo.ConditionDistanceGoal,
		StakeAmount:       repo.StakeMedium,
		Conditions:        repo.Conditions{TargetValue: 30, Unit: "km"},
		CreatedAt:         now,
		AcceptDeadline:    now.Add(24 * time.Hour),
		DurationDays:      7,
		Status:            status,
		ArbitrationStatus: repo.ArbitrationNotNeeded,
	}
	if status == repo.StatusActive {
		start := now
		end := now.AddDate(0, 0, 7)
		b.StartDate, b.EndDate = &start, &end
	}
	return b
}

func TestListGroupWagersCarriesProfilesAndProgress(t *testing.T) {
	active := testBet("bet-active", repo.StatusActive)
	pending := testBet("bet-pending", repo.StatusPending)
	pending.OpponentID = "u3"

	store := &fakeStore{
		bets: map[string][]*repo.Bet{"g1": {active, pending}},
		progress: map[string]map[string]repo.ProgressRecord{
			"bet-active": {
				"u1": {BetID: "bet-active", UserID: "u1", Cumulative: 12.5, EventCount: 3},
				"u2": {BetID: "bet-active", UserID: "u2", Cumulative: 8.0, EventCount: 2},
			},
		},
		profiles: map[string]repo.Profile{
			"u1": {UserID: "u1", Username: "ana"},
			"u2": {UserID: "u2", Username: "bruno"},
			"u3": {UserID: "u3", Username: "carla"},
		},
	}

	s := NewServer(zap.NewNop(), stubLifecycle{}, store, nopSnapshots{})

	req := httptest.NewRequest("GET", "/v1/groups/g1/wagers", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var views []dto.WagerView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 wagers, got %d", len(views))
	}

	byID := make(map[string]dto.WagerView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}

	got := byID["bet-active"]
	if len(got.Participants) != 2 || got.Participants[0].Username != "ana" || got.Participants[1].Username != "bruno" {
		t.Fatalf("active wager must carry both display profiles, got %+v", got.Participants)
	}
	if len(got.Progress) != 2 {
		t.Fatalf("active wager must carry live progress, got %+v", got.Progress)
	}
	if got.Progress[0].UserID != "u1" || got.Progress[0].Cumulative != 12.5 || got.Progress[0].Username != "ana" {
		t.Fatalf("challenger progress wrong: %+v", got.Progress[0])
	}

	got = byID["bet-pending"]
	if len(got.Participants) != 2 || got.Participants[1].Username != "carla" {
		t.Fatalf("pending wager must still carry display profiles, got %+v", got.Participants)
	}
	if len(got.Progress) != 0 {
		t.Fatalf("pending wager must not carry progress, got %+v", got.Progress)
	}
}
