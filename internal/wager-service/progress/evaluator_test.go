package progress

import (
	"testing"
	"time"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

func distanceBet(targetKm float64) *repo.Bet {
	return &repo.Bet{
		ID:            "bet-1",
		ChallengerID:  "u1",
		OpponentID:    "u2",
		ConditionType: repo.ConditionDistanceGoal,
		Conditions:    repo.Conditions{TargetValue: targetKm, Unit: "km"},
		Status:        repo.StatusActive,
	}
}

func run(eventID string, startedAt time.Time, meters float64, secs int64) repo.Activity {
	return repo.Activity{
		EventID:        eventID,
		UserID:         "u1",
		WorkoutType:    "running",
		StartedAt:      startedAt,
		DurationSecs:   secs,
		DistanceMeters: meters,
	}
}

func TestDistanceGoalAccumulates(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(10.0)

	res := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-2*time.Hour), 4000, 1500),
		run("e2", now.Add(-1*time.Hour), 5900, 2100),
	}, now)

	if res.GoalReached {
		t.Fatalf("9.9km should not reach a 10km goal")
	}
	if res.Cumulative < 9.89 || res.Cumulative > 9.91 {
		t.Fatalf("expected cumulative ~9.9, got %f", res.Cumulative)
	}

	res = Evaluate(b, []repo.Activity{
		run("e1", now.Add(-2*time.Hour), 4000, 1500),
		run("e2", now.Add(-1*time.Hour), 6000, 2100),
	}, now)
	if !res.GoalReached {
		t.Fatalf("exactly 10.0km should reach a 10km goal")
	}
}

func TestDistanceGoalReplayIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(10.0)

	once := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-2*time.Hour), 5000, 1500),
	}, now)

	// reentrega do mesmo event_id não pode somar duas vezes
	twice := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-2*time.Hour), 5000, 1500),
		run("e1", now.Add(-2*time.Hour), 5000, 1500),
	}, now)

	if once.Cumulative != twice.Cumulative {
		t.Fatalf("replay changed cumulative: %f vs %f", once.Cumulative, twice.Cumulative)
	}
	if len(twice.Contributions) != 1 {
		t.Fatalf("expected 1 contribution, got %d", len(twice.Contributions))
	}
}

func TestDistanceGoalMilesUnit(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(3.0)
	b.Conditions.Unit = "mi"

	res := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-time.Hour), 3*1609.344, 1800),
	}, now)
	if !res.GoalReached {
		t.Fatalf("3 miles in meters should reach a 3mi goal, got %f", res.Cumulative)
	}
}

func TestDurationGoalSumsMinutes(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(90)
	b.ConditionType = repo.ConditionDurationGoal
	b.Conditions = repo.Conditions{TargetValue: 90, Unit: "min"}

	res := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-3*time.Hour), 0, 1800),
		run("e2", now.Add(-2*time.Hour), 0, 2400),
	}, now)
	if res.Cumulative != 70 {
		t.Fatalf("expected 70 minutes, got %f", res.Cumulative)
	}
	if res.GoalReached {
		t.Fatalf("70 minutes should not reach 90")
	}

	res = Evaluate(b, []repo.Activity{
		run("e1", now.Add(-3*time.Hour), 0, 1800),
		run("e2", now.Add(-2*time.Hour), 0, 2400),
		run("e3", now.Add(-1*time.Hour), 0, 1200),
	}, now)
	if !res.GoalReached {
		t.Fatalf("90 minutes should reach 90, got %f", res.Cumulative)
	}
}

func TestStreakCountsBackFromToday(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(3)
	b.ConditionType = repo.ConditionStreakDays
	b.Conditions = repo.Conditions{TargetValue: 3, Unit: "days"}

	acts := []repo.Activity{
		run("e1", now, 0, 1800),
		run("e2", now.AddDate(0, 0, -1), 0, 1800),
		run("e3", now.AddDate(0, 0, -2), 0, 1800),
	}
	res := Evaluate(b, acts, now)
	if res.Cumulative != 3 {
		t.Fatalf("expected streak 3, got %f", res.Cumulative)
	}
	if !res.GoalReached {
		t.Fatalf("streak of 3 should reach a 3-day goal")
	}

	// vários treinos no mesmo dia contam uma vez
	acts = append(acts, run("e4", now, 0, 1200))
	res = Evaluate(b, acts, now)
	if res.Cumulative != 3 {
		t.Fatalf("same-day workouts inflated streak: %f", res.Cumulative)
	}
}

func TestStreakBrokenByGap(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(3)
	b.ConditionType = repo.ConditionStreakDays
	b.Conditions = repo.Conditions{TargetValue: 3, Unit: "days"}

	// buraco ontem: a sequência recomeça hoje
	res := Evaluate(b, []repo.Activity{
		run("e1", now, 0, 1800),
		run("e2", now.AddDate(0, 0, -2), 0, 1800),
		run("e3", now.AddDate(0, 0, -3), 0, 1800),
	}, now)
	if res.Cumulative != 1 {
		t.Fatalf("expected streak 1 after gap, got %f", res.Cumulative)
	}
}

func TestStreakZeroWithoutActivityToday(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(3)
	b.ConditionType = repo.ConditionStreakDays
	b.Conditions = repo.Conditions{TargetValue: 3, Unit: "days"}

	res := Evaluate(b, []repo.Activity{
		run("e1", now.AddDate(0, 0, -1), 0, 1800),
		run("e2", now.AddDate(0, 0, -2), 0, 1800),
	}, now)
	if res.Cumulative != 0 {
		t.Fatalf("streak without activity today should be 0, got %f", res.Cumulative)
	}
}

func TestFastestSplitKeepsBestQualifyingPace(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(300)
	b.ConditionType = repo.ConditionFastestSplit
	b.Conditions = repo.Conditions{
		TargetValue:       300, // 5:00/km
		Unit:              "sec_per_km",
		ReferenceDistance: 5000,
	}

	res := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-3*time.Hour), 5000, 1600), // 320 s/km
		run("e2", now.Add(-2*time.Hour), 5100, 1505), // ~295 s/km, dentro dos 5%
		run("e3", now.Add(-1*time.Hour), 8000, 2000), // fora da distância de referência
	}, now)

	if res.Cumulative < 294 || res.Cumulative > 296 {
		t.Fatalf("expected best pace ~295, got %f", res.Cumulative)
	}
	if !res.GoalReached {
		t.Fatalf("pace under target should reach goal")
	}
	if _, scored := res.Contributions["e3"]; scored {
		t.Fatalf("event outside reference distance tolerance must not score")
	}
}

func TestFastestSplitNoQualifyingEvent(t *testing.T) {
	now := time.Now().UTC()
	b := distanceBet(300)
	b.ConditionType = repo.ConditionFastestSplit
	b.Conditions = repo.Conditions{TargetValue: 300, Unit: "sec_per_km", ReferenceDistance: 5000}

	res := Evaluate(b, []repo.Activity{
		run("e1", now.Add(-time.Hour), 2000, 600),
	}, now)
	if res.Cumulative != 0 || res.GoalReached {
		t.Fatalf("no qualifying event should leave zero progress, got %f reached=%v", res.Cumulative, res.GoalReached)
	}
}

func TestRelevantFiltersWorkoutType(t *testing.T) {
	now := time.Now().UTC()

	swim := repo.Activity{EventID: "e1", UserID: "u1", WorkoutType: "swimming", StartedAt: now, DurationSecs: 1800}
	if Relevant(repo.ConditionDistanceGoal, swim) {
		t.Fatalf("swimming without distance should not count for distance goals")
	}
	if !Relevant(repo.ConditionDurationGoal, swim) {
		t.Fatalf("any workout with duration counts for duration goals")
	}

	ride := run("e2", now, 20000, 3600)
	ride.WorkoutType = "cycling"
	if !Relevant(repo.ConditionFastestSplit, ride) {
		t.Fatalf("cycling with distance and duration counts for fastest split")
	}
}
