package progress

import (
	"math"
	"sort"
	"time"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// epsilon absorve ruído de ponto flutuante na comparação com a meta:
// uma soma de parcelas que fecha exatamente no alvo conta como atingida.
const epsilon = 1e-9

// Tolerância de distância para fastest_split: eventos fora de ±5% da
// distância de referência não pontuam.
const splitTolerance = 0.05

// Result é a saída de uma avaliação de progresso.
// Contributions é o razão por evento (event_id -> parcela); Cumulative é sempre
// recomputado como agregação sobre ele, nunca incrementando um total corrente.
type Result struct {
	Cumulative    float64
	GoalReached   bool
	Contributions map[string]float64
	ActiveDates   []string // dias "2006-01-02" com atividade (só streak_days)
}

// Evaluate computa o progresso acumulado de um participante e se a meta foi
// atingida, despachando pelo tipo de condição da aposta.
//
// Idempotente sob replay: atividades são deduplicadas por event_id — uma
// reentrega sobrescreve a própria parcela em vez de somar duas vezes.
func Evaluate(b *repo.Bet, acts []repo.Activity, now time.Time) Result {
	// dedupe por event_id; a última entrega vence
	byID := make(map[string]repo.Activity, len(acts))
	order := make([]string, 0, len(acts))
	for _, a := range acts {
		if _, seen := byID[a.EventID]; !seen {
			order = append(order, a.EventID)
		}
		byID[a.EventID] = a
	}

	switch b.ConditionType {
	case repo.ConditionDistanceGoal:
		return evalSum(b, byID, order, func(a repo.Activity) float64 {
			return convertDistance(a.DistanceMeters, b.Conditions.Unit)
		})
	case repo.ConditionDurationGoal:
		return evalSum(b, byID, order, func(a repo.Activity) float64 {
			return float64(a.DurationSecs) / 60.0
		})
	case repo.ConditionStreakDays:
		return evalStreak(b, byID, order, now)
	case repo.ConditionFastestSplit:
		return evalFastestSplit(b, byID, order)
	}
	return Result{Contributions: map[string]float64{}}
}

// evalSum cobre distance_goal e duration_goal: soma das parcelas, meta por >=.
func evalSum(b *repo.Bet, byID map[string]repo.Activity, order []string, contrib func(repo.Activity) float64) Result {
	r := Result{Contributions: make(map[string]float64, len(order))}
	for _, id := range order {
		r.Contributions[id] = contrib(byID[id])
	}
	for _, v := range r.Contributions {
		r.Cumulative += v
	}
	r.GoalReached = r.Cumulative+epsilon >= b.Conditions.TargetValue
	return r
}

// evalStreak conta dias de calendário consecutivos com pelo menos uma
// atividade, andando para trás a partir de hoje. Sem atividade hoje, streak 0.
func evalStreak(b *repo.Bet, byID map[string]repo.Activity, order []string, now time.Time) Result {
	r := Result{Contributions: make(map[string]float64, len(order))}
	days := make(map[string]bool, len(order))
	for _, id := range order {
		r.Contributions[id] = 1
		days[dayKey(byID[id].StartedAt)] = true
	}

	r.ActiveDates = make([]string, 0, len(days))
	for d := range days {
		r.ActiveDates = append(r.ActiveDates, d)
	}
	sort.Strings(r.ActiveDates)

	day := now.UTC().Truncate(24 * time.Hour)
	streak := 0
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}

	r.Cumulative = float64(streak)
	r.GoalReached = r.Cumulative+epsilon >= b.Conditions.TargetValue
	return r
}

// evalFastestSplit: menor pace (segundos por km) entre eventos cuja distância
// fica dentro de ±5% da distância de referência. Meta por <=. Sem evento
// qualificado, valor zero e meta não atingida.
func evalFastestSplit(b *repo.Bet, byID map[string]repo.Activity, order []string) Result {
	r := Result{Contributions: make(map[string]float64, len(order))}
	ref := b.Conditions.ReferenceDistance
	if ref <= 0 {
		return r
	}

	best := math.Inf(1)
	for _, id := range order {
		a := byID[id]
		if a.DistanceMeters <= 0 || a.DurationSecs <= 0 {
			continue
		}
		if math.Abs(a.DistanceMeters-ref) > splitTolerance*ref {
			continue
		}
		pace := float64(a.DurationSecs) / (a.DistanceMeters / 1000.0)
		r.Contributions[id] = pace
		if pace < best {
			best = pace
		}
	}

	if math.IsInf(best, 1) {
		return r
	}
	r.Cumulative = best
	r.GoalReached = best <= b.Conditions.TargetValue+epsilon
	return r
}

// convertDistance converte metros para a unidade da condição.
func convertDistance(meters float64, unit string) float64 {
	switch unit {
	case "mi":
		return meters / 1609.344
	case "m":
		return meters
	default: // "km"
		return meters / 1000.0
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Relevant informa se um treino conta para o tipo de condição.
// Regras herdadas do processador de treinos: metas de distância e split exigem
// treino com distância; streak e duração aceitam qualquer treino com duração.
func Relevant(t repo.ConditionType, a repo.Activity) bool {
	wt := a.WorkoutType
	switch t {
	case repo.ConditionDistanceGoal:
		return a.DistanceMeters > 0 && (wt == "running" || wt == "walking" || wt == "cycling")
	case repo.ConditionFastestSplit:
		return a.DistanceMeters > 0 && a.DurationSecs > 0 && (wt == "running" || wt == "cycling")
	case repo.ConditionDurationGoal, repo.ConditionStreakDays:
		return a.DurationSecs > 0
	}
	return false
}
