package detector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// Repo é o recorte de leitura usado pelo detector.
// GetProgressPair devolve um snapshot consistente dos dois placares da aposta.
type Repo interface {
	GetBet(ctx context.Context, betID string) (*repo.Bet, error)
	GetProgressPair(ctx context.Context, betID string) (map[string]repo.ProgressRecord, error)
	ListPendingExpired(ctx context.Context, now time.Time) ([]string, error)
	ListActivePastDeadline(ctx context.Context, now time.Time) ([]string, error)
}

// Lifecycle é o recorte do gerenciador de ciclo de vida que o detector aciona.
// Resolve e Expire são idempotentes; gatilhos duplicados são inofensivos.
type Lifecycle interface {
	Resolve(ctx context.Context, betID string) error
	Expire(ctx context.Context, betID string) error
}

// Detector decide quando uma aposta ativa está resolvida: prazo atingido ou
// meta batida por qualquer participante. Nunca escolhe vencedor — toda aposta
// concluída vai para arbitragem humana do grupo.
type Detector struct {
	log       *zap.Logger
	repo      Repo
	lifecycle Lifecycle
	now       func() time.Time
}

func New(log *zap.Logger, r Repo, lc Lifecycle) *Detector {
	return &Detector{log: log, repo: r, lifecycle: lc, now: time.Now}
}

// CheckBet reavalia uma aposta após uma atualização de progresso.
func (d *Detector) CheckBet(ctx context.Context, betID string) error {
	b, err := d.repo.GetBet(ctx, betID)
	if err != nil {
		return err
	}
	if b.Status != repo.StatusActive {
		return nil
	}

	resolved := false
	if b.EndDate != nil && !d.now().Before(*b.EndDate) {
		resolved = true
	}
	if !resolved {
		recs, err := d.repo.GetProgressPair(ctx, betID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.GoalReached {
				resolved = true
				break
			}
		}
	}
	if !resolved {
		return nil
	}

	// Só o primeiro gatilho a observar ACTIVE efetiva a transição; o CAS do
	// repositório garante a exclusão entre disparos concorrentes.
	return d.lifecycle.Resolve(ctx, betID)
}

// SweepResult resume uma varredura periódica de prazos.
type SweepResult struct {
	Resolved int
	Expired  int
}

// Sweep percorre apostas pendentes com prazo de aceite vencido e apostas
// ativas com prazo final atingido, afunilando tudo pelos mesmos pontos de
// entrada idempotentes (Expire/Resolve), então a ordem entre varredura e
// gatilhos por evento nunca importa.
func (d *Detector) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := d.now()

	pending, err := d.repo.ListPendingExpired(ctx, now)
	if err != nil {
		return res, err
	}
	for _, id := range pending {
		if err := d.lifecycle.Expire(ctx, id); err != nil {
			d.log.Warn("expire failed", zap.String("betId", id), zap.Error(err))
			continue
		}
		res.Expired++
	}

	due, err := d.repo.ListActivePastDeadline(ctx, now)
	if err != nil {
		return res, err
	}
	for _, id := range due {
		if err := d.lifecycle.Resolve(ctx, id); err != nil {
			d.log.Warn("resolve failed", zap.String("betId", id), zap.Error(err))
			continue
		}
		res.Resolved++
	}

	return res, nil
}
