package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
	"github.com/fitstake/p2p-wager-platform/pkg/contracts/events"
)

// Janela para o oponente aceitar o convite.
const acceptWindow = 24 * time.Hour

// Fração do pote que vai para o vencedor; o resto (incluindo sobra de
// arredondamento) fica com o grupo como taxa de arbitragem.
const winnerShareNum, winnerShareDen = 8, 10

// Repository é o recorte de persistência do gerenciador de ciclo de vida.
// Os métodos de transição fazem compare-and-swap sobre o status e devolvem
// false quando outro escritor venceu a corrida.
type Repository interface {
	CreateBet(ctx context.Context, b *repo.Bet) error
	GetBet(ctx context.Context, betID string) (*repo.Bet, error)
	HasOpenBetForPair(ctx context.Context, groupID, userA, userB string) (bool, error)

	TransitionStatus(ctx context.Context, betID string, from, to repo.Status) (bool, error)
	ActivateBet(ctx context.Context, betID string, start, end time.Time) (bool, error)
	MarkResolved(ctx context.Context, betID string) (bool, error)
	BeginArbitration(ctx context.Context, betID string) (bool, error)
	CompleteArbitration(ctx context.Context, betID, winnerID string) (bool, error)

	GetGroup(ctx context.Context, groupID string) (*repo.Group, error)
}

// Escrow é o coordenador de custódia consumido pelo engine. Todas as operações
// são seguras para retry: a idempotência por betID+operação é responsabilidade
// do coordenador.
type Escrow interface {
	Lock(ctx context.Context, betID, userID, groupID string, amount int64) error
	Refund(ctx context.Context, betID, userID, groupID string, amount int64) error
	Distribute(ctx context.Context, betID, winnerID string, winnerAmount, groupFee int64, groupID string) error
	Balance(ctx context.Context, groupID, userID string) (int64, error)
}

// Notifier publica notificações fire-and-forget; falhas nunca desfazem a
// transição que as originou.
type Notifier interface {
	Notify(ctx context.Context, n events.WagerNotification)
}

// Lifecycle é o dono da máquina de estados da aposta: criação, aceite,
// recusa, expiração, resolução e arbitragem. Único escritor de status,
// arbitration_status e winner_id.
type Lifecycle struct {
	log    *zap.Logger
	repo   Repository
	escrow Escrow
	notif  Notifier
	now    func() time.Time

	// exclusão mútua por betId: transições de estado são linearizáveis
	mu    sync.Mutex
	locks map[string]*betLock
}

type betLock struct {
	mu   sync.Mutex
	refs int
}

func NewLifecycle(log *zap.Logger, r Repository, e Escrow, n Notifier) *Lifecycle {
	return &Lifecycle{
		log:    log,
		repo:   r,
		escrow: e,
		notif:  n,
		now:    time.Now,
		locks:  make(map[string]*betLock),
	}
}

// lockBet adquire a exclusão por aposta e devolve o unlock. A entrada sai do
// mapa quando o último interessado solta o mutex, então apostas encerradas não
// acumulam entradas.
func (l *Lifecycle) lockBet(betID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[betID]
	if !ok {
		lk = &betLock{}
		l.locks[betID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, betID)
		}
		l.mu.Unlock()
	}
}

// CreateInput são os parâmetros de criação de uma aposta.
type CreateInput struct {
	ChallengerID  string
	OpponentID    string
	GroupID       string
	ConditionType repo.ConditionType
	StakeAmount   int64
	DurationDays  int
	Conditions    repo.Conditions
}

// Create valida, custodia o stake do desafiante e persiste a aposta PENDING.
// Nenhum estado é gravado se a chamada de escrow falhar.
func (l *Lifecycle) Create(ctx context.Context, in CreateInput) (*repo.Bet, error) {
	if in.ChallengerID == "" || in.OpponentID == "" || in.GroupID == "" {
		return nil, repo.ErrNotAuthorized
	}
	if in.ChallengerID == in.OpponentID {
		return nil, repo.ErrSelfChallenge
	}
	if in.DurationDays < 1 || in.DurationDays > 30 {
		return nil, repo.ErrInvalidDuration
	}
	if !repo.ValidStake(in.StakeAmount) {
		return nil, repo.ErrInvalidStake
	}
	if !in.ConditionType.Valid() {
		return nil, repo.ErrInvalidCondition
	}

	open, err := l.repo.HasOpenBetForPair(ctx, in.GroupID, in.ChallengerID, in.OpponentID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, repo.ErrDuplicateBet
	}

	bal, err := l.escrow.Balance(ctx, in.GroupID, in.ChallengerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}
	if bal < in.StakeAmount {
		return nil, repo.ErrInsufficientFunds
	}

	now := l.now()
	b := &repo.Bet{
		ID:                uuid.NewString(),
		ChallengerID:      in.ChallengerID,
		OpponentID:        in.OpponentID,
		GroupID:           in.GroupID,
		ConditionType:     in.ConditionType,
		StakeAmount:       in.StakeAmount,
		Conditions:        in.Conditions,
		CreatedAt:         now,
		AcceptDeadline:    now.Add(acceptWindow),
		DurationDays:      in.DurationDays,
		Status:            repo.StatusPending,
		ArbitrationStatus: repo.ArbitrationNotNeeded,
	}

	// custódia antes da persistência: aposta PENDING implica 1x stake retido
	if err := l.escrow.Lock(ctx, b.ID, b.ChallengerID, b.GroupID, b.StakeAmount); err != nil {
		if errors.Is(err, repo.ErrInsufficientFunds) {
			return nil, repo.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}

	if err := l.repo.CreateBet(ctx, b); err != nil {
		// corrida com outra criação do mesmo par: devolve o stake retido
		if rerr := l.escrow.Refund(ctx, b.ID, b.ChallengerID, b.GroupID, b.StakeAmount); rerr != nil {
			l.log.Error("refund after create failure", zap.String("betId", b.ID), zap.Error(rerr))
		}
		return nil, err
	}

	l.notify(ctx, events.NotifyInvited, b, b.OpponentID, map[string]string{
		"challenger_id": b.ChallengerID,
		"condition":     string(b.ConditionType),
	})
	l.log.Info("bet created",
		zap.String("betId", b.ID),
		zap.String("groupId", b.GroupID),
		zap.Int64("stake", b.StakeAmount),
	)
	return b, nil
}

// Accept custodia o stake do oponente e ativa a aposta, definindo a janela
// [startDate, endDate]. Qualquer falha deixa o stake do desafiante intocado.
func (l *Lifecycle) Accept(ctx context.Context, betID, actingUserID string) (*repo.Bet, error) {
	unlock := l.lockBet(betID)
	defer unlock()

	b, err := l.repo.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if actingUserID != b.OpponentID {
		return nil, repo.ErrNotAuthorized
	}
	if b.Status != repo.StatusPending {
		return nil, repo.ErrNotPending
	}
	now := l.now()
	if now.After(b.AcceptDeadline) {
		return nil, repo.ErrAcceptExpired
	}

	bal, err := l.escrow.Balance(ctx, b.GroupID, b.OpponentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}
	if bal < b.StakeAmount {
		return nil, repo.ErrInsufficientFunds
	}

	if err := l.escrow.Lock(ctx, betID, b.OpponentID, b.GroupID, b.StakeAmount); err != nil {
		if errors.Is(err, repo.ErrInsufficientFunds) {
			return nil, repo.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}

	start := now
	end := start.AddDate(0, 0, b.DurationDays)
	ok, err := l.repo.ActivateBet(ctx, betID, start, end)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a expiração venceu a corrida: desfaz a custódia do oponente
		if rerr := l.escrow.Refund(ctx, betID, b.OpponentID, b.GroupID, b.StakeAmount); rerr != nil {
			l.log.Error("refund after lost accept race", zap.String("betId", betID), zap.Error(rerr))
		}
		return nil, repo.ErrNotPending
	}

	b.Status = repo.StatusActive
	b.StartDate = &start
	b.EndDate = &end

	l.notify(ctx, events.NotifyAccepted, b, b.ChallengerID, nil)
	l.log.Info("bet accepted", zap.String("betId", betID))
	return b, nil
}

// Decline recusa o convite e devolve o stake integral do desafiante.
func (l *Lifecycle) Decline(ctx context.Context, betID, actingUserID string) (*repo.Bet, error) {
	unlock := l.lockBet(betID)
	defer unlock()

	b, err := l.repo.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if actingUserID != b.OpponentID {
		return nil, repo.ErrNotAuthorized
	}
	if b.Status != repo.StatusPending {
		// reentrada: se uma recusa anterior caiu entre a transição e o
		// refund, retenta a devolução antes de responder (refund é idempotente)
		if b.Status == repo.StatusDeclined {
			if rerr := l.escrow.Refund(ctx, betID, b.ChallengerID, b.GroupID, b.StakeAmount); rerr != nil {
				return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, rerr)
			}
		}
		return nil, repo.ErrNotPending
	}
	if l.now().After(b.AcceptDeadline) {
		return nil, repo.ErrAcceptExpired
	}

	// o CAS decide a corrida com um aceite concorrente antes de qualquer
	// movimento de fundos: quem perde a transição não toca a custódia
	ok, err := l.repo.TransitionStatus(ctx, betID, repo.StatusPending, repo.StatusDeclined)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repo.ErrNotPending
	}
	b.Status = repo.StatusDeclined

	if err := l.escrow.Refund(ctx, betID, b.ChallengerID, b.GroupID, b.StakeAmount); err != nil {
		// a reserva segue LOCKED; a reinvocação retenta a devolução
		return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}

	l.notify(ctx, events.NotifyDeclined, b, b.ChallengerID, nil)
	l.log.Info("bet declined", zap.String("betId", betID))
	return b, nil
}

// Expire varre um convite pendente cujo prazo de aceite passou, com refund
// integral ao desafiante. Idempotente: reinvocação em aposta já expirada
// apenas garante a devolução e retorna.
func (l *Lifecycle) Expire(ctx context.Context, betID string) error {
	unlock := l.lockBet(betID)
	defer unlock()

	b, err := l.repo.GetBet(ctx, betID)
	if err != nil {
		return err
	}
	if b.Status == repo.StatusExpired {
		// reentrada: retenta a devolução caso a execução anterior tenha
		// falhado depois da transição (refund é idempotente)
		if err := l.escrow.Refund(ctx, betID, b.ChallengerID, b.GroupID, b.StakeAmount); err != nil {
			return fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
		}
		return nil
	}
	if b.Status != repo.StatusPending {
		return nil // já tratado
	}
	if !l.now().After(b.AcceptDeadline) {
		return nil // ainda dentro da janela de aceite
	}

	// o CAS decide a corrida com um aceite concorrente de outro processo;
	// só o vencedor da transição toca a custódia
	ok, err := l.repo.TransitionStatus(ctx, betID, repo.StatusPending, repo.StatusExpired)
	if err != nil {
		return err
	}
	if !ok {
		return nil // um aceite venceu a corrida; nenhum fundo se move
	}

	if err := l.escrow.Refund(ctx, betID, b.ChallengerID, b.GroupID, b.StakeAmount); err != nil {
		// a reserva segue LOCKED; a próxima invocação retenta a devolução
		return fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}

	b.Status = repo.StatusExpired
	l.notify(ctx, events.NotifyExpired, b, b.ChallengerID, nil)
	l.log.Info("bet expired", zap.String("betId", betID))
	return nil
}

// Resolve conclui uma aposta ativa e a encaminha para arbitragem humana.
// Nunca define vencedor. Idempotente: só o primeiro gatilho a observar ACTIVE
// efetiva a transição; os demais são no-ops.
func (l *Lifecycle) Resolve(ctx context.Context, betID string) error {
	unlock := l.lockBet(betID)
	defer unlock()

	b, err := l.repo.GetBet(ctx, betID)
	if err != nil {
		return err
	}
	if b.Status != repo.StatusActive {
		return nil
	}

	ok, err := l.repo.MarkResolved(ctx, betID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	b.Status = repo.StatusCompleted
	b.ArbitrationStatus = repo.ArbitrationPending

	g, err := l.repo.GetGroup(ctx, b.GroupID)
	if err != nil {
		l.log.Warn("arbiter lookup failed", zap.String("betId", betID), zap.Error(err))
	} else {
		l.notify(ctx, events.NotifyArbitrationRequested, b, g.ArbiterID, map[string]string{
			"challenger_id": b.ChallengerID,
			"opponent_id":   b.OpponentID,
		})
	}
	l.log.Info("bet resolved, awaiting arbitration", zap.String("betId", betID))
	return nil
}

// Arbitrate registra a decisão do árbitro do grupo e solicita a distribuição:
// 80% do pote para o vencedor (arredondado para baixo), o restante para o
// grupo — as duas parcelas fecham exatamente o total custodiado.
func (l *Lifecycle) Arbitrate(ctx context.Context, betID, arbiterID, winnerID string) (*repo.Bet, error) {
	unlock := l.lockBet(betID)
	defer unlock()

	b, err := l.repo.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}

	g, err := l.repo.GetGroup(ctx, b.GroupID)
	if err != nil {
		return nil, err
	}
	if arbiterID != g.ArbiterID {
		return nil, repo.ErrNotAuthorized
	}
	if b.Status != repo.StatusCompleted {
		return nil, repo.ErrNotComplete
	}
	if b.ArbitrationStatus != repo.ArbitrationPending && b.ArbitrationStatus != repo.ArbitrationInProgress {
		return nil, repo.ErrArbitrationNotPending
	}
	if !b.Participant(winnerID) {
		return nil, repo.ErrInvalidWinner
	}

	ok, err := l.repo.BeginArbitration(ctx, betID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repo.ErrArbitrationNotPending
	}

	winnerAmount, groupFee := Payout(b.StakeAmount)

	// timeout/fracasso aqui deixa arbitration_status=IN_PROGRESS para retry;
	// a aposta nunca é marcada como liquidada sem a distribuição confirmada
	if err := l.escrow.Distribute(ctx, betID, winnerID, winnerAmount, groupFee, b.GroupID); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrEscrowUnavailable, err)
	}

	ok, err = l.repo.CompleteArbitration(ctx, betID, winnerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repo.ErrArbitrationNotPending
	}

	b.ArbitrationStatus = repo.ArbitrationCompleted
	b.WinnerID = winnerID

	payload := map[string]string{"winner_id": winnerID}
	l.notify(ctx, events.NotifySettled, b, b.ChallengerID, payload)
	l.notify(ctx, events.NotifySettled, b, b.OpponentID, payload)
	l.log.Info("bet settled",
		zap.String("betId", betID),
		zap.String("winnerId", winnerID),
		zap.Int64("winnerAmount", winnerAmount),
		zap.Int64("groupFee", groupFee),
	)
	return b, nil
}

// Payout reparte o pote (2x stake): vencedor leva 80% arredondado para baixo,
// o grupo fica com o restante. winnerAmount+groupFee == 2*stake sempre.
func Payout(stake int64) (winnerAmount, groupFee int64) {
	pot := 2 * stake
	winnerAmount = pot * winnerShareNum / winnerShareDen
	groupFee = pot - winnerAmount
	return winnerAmount, groupFee
}

func (l *Lifecycle) notify(ctx context.Context, kind string, b *repo.Bet, recipient string, payload map[string]string) {
	l.notif.Notify(ctx, events.WagerNotification{
		Kind:            kind,
		BetID:           b.ID,
		RecipientUserID: recipient,
		Payload:         payload,
		Ts:              l.now(),
	})
}
