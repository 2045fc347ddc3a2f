package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// Postgres implementa a persistência de apostas, atividades e placares.
// Transições de status usam UPDATE condicional (compare-and-swap): o retorno
// false sinaliza que outro escritor venceu a corrida, nunca erro.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const betColumns = `
	id, challenger_id, opponent_id, group_id, condition_type, stake_amount,
	conditions, created_at, accept_deadline, duration_days, start_date, end_date,
	status, arbitration_status, COALESCE(winner_id,''), updated_at`

// CreateBet insere uma aposta PENDING. O índice único parcial de par aberto
// converte a corrida de criação dupla em ErrDuplicateBet.
func (p *Postgres) CreateBet(ctx context.Context, b *Bet) error {
	conds, err := json.Marshal(b.Conditions)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO bets (id, challenger_id, opponent_id, group_id, condition_type,
			stake_amount, conditions, created_at, accept_deadline, duration_days,
			status, arbitration_status, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$8)`,
		b.ID, b.ChallengerID, b.OpponentID, b.GroupID, b.ConditionType,
		b.StakeAmount, conds, b.CreatedAt, b.AcceptDeadline, b.DurationDays,
		b.Status, b.ArbitrationStatus,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateBet
	}
	return err
}

func (p *Postgres) GetBet(ctx context.Context, betID string) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, betID)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// HasOpenBetForPair verifica a vaga do par no grupo, em qualquer ordem das partes.
func (p *Postgres) HasOpenBetForPair(ctx context.Context, groupID, userA, userB string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bets
			WHERE group_id=$1
			  AND LEAST(challenger_id, opponent_id)=LEAST($2::text,$3::text)
			  AND GREATEST(challenger_id, opponent_id)=GREATEST($2::text,$3::text)
			  AND status IN ('PENDING','ACCEPTED','ACTIVE')
		)`, groupID, userA, userB).Scan(&exists)
	return exists, err
}

// TransitionStatus faz CAS de status; false quando o estado atual não é `from`.
func (p *Postgres) TransitionStatus(ctx context.Context, betID string, from, to Status) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$1, updated_at=NOW()
		WHERE id=$2 AND status=$3`, to, betID, from)
	return oneRow(res, err)
}

// ActivateBet leva PENDING -> ACTIVE fixando a janela de execução da aposta.
func (p *Postgres) ActivateBet(ctx context.Context, betID string, start, end time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='ACTIVE', start_date=$1, end_date=$2, updated_at=NOW()
		WHERE id=$3 AND status='PENDING'`, start, end, betID)
	return oneRow(res, err)
}

// MarkResolved leva ACTIVE -> COMPLETED e abre a arbitragem no mesmo UPDATE.
func (p *Postgres) MarkResolved(ctx context.Context, betID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='COMPLETED', arbitration_status='PENDING', updated_at=NOW()
		WHERE id=$1 AND status='ACTIVE'`, betID)
	return oneRow(res, err)
}

// BeginArbitration leva PENDING|IN_PROGRESS -> IN_PROGRESS. Aceita IN_PROGRESS
// no predicado para permitir retry de uma distribuição que falhou.
func (p *Postgres) BeginArbitration(ctx context.Context, betID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET arbitration_status='IN_PROGRESS', updated_at=NOW()
		WHERE id=$1 AND status='COMPLETED'
		  AND arbitration_status IN ('PENDING','IN_PROGRESS')`, betID)
	return oneRow(res, err)
}

// CompleteArbitration registra o vencedor e fecha a arbitragem.
func (p *Postgres) CompleteArbitration(ctx context.Context, betID, winnerID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET arbitration_status='COMPLETED', winner_id=$1, updated_at=NOW()
		WHERE id=$2 AND arbitration_status='IN_PROGRESS'`, winnerID, betID)
	return oneRow(res, err)
}

// ListPendingExpired lista convites PENDING com prazo de aceite vencido.
func (p *Postgres) ListPendingExpired(ctx context.Context, now time.Time) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM bets WHERE status='PENDING' AND accept_deadline < $1`, now)
}

// ListActivePastDeadline lista apostas ACTIVE cujo end_date já passou.
func (p *Postgres) ListActivePastDeadline(ctx context.Context, now time.Time) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM bets WHERE status='ACTIVE' AND end_date <= $1`, now)
}

func (p *Postgres) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListBetsForGroup devolve todas as apostas do grupo, mais recentes primeiro.
func (p *Postgres) ListBetsForGroup(ctx context.Context, groupID string) ([]*Bet, error) {
	return p.listBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE group_id=$1 ORDER BY created_at DESC`, groupID)
}

// ListActiveBetsForUser devolve as apostas abertas em que o usuário é parte,
// em qualquer grupo. Usado pelo worker de atividades para rotear treinos.
func (p *Postgres) ListActiveBetsForUser(ctx context.Context, userID string) ([]*Bet, error) {
	return p.listBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE (challenger_id=$1 OR opponent_id=$1) AND status='ACTIVE'
		ORDER BY created_at`, userID)
}

// ListPendingArbitration devolve apostas aguardando decisão de um árbitro,
// cruzando os grupos que ele capitaneia.
func (p *Postgres) ListPendingArbitration(ctx context.Context, arbiterID string) ([]*Bet, error) {
	return p.listBets(ctx, `
		SELECT `+betColumns+` FROM bets b
		JOIN groups g ON g.id = b.group_id
		WHERE g.arbiter_id=$1 AND b.status='COMPLETED'
		  AND b.arbitration_status IN ('PENDING','IN_PROGRESS')
		ORDER BY b.updated_at`, arbiterID)
}

func (p *Postgres) listBets(ctx context.Context, query string, args ...any) ([]*Bet, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []*Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanBet(s scanner) (*Bet, error) {
	var (
		b     Bet
		conds []byte
		start sql.NullTime
		end   sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.ChallengerID, &b.OpponentID, &b.GroupID, &b.ConditionType,
		&b.StakeAmount, &conds, &b.CreatedAt, &b.AcceptDeadline, &b.DurationDays,
		&start, &end, &b.Status, &b.ArbitrationStatus, &b.WinnerID, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conds, &b.Conditions); err != nil {
		return nil, err
	}
	if start.Valid {
		b.StartDate = &start.Time
	}
	if end.Valid {
		b.EndDate = &end.Time
	}
	return &b, nil
}

// UpsertActivity grava um treino; reentrega do mesmo event_id sobrescreve.
func (p *Postgres) UpsertActivity(ctx context.Context, betID string, act Activity) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_activities (bet_id, user_id, event_id, workout_type,
			started_at, duration_secs, distance_meters)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (bet_id, user_id, event_id) DO UPDATE SET
			workout_type=EXCLUDED.workout_type,
			started_at=EXCLUDED.started_at,
			duration_secs=EXCLUDED.duration_secs,
			distance_meters=EXCLUDED.distance_meters`,
		betID, act.UserID, act.EventID, act.WorkoutType,
		act.StartedAt, act.DurationSecs, act.DistanceMeters,
	)
	return err
}

// ListActivities devolve o razão completo de treinos de um participante na
// aposta, ordenado por início. A avaliação sempre recomputa sobre ele.
func (p *Postgres) ListActivities(ctx context.Context, betID, userID string) ([]Activity, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT event_id, user_id, workout_type, started_at, duration_secs, distance_meters
		FROM bet_activities
		WHERE bet_id=$1 AND user_id=$2
		ORDER BY started_at, event_id`, betID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.EventID, &a.UserID, &a.WorkoutType,
			&a.StartedAt, &a.DurationSecs, &a.DistanceMeters); err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// SaveProgress grava o placar recomputado de um participante.
func (p *Postgres) SaveProgress(ctx context.Context, rec ProgressRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO progress_records (bet_id, user_id, cumulative, goal_reached, event_count, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (bet_id, user_id) DO UPDATE SET
			cumulative=EXCLUDED.cumulative,
			goal_reached=EXCLUDED.goal_reached,
			event_count=EXCLUDED.event_count,
			updated_at=EXCLUDED.updated_at`,
		rec.BetID, rec.UserID, rec.Cumulative, rec.GoalReached, rec.EventCount, rec.UpdatedAt,
	)
	return err
}

// GetProgressPair devolve os placares dos dois participantes em uma única
// consulta, como snapshot consistente para o detector de conclusão.
func (p *Postgres) GetProgressPair(ctx context.Context, betID string) (map[string]ProgressRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT bet_id, user_id, cumulative, goal_reached, event_count, updated_at
		FROM progress_records WHERE bet_id=$1`, betID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make(map[string]ProgressRecord, 2)
	for rows.Next() {
		var r ProgressRecord
		if err := rows.Scan(&r.BetID, &r.UserID, &r.Cumulative,
			&r.GoalReached, &r.EventCount, &r.UpdatedAt); err != nil {
			return nil, err
		}
		recs[r.UserID] = r
	}
	return recs, rows.Err()
}

// GetGroup carrega o grupo e seu árbitro designado.
func (p *Postgres) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	var g Group
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, arbiter_id FROM groups WHERE id=$1`, groupID).
		Scan(&g.ID, &g.Name, &g.ArbiterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetProfiles devolve perfis de exibição por user_id.
func (p *Postgres) GetProfiles(ctx context.Context, userIDs []string) (map[string]Profile, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, username, COALESCE(avatar_url,'')
		FROM profiles WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Profile, len(userIDs))
	for rows.Next() {
		var pr Profile
		if err := rows.Scan(&pr.UserID, &pr.Username, &pr.AvatarURL); err != nil {
			return nil, err
		}
		out[pr.UserID] = pr
	}
	return out, rows.Err()
}

func oneRow(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
