package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// TreasuryUserID é a carteira-sentinela do tesouro do grupo: recebe a taxa de
// arbitragem em cada liquidação.
const TreasuryUserID = "__group__"

// Postgres implementa a custódia de créditos por (grupo, membro).
// Lock, Refund e Distribute são idempotentes por aposta: reexecução após
// timeout do chamador nunca movimenta fundos duas vezes.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrPotMismatch       = errors.New("distribution does not match held pot")
)

// GetOrCreateWallet retorna walletId e saldo do membro no grupo, criando a
// carteira zerada se não existir.
func (p *Postgres) GetOrCreateWallet(ctx context.Context, groupID, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`SELECT id, balance FROM wallets WHERE group_id=$1 AND user_id=$2`,
		groupID, userID).Scan(&walletID, &balance)
	if err == sql.ErrNoRows {
		walletID = uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, group_id, user_id, balance, version) VALUES($1,$2,$3,0,1)`,
			walletID, groupID, userID); err != nil {
			return "", 0, err
		}
		balance = 0
	} else if err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return walletID, balance, nil
}

// Deposit credita a carteira do membro e registra no ledger.
func (p *Postgres) Deposit(ctx context.Context, groupID, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	if walletID, _, err = p.GetOrCreateWallet(ctx, groupID, userID); err != nil {
		return "", 0, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return "", 0, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO escrow_ledger(wallet_id, operation_type, amount, description) VALUES($1,'DEPOSIT',$2,$3)`,
		walletID, amount, "deposit:"+externalRef); err != nil {
		return "", 0, err
	}

	if err = tx.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE id=$1`, walletID).Scan(&newBalance); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return walletID, newBalance, nil
}

// Balance retorna o saldo disponível (fora de custódia) do membro no grupo.
func (p *Postgres) Balance(ctx context.Context, groupID, userID string) (int64, error) {
	_, bal, err := p.GetOrCreateWallet(ctx, groupID, userID)
	return bal, err
}

// Lock retém `amount` da carteira do membro para a aposta.
// Idempotente por (wallet, bet): reexecução devolve sucesso sem novo débito.
func (p *Postgres) Lock(ctx context.Context, betID, groupID, userID string, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID string
	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance FROM wallets WHERE group_id=$1 AND user_id=$2 FOR UPDATE`,
		groupID, userID).Scan(&walletID, &balance)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	// Idempotência: reserva já existe para este (wallet, bet)
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM escrow_reservations WHERE wallet_id=$1 AND bet_id=$2`,
		walletID, betID).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	if balance < amount {
		return ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance - $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO escrow_reservations(id, wallet_id, bet_id, amount, status) VALUES($1,$2,$3,$4,'LOCKED')`,
		uuid.NewString(), walletID, betID, amount); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO escrow_ledger(wallet_id, operation_type, amount, description, bet_id) VALUES($1,'LOCK',$2,$3,$4)`,
		walletID, amount, "lock:"+betID, betID); err != nil {
		return err
	}

	return tx.Commit()
}

// Refund devolve um stake retido ao membro. Idempotente: reserva já devolvida
// ou liquidada é no-op.
func (p *Postgres) Refund(ctx context.Context, betID, groupID, userID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var resID, walletID, status string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		SELECT er.id, er.wallet_id, er.amount, er.status
		FROM escrow_reservations er
		JOIN wallets w ON w.id = er.wallet_id
		WHERE w.group_id=$1 AND w.user_id=$2 AND er.bet_id=$3
		FOR UPDATE`, groupID, userID, betID).Scan(&resID, &walletID, &amount, &status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if status != "LOCKED" {
		return nil // já tratado
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE escrow_reservations SET status='REFUNDED' WHERE id=$1`, resID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO escrow_ledger(wallet_id, operation_type, amount, description, bet_id) VALUES($1,'REFUND',$2,$3,$4)`,
		walletID, amount, "refund:"+betID, betID); err != nil {
		return err
	}

	return tx.Commit()
}

// Distribute liquida o pote de uma aposta: credita a parcela do vencedor e a
// taxa do grupo no tesouro, marcando as reservas como SETTLED. Idempotente por
// bet_id via tabela escrow_distributions; exige que a soma distribuída feche
// exatamente com o total retido.
func (p *Postgres) Distribute(ctx context.Context, betID, groupID, winnerID string, winnerAmount, groupFee int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Idempotência: liquidação já registrada
	var done string
	err = tx.QueryRowContext(ctx,
		`SELECT bet_id FROM escrow_distributions WHERE bet_id=$1 FOR UPDATE`, betID).Scan(&done)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	var held int64
	if err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount),0) FROM escrow_reservations
		WHERE bet_id=$1 AND status='LOCKED'`, betID).Scan(&held); err != nil {
		return err
	}
	if held != winnerAmount+groupFee {
		return ErrPotMismatch
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE escrow_reservations SET status='SETTLED' WHERE bet_id=$1 AND status='LOCKED'`,
		betID); err != nil {
		return err
	}

	if err = p.creditTx(ctx, tx, groupID, winnerID, winnerAmount, "PAYOUT", betID); err != nil {
		return err
	}
	if err = p.creditTx(ctx, tx, groupID, TreasuryUserID, groupFee, "GROUP_FEE", betID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO escrow_distributions(bet_id, winner_id, winner_amount, group_fee)
		VALUES($1,$2,$3,$4)`, betID, winnerID, winnerAmount, groupFee); err != nil {
		return err
	}

	return tx.Commit()
}

// creditTx credita uma carteira dentro da transação, criando-a se necessário
// (o tesouro do grupo nasce na primeira liquidação).
func (p *Postgres) creditTx(ctx context.Context, tx *sql.Tx, groupID, userID string, amount int64, op, betID string) error {
	var walletID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM wallets WHERE group_id=$1 AND user_id=$2 FOR UPDATE`,
		groupID, userID).Scan(&walletID)
	if err == sql.ErrNoRows {
		walletID = uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, group_id, user_id, balance, version) VALUES($1,$2,$3,0,1)`,
			walletID, groupID, userID); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO escrow_ledger(wallet_id, operation_type, amount, description, bet_id) VALUES($1,$2,$3,$4,$5)`,
		walletID, op, amount, op+":"+betID, betID)
	return err
}

// HeldForBet soma o valor ainda retido para uma aposta.
func (p *Postgres) HeldForBet(ctx context.Context, betID string) (int64, error) {
	var held int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount),0) FROM escrow_reservations
		WHERE bet_id=$1 AND status='LOCKED'`, betID).Scan(&held)
	return held, err
}
