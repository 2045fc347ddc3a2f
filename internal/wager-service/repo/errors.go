package repo

import "errors"

// Taxonomia de erros do motor de apostas. Erros de validação, autorização,
// saldo e estado são rejeitados de forma síncrona, sem tocar em fundos.
var (
	// validação
	ErrSelfChallenge    = errors.New("challenger and opponent must differ")
	ErrInvalidDuration  = errors.New("duration must be between 1 and 30 days")
	ErrInvalidStake     = errors.New("stake amount is not a valid tier")
	ErrInvalidCondition = errors.New("unknown condition type")
	ErrDuplicateBet     = errors.New("open bet already exists for this pair")
	ErrInvalidWinner    = errors.New("winner must be one of the participants")

	// autorização
	ErrNotAuthorized = errors.New("not authorized")

	// fundos
	ErrInsufficientFunds = errors.New("insufficient funds")

	// estado
	ErrNotFound              = errors.New("bet not found")
	ErrNotPending            = errors.New("bet is not pending")
	ErrAcceptExpired         = errors.New("accept deadline has passed")
	ErrNotComplete           = errors.New("bet is not completed")
	ErrArbitrationNotPending = errors.New("arbitration is not pending")

	// colaborador indisponível (retryable)
	ErrEscrowUnavailable = errors.New("escrow coordinator unavailable")
)
