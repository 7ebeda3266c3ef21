package repository

import (
	"context"
	"errors"
	"time"

	"swap-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidStatusTransition is returned when an update would move an
// execution backwards or out of a terminal state
var ErrInvalidStatusTransition = errors.New("invalid execution status transition")

// ErrExecutionNotFound is returned when no ledger row matches the id
var ErrExecutionNotFound = errors.New("execution not found")

// StatusUpdate carries the mutable fields written alongside a status change
type StatusUpdate struct {
	TxHash       *string
	GasUsed      *uint64
	BlockNumber  *uint64
	AmountOut    *string
	ErrorCode    *string
	ErrorMessage *string
}

// SwapExecutionRepository persists the execution ledger
type SwapExecutionRepository interface {
	// Create inserts a new execution row. Inserting an id that already
	// exists is a no-op and returns the existing row, which makes retried
	// client requests idempotent.
	Create(ctx context.Context, execution *models.SwapExecution) (*models.SwapExecution, bool, error)
	Get(ctx context.Context, id string) (*models.SwapExecution, error)
	// UpdateStatus advances the row from expected current status to next.
	// The transition is checked both in memory and with a guarded WHERE
	// clause so concurrent finalizers cannot double-advance a row.
	UpdateStatus(ctx context.Context, id string, from, to models.ExecutionStatus, update *StatusUpdate) error
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.SwapExecution, error)
}

type swapExecutionRepository struct {
	db *gorm.DB
}

// NewSwapExecutionRepository creates a gorm-backed execution repository
func NewSwapExecutionRepository(db *gorm.DB) SwapExecutionRepository {
	return &swapExecutionRepository{db: db}
}

func (r *swapExecutionRepository) Create(ctx context.Context, execution *models.SwapExecution) (*models.SwapExecution, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(execution)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return execution, true, nil
	}

	existing, err := r.Get(ctx, execution.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *swapExecutionRepository) Get(ctx context.Context, id string) (*models.SwapExecution, error) {
	var execution models.SwapExecution
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&execution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

func (r *swapExecutionRepository) UpdateStatus(ctx context.Context, id string, from, to models.ExecutionStatus, update *StatusUpdate) error {
	if !models.CanTransition(from, to) {
		return ErrInvalidStatusTransition
	}

	fields := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update != nil {
		if update.TxHash != nil {
			fields["tx_hash"] = *update.TxHash
		}
		if update.GasUsed != nil {
			fields["gas_used"] = *update.GasUsed
		}
		if update.BlockNumber != nil {
			fields["block_number"] = *update.BlockNumber
		}
		if update.AmountOut != nil {
			fields["amount_out"] = *update.AmountOut
		}
		if update.ErrorCode != nil {
			fields["error_code"] = *update.ErrorCode
		}
		if update.ErrorMessage != nil {
			fields["error_message"] = *update.ErrorMessage
		}
	}

	result := r.db.WithContext(ctx).
		Model(&models.SwapExecution{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// row moved under us or does not exist; distinguish for the caller
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidStatusTransition
	}
	return nil
}

func (r *swapExecutionRepository) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.SwapExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	var executions []models.SwapExecution
	err := r.db.WithContext(ctx).
		Where("LOWER(wallet) = LOWER(?)", wallet).
		Order("created_at DESC").
		Limit(limit).
		Find(&executions).Error
	if err != nil {
		return nil, err
	}
	return executions, nil
}
