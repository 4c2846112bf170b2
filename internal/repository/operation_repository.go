// internal/repository/operation_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/database"
	"ecf-service/internal/model"
)

const operationColumns = `id, device_id, operation_type, status, request, result,
		   amount, coo, error_code, error_message, started_at, completed_at, duration_ms`

// journalRepository implements JournalRepository on postgres
type journalRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewJournalRepository creates a new fiscal journal repository
func NewJournalRepository(db *database.DB, logger *zap.Logger) JournalRepository {
	return &journalRepository{
		db:     db,
		logger: logger.With(zap.String("repository", "journal")),
	}
}

func scanOperation(row rowScanner) (*model.FiscalOperation, error) {
	op := &model.FiscalOperation{}
	err := row.Scan(
		&op.ID, &op.DeviceID, &op.OperationType, &op.Status,
		&op.Request, &op.Result, &op.Amount, &op.COO,
		&op.ErrorCode, &op.ErrorMessage, &op.StartedAt, &op.CompletedAt, &op.DurationMs,
	)
	return op, err
}

// Insert writes a completed operation. Entries are immutable once written;
// replays from the spool are ignored when the id already exists.
func (r *journalRepository) Insert(ctx context.Context, op *model.FiscalOperation) error {
	query := `
		INSERT INTO fiscal_operations (
			id, device_id, operation_type, status, request, result,
			amount, coo, error_code, error_message, started_at, completed_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		op.ID, op.DeviceID, op.OperationType, op.Status, op.Request, op.Result,
		op.Amount, op.COO, op.ErrorCode, op.ErrorMessage, op.StartedAt, op.CompletedAt, op.DurationMs,
	)
	if err != nil {
		r.logger.Error("Failed to insert journal entry", zap.Error(err), zap.String("operation_id", op.ID.String()))
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// GetByID retrieves an operation by ID
func (r *journalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FiscalOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM fiscal_operations WHERE id = $1`

	op, err := scanOperation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return op, nil
}

// List returns journal entries newest first.
func (r *journalRepository) List(ctx context.Context, filter *model.JournalFilter) ([]*model.FiscalOperation, int, error) {
	if filter == nil {
		filter = &model.JournalFilter{}
	}
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	add := func(cond string, v interface{}) {
		whereConditions = append(whereConditions, fmt.Sprintf(cond, argIndex))
		args = append(args, v)
		argIndex++
	}
	if filter.DeviceID != nil {
		add("device_id = $%d", *filter.DeviceID)
	}
	if filter.OperationType != nil {
		add("operation_type = $%d", *filter.OperationType)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.From != nil {
		add("started_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("started_at < $%d", *filter.To)
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM fiscal_operations %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count operations: %w", err)
	}

	limit := filter.Limit
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM fiscal_operations %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		operationColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list operations", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []*model.FiscalOperation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan operation row: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate operation rows: %w", err)
	}
	return ops, total, nil
}

// LastCOO returns the COO of the newest closed coupon of a device.
func (r *journalRepository) LastCOO(ctx context.Context, deviceID uuid.UUID) (int, bool, error) {
	query := `
		SELECT coo FROM fiscal_operations
		WHERE device_id = $1 AND operation_type = $2 AND status = $3 AND coo IS NOT NULL
		ORDER BY started_at DESC
		LIMIT 1
	`

	var coo int
	err := r.db.QueryRowContext(ctx, query, deviceID, model.OperationCouponClose, model.OperationStatusSuccess).Scan(&coo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get last coo: %w", err)
	}
	return coo, true, nil
}

// Summary aggregates the journal of a device since the given time.
func (r *journalRepository) Summary(ctx context.Context, deviceID uuid.UUID, since time.Time) (*JournalSummary, error) {
	query := `
		SELECT operation_type,
			   COUNT(*),
			   COUNT(CASE WHEN status <> 'SUCCESS' THEN 1 END),
			   COALESCE(SUM(CASE WHEN status = 'SUCCESS' THEN amount END), 0)
		FROM fiscal_operations
		WHERE device_id = $1 AND started_at >= $2
		GROUP BY operation_type
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize journal: %w", err)
	}
	defer rows.Close()

	summary := &JournalSummary{
		DeviceID: deviceID,
		Since:    since,
		ByType:   make(map[model.OperationType]int),
	}
	amount := decimal.Zero
	for rows.Next() {
		var (
			opType        model.OperationType
			count, failed int
			sum           decimal.Decimal
		)
		if err := rows.Scan(&opType, &count, &failed, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.ByType[opType] = count
		summary.Total += count
		summary.Failed += failed
		if opType == model.OperationCouponClose {
			summary.CouponsClosed = count - failed
			amount = amount.Add(sum)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary rows: %w", err)
	}
	summary.Amount = amount.StringFixed(2)
	return summary, nil
}
