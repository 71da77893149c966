package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/pkg/database"
)

const recordColumns = `id, kind, common_id, parent_id, version, created_by, fields, created_at, updated_at`

// RecordTx exposes the record writes that must share one transaction.
type RecordTx interface {
	GetForUpdate(ctx context.Context, kind models.RecordKind, commonID string) (*models.Record, error)
	Insert(ctx context.Context, record *models.Record) error
	UpdateDocument(ctx context.Context, record *models.Record) error
	InsertVersion(ctx context.Context, version *models.RecordVersion) error
	UpsertGrant(ctx context.Context, grant *models.AccessGrant) error
}

// RecordRepository persists courses, subjects and their version history.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InTx runs fn in a transaction. Rows read through GetForUpdate stay locked
// until fn returns.
func (r *RecordRepository) InTx(ctx context.Context, fn func(tx RecordTx) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&recordTx{tx: tx})
	})
}

// GetByCommonID fetches a record without locking it.
func (r *RecordRepository) GetByCommonID(ctx context.Context, kind models.RecordKind, commonID string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = $1 AND common_id = $2`
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, kind, commonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get %s record: %w", kind, err)
	}
	return &record, nil
}

// List returns records matching the filter, newest first.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT r.` + strings.ReplaceAll(recordColumns, ", ", ", r.") + ` FROM records r`)

	conditions := make([]string, 0, 3)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		builder.WriteString(fmt.Sprintf(" JOIN course_access a ON a.course_id = COALESCE(r.parent_id, r.common_id) AND a.user_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("r.kind = $%d", len(args)))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("r.parent_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY r.created_at DESC")

	records := make([]models.Record, 0)
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListVersions returns the snapshots of a record, latest first.
func (r *RecordRepository) ListVersions(ctx context.Context, kind models.RecordKind, commonID string) ([]models.RecordVersion, error) {
	const query = `SELECT common_id, version, kind, fields, changed_by, changed_at
	FROM record_versions WHERE kind = $1 AND common_id = $2 ORDER BY version DESC`
	versions := make([]models.RecordVersion, 0)
	if err := r.db.SelectContext(ctx, &versions, query, kind, commonID); err != nil {
		return nil, fmt.Errorf("list record versions: %w", err)
	}
	return versions, nil
}

type recordTx struct {
	tx *sqlx.Tx
}

func (t *recordTx) GetForUpdate(ctx context.Context, kind models.RecordKind, commonID string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = $1 AND common_id = $2 FOR UPDATE`
	var record models.Record
	if err := t.tx.GetContext(ctx, &record, query, kind, commonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock %s record: %w", kind, err)
	}
	return &record, nil
}

func (t *recordTx) Insert(ctx context.Context, record *models.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CommonID == "" {
		record.CommonID = uuid.NewString()
	}
	if record.Version == 0 {
		record.Version = 1
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO records (id, kind, common_id, parent_id, version, created_by, fields, created_at, updated_at)
	VALUES (:id, :kind, :common_id, :parent_id, :version, :created_by, :fields, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert %s record: %w", record.Kind, err)
	}
	return nil
}

func (t *recordTx) UpdateDocument(ctx context.Context, record *models.Record) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE records SET fields = $1, version = $2, updated_at = $3 WHERE id = $4`
	res, err := t.tx.ExecContext(ctx, query, record.Fields, record.Version, record.UpdatedAt, record.ID)
	if err != nil {
		return fmt.Errorf("update %s record: %w", record.Kind, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *recordTx) InsertVersion(ctx context.Context, version *models.RecordVersion) error {
	if version.ChangedAt.IsZero() {
		version.ChangedAt = time.Now().UTC()
	}
	const query = `INSERT INTO record_versions (common_id, version, kind, fields, changed_by, changed_at)
	VALUES (:common_id, :version, :kind, :fields, :changed_by, :changed_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("insert record version: %w", err)
	}
	return nil
}

func (t *recordTx) UpsertGrant(ctx context.Context, grant *models.AccessGrant) error {
	return upsertGrant(ctx, t.tx, grant)
}
