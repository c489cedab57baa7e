package rewards

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	config "github.com/glkeru/loyalty/rewards/internal/config"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

type txKey struct{}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Журнал XP и стрики в Postgres
type RewardsDB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewRewardsDB(ctx context.Context, logger *zap.Logger) (*RewardsDB, error) {
	host, err := config.Required("REWARDS_DB")
	if err != nil {
		return nil, err
	}
	port, err := config.Required("REWARDS_DB_PORT")
	if err != nil {
		return nil, err
	}
	user, err := config.Required("REWARDS_DB_USER")
	if err != nil {
		return nil, err
	}
	password, err := config.Required("REWARDS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	database, err := config.Required("REWARDS_DB_BASE")
	if err != nil {
		return nil, err
	}
	dsn := "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + database

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &RewardsDB{pool, logger}, nil
}

// Создание таблиц
func (p *RewardsDB) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *RewardsDB) Close() {
	p.pool.Close()
}

// Транзакция с блокировкой строки аккаунта. Все запросы внутри fn идут через нее
func (p *RewardsDB) Atomic(ctx context.Context, accountID string, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				p.logger.Error("Rollback error", zap.String("account", accountID), zap.Error(rerr))
			}
		}
	}()

	sql, args, err := sq.Insert("accounts").
		Columns("id").
		Values(accountID).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, sql, args...); err != nil {
		p.logSQL(err, sql, args)
		return err
	}

	// блокируем аккаунт до конца транзакции
	var locked string
	if err = tx.QueryRow(ctx, "SELECT id FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&locked); err != nil {
		p.logger.Error("Block account error", zap.String("account", accountID), zap.Error(err))
		return err
	}

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *RewardsDB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.pool
}

func (p *RewardsDB) TnxCreate(ctx context.Context, tnx models.XPTransaction) error {
	sql, args, err := sq.Insert("xp_tnx").
		Columns("id", "account_id", "amount", "spend", "kind", "source", "description", "external_id", "related_id", "created_at").
		Values(tnx.ID, tnx.AccountID, tnx.Amount, tnx.Spend, tnx.Kind, tnx.Source, tnx.Description,
			nullString(tnx.ExternalID), nullUUID(tnx.RelatedID), tnx.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err = p.q(ctx).Exec(ctx, sql, args...); err != nil {
		p.logSQL(err, sql, args)
		return err
	}
	return nil
}

var tnxColumns = []string{"id", "account_id", "amount", "spend", "kind", "source", "description", "external_id", "related_id", "created_at"}

func (p *RewardsDB) GetTnx(ctx context.Context, accountID string) ([]models.XPTransaction, error) {
	sql, args, err := sq.Select(tnxColumns...).
		From("xp_tnx").
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("created_at", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		p.logSQL(err, sql, args)
		return nil, err
	}
	defer rows.Close()

	tnxs := make([]models.XPTransaction, 0)
	for rows.Next() {
		tnx, err := scanTnx(rows)
		if err != nil {
			return nil, err
		}
		tnxs = append(tnxs, tnx)
	}
	return tnxs, rows.Err()
}

func (p *RewardsDB) GetTnxByExternalID(ctx context.Context, accountID string, externalID string) (models.XPTransaction, error) {
	sql, args, err := sq.Select(tnxColumns...).
		From("xp_tnx").
		Where(sq.Eq{"account_id": accountID, "external_id": externalID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.XPTransaction{}, err
	}
	tnx, err := scanTnx(p.q(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tnx, fmt.Errorf("transaction %s %w", externalID, models.ErrNotFound)
		}
		return tnx, err
	}
	return tnx, nil
}

func scanTnx(row pgx.Row) (models.XPTransaction, error) {
	var tnx models.XPTransaction
	var kind string
	var externalID pgtype.Text
	var relatedID pgtype.UUID
	err := row.Scan(&tnx.ID, &tnx.AccountID, &tnx.Amount, &tnx.Spend, &kind, &tnx.Source, &tnx.Description,
		&externalID, &relatedID, &tnx.CreatedAt)
	if err != nil {
		return tnx, err
	}
	tnx.Kind = models.TnxKind(kind)
	tnx.ExternalID = externalID.String
	if relatedID.Status == pgtype.Present {
		tnx.RelatedID = uuid.UUID(relatedID.Bytes)
	}
	return tnx, nil
}

var streakColumns = []string{"account_id", "current_streak", "longest_streak", "last_activity_at", "freeze_tokens", "frozen_days", "weekly_activity"}

func (p *RewardsDB) GetStreak(ctx context.Context, accountID string) (models.StreakRecord, error) {
	sql, args, err := sq.Select(streakColumns...).
		From("streaks").
		Where(sq.Eq{"account_id": accountID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.StreakRecord{}, err
	}
	rec, err := scanStreak(p.q(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, fmt.Errorf("streak %s %w", accountID, models.ErrNotFound)
		}
		return rec, err
	}
	return rec, nil
}

func (p *RewardsDB) SaveStreak(ctx context.Context, rec models.StreakRecord) error {
	sql, args, err := sq.Insert("streaks").
		Columns(streakColumns...).
		Values(rec.AccountID, rec.CurrentStreak, rec.LongestStreak, nullTime(rec.LastActivityAt),
			rec.FreezeTokens, rec.FrozenDays, rec.WeeklyActivity[:]).
		Suffix(`ON CONFLICT (account_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_activity_at = EXCLUDED.last_activity_at,
			freeze_tokens = EXCLUDED.freeze_tokens,
			frozen_days = EXCLUDED.frozen_days,
			weekly_activity = EXCLUDED.weekly_activity`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err = p.q(ctx).Exec(ctx, sql, args...); err != nil {
		p.logSQL(err, sql, args)
		return err
	}
	return nil
}

func (p *RewardsDB) GetStreaksActiveSince(ctx context.Context, since time.Time) ([]models.StreakRecord, error) {
	sql, args, err := sq.Select(streakColumns...).
		From("streaks").
		Where(sq.Gt{"current_streak": 0}).
		Where(sq.GtOrEq{"last_activity_at": since}).
		OrderBy("account_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		p.logSQL(err, sql, args)
		return nil, err
	}
	defer rows.Close()

	recs := make([]models.StreakRecord, 0)
	for rows.Next() {
		rec, err := scanStreak(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanStreak(row pgx.Row) (models.StreakRecord, error) {
	var rec models.StreakRecord
	var last pgtype.Timestamptz
	var weekly []bool
	err := row.Scan(&rec.AccountID, &rec.CurrentStreak, &rec.LongestStreak, &last,
		&rec.FreezeTokens, &rec.FrozenDays, &weekly)
	if err != nil {
		return rec, err
	}
	if last.Status == pgtype.Present {
		rec.LastActivityAt = last.Time
	}
	copy(rec.WeeklyActivity[:], weekly)
	return rec, nil
}

func (p *RewardsDB) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := p.q(ctx).QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)", accountID).Scan(&exists)
	return exists, err
}

func (p *RewardsDB) logSQL(err error, sql string, args []any) {
	p.logger.Error("SQL error",
		zap.Error(err),
		zap.String("query", sql),
		zap.Any("args", args),
	)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
