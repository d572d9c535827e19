package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/mcdev12/lastbuyer/go/internal/sqlutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_rounds (
	id               UUID PRIMARY KEY,
	status           TEXT NOT NULL,
	prize_pool_cents BIGINT NOT NULL,
	last_buyer       TEXT NOT NULL DEFAULT '',
	buy_count        INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL,
	ends_at          TIMESTAMPTZ NOT NULL,
	ended_at         TIMESTAMPTZ,
	winner           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS game_rounds_started_at_idx ON game_rounds (started_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS game_rounds_one_active_idx ON game_rounds ((true)) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS game_buys (
	id           BIGSERIAL PRIMARY KEY,
	round_id     UUID NOT NULL REFERENCES game_rounds (id),
	address      TEXT NOT NULL,
	amount_cents BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS game_buys_round_address_idx ON game_buys (round_id, address);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         UUID PRIMARY KEY,
	address    TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_created_at_idx ON chat_messages (created_at DESC);
`

const (
	uniqueViolation   = "23505"
	oneActiveRoundIdx = "game_rounds_one_active_idx"
)

const roundColumns = `id, status, prize_pool_cents, last_buyer, buy_count, started_at, ends_at, ended_at, winner`

// PGRepository stores rounds, buys and chat in Postgres. Round mutations take a row lock,
// so several server instances can share one database.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a new Postgres-backed repository
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// EnsureSchema creates the game tables if they do not exist
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CurrentRound returns the most recently started round
func (r *PGRepository) CurrentRound(ctx context.Context) (*models.Round, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds ORDER BY started_at DESC, id DESC LIMIT 1`)
	round, err := scanRound(row)
	if err != nil {
		return nil, err
	}
	return round, nil
}

// CreateRound inserts a new round. At most one active round may exist; a second insert
// fails with ErrRoundActive.
func (r *PGRepository) CreateRound(ctx context.Context, round *models.Round) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO game_rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, round.ID, string(round.Status), int64(round.PrizePool), round.LastBuyer, round.BuyCount,
		round.StartedAt, round.EndsAt, round.EndedAt, round.Winner)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == oneActiveRoundIdx {
		return ErrRoundActive
	}
	if err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

// UpdateRound locks the round row, applies fn, and writes the result back
func (r *PGRepository) UpdateRound(ctx context.Context, id uuid.UUID, fn func(r *models.Round) error) (*models.Round, error) {
	var updated *models.Round
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		round, err := lockRound(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(round); err != nil {
			return err
		}
		if err := saveRound(ctx, tx, round); err != nil {
			return err
		}
		updated = round
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyBuy locks the round row, applies fn, and records the buy in the same transaction
func (r *PGRepository) ApplyBuy(ctx context.Context, id uuid.UUID, fn BuyFunc) (*models.Round, *models.BuyEvent, error) {
	var (
		updated *models.Round
		buy     *models.BuyEvent
	)
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		round, err := lockRound(ctx, tx, id)
		if err != nil {
			return err
		}
		b, err := fn(round)
		if err != nil {
			return err
		}
		if err := saveRound(ctx, tx, round); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO game_buys (round_id, address, amount_cents, created_at)
			VALUES ($1, $2, $3, to_timestamp($4::double precision / 1000))
		`, b.RoundID, b.Address, int64(b.Amount), b.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert buy: %w", err)
		}
		updated, buy = round, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, buy, nil
}

// CountBuys returns how many times address bought in the round
func (r *PGRepository) CountBuys(ctx context.Context, roundID uuid.UUID, address string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM game_buys WHERE round_id = $1 AND address = $2
	`, roundID, address).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count buys: %w", err)
	}
	return count, nil
}

// AppendChat stores a chat message
func (r *PGRepository) AppendChat(ctx context.Context, msg *models.ChatMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, address, message, created_at)
		VALUES ($1, $2, $3, to_timestamp($4::double precision / 1000))
	`, msg.ID, msg.Address, msg.Message, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// RecentChat returns up to limit messages, oldest first
func (r *PGRepository) RecentChat(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, address, message, created_at FROM (
			SELECT id, address, message, created_at
			FROM chat_messages
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.ChatMessage{}
	for rows.Next() {
		var (
			msg models.ChatMessage
			at  time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.Address, &msg.Message, &at); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Timestamp = at.UnixMilli()
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat messages: %w", err)
	}
	return msgs, nil
}

func lockRound(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Round, error) {
	row := tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE id = $1 FOR UPDATE`, id)
	return scanRound(row)
}

func saveRound(ctx context.Context, tx pgx.Tx, round *models.Round) error {
	_, err := tx.Exec(ctx, `
		UPDATE game_rounds
		SET status = $2,
			prize_pool_cents = $3,
			last_buyer = $4,
			buy_count = $5,
			ends_at = $6,
			ended_at = $7,
			winner = $8
		WHERE id = $1
	`, round.ID, string(round.Status), int64(round.PrizePool), round.LastBuyer, round.BuyCount,
		round.EndsAt, round.EndedAt, round.Winner)
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	return nil
}

func scanRound(row pgx.Row) (*models.Round, error) {
	var (
		round  models.Round
		status string
		cents  int64
	)
	err := row.Scan(&round.ID, &status, &cents, &round.LastBuyer, &round.BuyCount,
		&round.StartedAt, &round.EndsAt, &round.EndedAt, &round.Winner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan round: %w", err)
	}
	round.Status = models.RoundStatus(status)
	round.PrizePool = models.Amount(cents)
	return &round, nil
}
