package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const schema = `
CREATE TABLE IF NOT EXISTS arena_results (
	result_id     TEXT PRIMARY KEY,
	room_id       TEXT NOT NULL,
	white_id      TEXT NOT NULL,
	white_name    TEXT NOT NULL,
	black_id      TEXT NOT NULL,
	black_name    TEXT NOT NULL,
	minutes       DOUBLE PRECISION NOT NULL,
	increment_sec INTEGER NOT NULL,
	winner        TEXT NOT NULL,
	method        TEXT NOT NULL,
	moves_uci     JSONB NOT NULL,
	moves_san     JSONB NOT NULL,
	final_fen     TEXT NOT NULL,
	pgn           TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL
)`

type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(databaseURL string) (*PostgresRecorder, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRecorder{db: db}, nil
}

// NewPostgresRecorderFromDB wraps an already opened pool.
func NewPostgresRecorderFromDB(db *sql.DB) *PostgresRecorder { return &PostgresRecorder{db: db} }

func (r *PostgresRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create arena_results: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, res arenadto.MatchResult) error {
	if r == nil || r.db == nil {
		return nil
	}
	res = withPGN(res)
	movesUCI, err := json.Marshal(nonNil(res.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(res.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO arena_results (
		result_id, room_id, white_id, white_name, black_id, black_name,
		minutes, increment_sec, winner, method, moves_uci, moves_san,
		final_fen, pgn, started_at, ended_at, duration_ms
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12::jsonb,$13,$14,$15,$16,$17
	) ON CONFLICT (result_id) DO UPDATE SET
		winner=EXCLUDED.winner,
		method=EXCLUDED.method,
		moves_uci=EXCLUDED.moves_uci,
		moves_san=EXCLUDED.moves_san,
		final_fen=EXCLUDED.final_fen,
		pgn=EXCLUDED.pgn,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		res.ID, res.RoomID,
		res.WhiteID, res.White,
		res.BlackID, res.Black,
		res.TimeControl.Minutes, res.TimeControl.Increment,
		res.Winner, res.Method, string(movesUCI), string(movesSAN),
		res.FEN, res.PGN, res.StartedAt, res.EndedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("insert arena result: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Recent(ctx context.Context, n int) ([]arenadto.MatchResult, error) {
	if n <= 0 {
		n = 10
	}
	const q = `
		SELECT result_id, room_id, white_id, white_name, black_id, black_name,
			minutes, increment_sec, winner, method, moves_uci, moves_san,
			final_fen, pgn, started_at, ended_at
		FROM arena_results
		ORDER BY ended_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("select arena results: %w", err)
	}
	defer rows.Close()

	out := make([]arenadto.MatchResult, 0, n)
	for rows.Next() {
		var (
			res          arenadto.MatchResult
			movesUCIJSON []byte
			movesSANJSON []byte
		)
		if err := rows.Scan(
			&res.ID, &res.RoomID,
			&res.WhiteID, &res.White,
			&res.BlackID, &res.Black,
			&res.TimeControl.Minutes, &res.TimeControl.Increment,
			&res.Winner, &res.Method,
			&movesUCIJSON, &movesSANJSON,
			&res.FEN, &res.PGN, &res.StartedAt, &res.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan arena result: %w", err)
		}
		if err := json.Unmarshal(movesUCIJSON, &res.MovesUCI); err != nil {
			return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
		}
		if err := json.Unmarshal(movesSANJSON, &res.MovesSAN); err != nil {
			return nil, fmt.Errorf("unmarshal moves_san: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
