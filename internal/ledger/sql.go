package ledger

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store on database/sql for SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLStore{db: db, dialect: dialectSQLite}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLStore{db: db, dialect: dialectPostgres}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// q rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// forUpdate locks selected rows on Postgres; SQLite runs on a single connection.
func (s *SQLStore) forUpdate() string {
	if s.dialect == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		idCol = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS chip_accounts (
    guild_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    chips BIGINT NOT NULL DEFAULT 0,
    created_at_ms BIGINT NOT NULL,
    updated_at_ms BIGINT NOT NULL,
    PRIMARY KEY (guild_id, user_id)
)`,
		`
CREATE TABLE IF NOT EXISTS house_accounts (
    guild_id TEXT PRIMARY KEY,
    chips BIGINT NOT NULL DEFAULT 0,
    updated_at_ms BIGINT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS table_escrow (
    table_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    guild_id TEXT NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    updated_at_ms BIGINT NOT NULL,
    PRIMARY KEY (table_id, user_id)
)`,
		`
CREATE TABLE IF NOT EXISTS hand_pots (
    hand_id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    updated_at_ms BIGINT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS escrow_journal (
    ` + idCol + `,
    table_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    hand_id TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    amount BIGINT NOT NULL,
    op_key TEXT UNIQUE,
    created_at_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_escrow_journal_table ON escrow_journal(table_id, created_at_ms)`,
		`
CREATE TABLE IF NOT EXISTS hand_records (
    hand_id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    hand_no BIGINT NOT NULL,
    record_b64 TEXT NOT NULL,
    summary_json TEXT NOT NULL DEFAULT '{}',
    rake BIGINT NOT NULL DEFAULT 0,
    ended_at_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_records_table ON hand_records(table_id, ended_at_ms DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nowMs() int64 { return time.Now().UTC().UnixMilli() }

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// inTx runs fn in a transaction bounded by the default op timeout.
func (s *SQLStore) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// journal appends an escrow movement. With an op key it reports false when the
// operation was already applied.
func (s *SQLStore) journal(ctx context.Context, tx *sql.Tx, table TableID, userID, handID, kind string, amount int64, opKey string) (bool, error) {
	res, err := tx.ExecContext(ctx, s.q(`
INSERT INTO escrow_journal (table_id, user_id, hand_id, kind, amount, op_key, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (op_key) DO NOTHING
`), table.String(), userID, handID, kind, amount, nullableString(opKey), nowMs())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) scanInt(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	var v int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, s.q(query), args...).Scan(&v)
	} else {
		err = s.db.QueryRowContext(ctx, s.q(query), args...).Scan(&v)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (s *SQLStore) addWallet(ctx context.Context, tx *sql.Tx, guildID, userID string, delta int64) error {
	now := nowMs()
	_, err := tx.ExecContext(ctx, s.q(`
INSERT INTO chip_accounts (guild_id, user_id, chips, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (guild_id, user_id) DO UPDATE
SET
    chips = chip_accounts.chips + excluded.chips,
    updated_at_ms = excluded.updated_at_ms
`), guildID, userID, delta, now, now)
	return err
}

func (s *SQLStore) addEscrow(ctx context.Context, tx *sql.Tx, table TableID, userID string, delta int64) error {
	_, err := tx.ExecContext(ctx, s.q(`
INSERT INTO table_escrow (table_id, user_id, guild_id, amount, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (table_id, user_id) DO UPDATE
SET
    amount = table_escrow.amount + excluded.amount,
    updated_at_ms = excluded.updated_at_ms
`), table.String(), userID, table.GuildID, delta, nowMs())
	return err
}

func (s *SQLStore) addPot(ctx context.Context, tx *sql.Tx, table TableID, handID string, delta int64) error {
	_, err := tx.ExecContext(ctx, s.q(`
INSERT INTO hand_pots (hand_id, table_id, amount, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT (hand_id) DO UPDATE
SET
    amount = hand_pots.amount + excluded.amount,
    updated_at_ms = excluded.updated_at_ms
`), handID, table.String(), delta, nowMs())
	return err
}

func (s *SQLStore) Grant(ctx context.Context, guildID, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.addWallet(ctx, tx, guildID, userID, amount); err != nil {
			return err
		}
		if _, err := s.journal(ctx, tx, TableID{GuildID: guildID}, userID, "", "grant", amount, ""); err != nil {
			return err
		}
		var err error
		balance, err = s.scanInt(ctx, tx, `SELECT chips FROM chip_accounts WHERE guild_id = ? AND user_id = ?`, guildID, userID)
		return err
	})
	return balance, err
}

func (s *SQLStore) EnsureAccount(ctx context.Context, guildID, userID string, initial int64) (int64, error) {
	if initial < 0 {
		initial = 0
	}
	var balance int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		now := nowMs()
		if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO chip_accounts (guild_id, user_id, chips, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (guild_id, user_id) DO NOTHING
`), guildID, userID, initial, now, now); err != nil {
			return err
		}
		var err error
		balance, err = s.scanInt(ctx, tx, `SELECT chips FROM chip_accounts WHERE guild_id = ? AND user_id = ?`, guildID, userID)
		return err
	})
	return balance, err
}

func (s *SQLStore) Balance(ctx context.Context, guildID, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	return s.scanInt(ctx, nil, `SELECT chips FROM chip_accounts WHERE guild_id = ? AND user_id = ?`, guildID, userID)
}

func (s *SQLStore) EscrowBalance(ctx context.Context, table TableID, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	return s.scanInt(ctx, nil, `SELECT amount FROM table_escrow WHERE table_id = ? AND user_id = ?`, table.String(), userID)
}

func (s *SQLStore) HouseBalance(ctx context.Context, guildID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	return s.scanInt(ctx, nil, `SELECT chips FROM house_accounts WHERE guild_id = ?`, guildID)
}

func (s *SQLStore) PotBalance(ctx context.Context, handID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	return s.scanInt(ctx, nil, `SELECT amount FROM hand_pots WHERE hand_id = ?`, handID)
}

func (s *SQLStore) EscrowAdd(ctx context.Context, table TableID, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var escrow int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		balance, err := s.scanInt(ctx, tx,
			`SELECT chips FROM chip_accounts WHERE guild_id = ? AND user_id = ?`+s.forUpdate(), table.GuildID, userID)
		if err != nil {
			return err
		}
		if balance < amount {
			return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, balance, amount)
		}
		if err := s.addWallet(ctx, tx, table.GuildID, userID, -amount); err != nil {
			return err
		}
		if err := s.addEscrow(ctx, tx, table, userID, amount); err != nil {
			return err
		}
		if _, err := s.journal(ctx, tx, table, userID, "", "add", amount, ""); err != nil {
			return err
		}
		escrow, err = s.scanInt(ctx, tx, `SELECT amount FROM table_escrow WHERE table_id = ? AND user_id = ?`, table.String(), userID)
		return err
	})
	return escrow, err
}

func (s *SQLStore) EscrowReturn(ctx context.Context, table TableID, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var remaining int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		escrow, err := s.scanInt(ctx, tx,
			`SELECT amount FROM table_escrow WHERE table_id = ? AND user_id = ?`+s.forUpdate(), table.String(), userID)
		if err != nil {
			return err
		}
		amount = min(amount, escrow)
		remaining = escrow - amount
		if amount == 0 {
			return nil
		}
		if remaining == 0 {
			_, err = tx.ExecContext(ctx, s.q(`DELETE FROM table_escrow WHERE table_id = ? AND user_id = ?`), table.String(), userID)
		} else {
			err = s.addEscrow(ctx, tx, table, userID, -amount)
		}
		if err != nil {
			return err
		}
		if err := s.addWallet(ctx, tx, table.GuildID, userID, amount); err != nil {
			return err
		}
		_, err = s.journal(ctx, tx, table, userID, "", "return", amount, "")
		return err
	})
	return remaining, err
}

func (s *SQLStore) EscrowCommit(ctx context.Context, table TableID, userID, handID, street string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		fresh, err := s.journal(ctx, tx, table, userID, handID, "commit", amount, commitKey(handID, userID, street))
		if err != nil || !fresh {
			return err
		}
		escrow, err := s.scanInt(ctx, tx,
			`SELECT amount FROM table_escrow WHERE table_id = ? AND user_id = ?`+s.forUpdate(), table.String(), userID)
		if err != nil {
			return err
		}
		if escrow < amount {
			return fmt.Errorf("%w: escrow %d, commit %d", ErrInsufficientEscrow, escrow, amount)
		}
		if err := s.addEscrow(ctx, tx, table, userID, -amount); err != nil {
			return err
		}
		return s.addPot(ctx, tx, table, handID, amount)
	})
}

func (s *SQLStore) EscrowCreditMany(ctx context.Context, table TableID, handID string, payouts []Payout) error {
	for _, p := range payouts {
		if p.Amount < 0 {
			return ErrInvalidAmount
		}
	}
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		pot, err := s.scanInt(ctx, tx, `SELECT amount FROM hand_pots WHERE hand_id = ?`+s.forUpdate(), handID)
		if err != nil {
			return err
		}
		var total int64
		for _, p := range payouts {
			if p.Amount == 0 {
				continue
			}
			fresh, err := s.journal(ctx, tx, table, p.UserID, handID, "credit", p.Amount, creditKey(handID, p.UserID))
			if err != nil {
				return err
			}
			if !fresh {
				continue
			}
			if err := s.addEscrow(ctx, tx, table, p.UserID, p.Amount); err != nil {
				return err
			}
			total += p.Amount
		}
		if total > pot {
			return fmt.Errorf("credit %d exceeds hand pot %d", total, pot)
		}
		if total == 0 {
			return nil
		}
		return s.addPot(ctx, tx, table, handID, -total)
	})
}

func (s *SQLStore) SettleRake(ctx context.Context, table TableID, handID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var house int64
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if amount > 0 {
			fresh, err := s.journal(ctx, tx, table, "", handID, "rake", amount, rakeKey(handID))
			if err != nil {
				return err
			}
			if fresh {
				pot, err := s.scanInt(ctx, tx, `SELECT amount FROM hand_pots WHERE hand_id = ?`+s.forUpdate(), handID)
				if err != nil {
					return err
				}
				if amount > pot {
					return fmt.Errorf("rake %d exceeds hand pot %d", amount, pot)
				}
				if err := s.addPot(ctx, tx, table, handID, -amount); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO house_accounts (guild_id, chips, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT (guild_id) DO UPDATE
SET
    chips = house_accounts.chips + excluded.chips,
    updated_at_ms = excluded.updated_at_ms
`), table.GuildID, amount, nowMs()); err != nil {
					return err
				}
			}
		}
		var err error
		house, err = s.scanInt(ctx, tx, `SELECT chips FROM house_accounts WHERE guild_id = ?`, table.GuildID)
		return err
	})
	return house, err
}

func (s *SQLStore) FinalizeHand(ctx context.Context, rec *HandRecord) error {
	if rec == nil || rec.HandID == "" {
		return fmt.Errorf("hand record requires a hand id")
	}
	summary, err := summaryJSON(rec)
	if err != nil {
		return err
	}
	endedAt := rec.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	recordB64 := base64.StdEncoding.EncodeToString(MarshalHandRecord(rec))

	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO hand_records (hand_id, table_id, hand_no, record_b64, summary_json, rake, ended_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (hand_id) DO NOTHING
`), rec.HandID, rec.Table.String(), int64(rec.HandNo), recordB64, summary, rec.Rake, endedAt.UnixMilli()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(`DELETE FROM hand_pots WHERE hand_id = ? AND amount = 0`), rec.HandID)
		return err
	})
}

func (s *SQLStore) HandRecord(ctx context.Context, handID string) (*HandRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	var recordB64 string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT record_b64 FROM hand_records WHERE hand_id = ?`), handID).Scan(&recordB64)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(recordB64)
	if err != nil {
		return nil, err
	}
	return UnmarshalHandRecord(raw)
}
