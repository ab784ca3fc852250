package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lucky-rounds-backend/internal/models"
)

// SQLiteDB implements the DB interface using SQLite.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers alongside the ledger's writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			game_type TEXT NOT NULL,
			number INTEGER NOT NULL,
			phase TEXT NOT NULL,
			target REAL NOT NULL,
			multiplier REAL NOT NULL DEFAULT 1,
			server_seed TEXT NOT NULL,
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			house_edge REAL NOT NULL,
			bet_count INTEGER NOT NULL DEFAULT 0,
			total_wagered REAL NOT NULL DEFAULT 0,
			total_paid_out REAL NOT NULL DEFAULT 0,
			flagged INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			flight_started_at TEXT,
			settled_at TEXT,
			ended_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_game_number ON rounds(game_type, number)`,
		`CREATE TABLE IF NOT EXISTS participants (
			round_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			stake REAL NOT NULL,
			cashout_multiplier REAL NOT NULL DEFAULT 0,
			cashed_out_at TEXT,
			payout REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			placed_at TEXT NOT NULL,
			UNIQUE(round_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount REAL NOT NULL,
			game_type TEXT,
			round_id TEXT,
			balance_before REAL NOT NULL,
			balance_after REAL NOT NULL,
			detail TEXT,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SQLiteDB) SaveRound(round *models.Round) error {
	query := `INSERT INTO rounds (
		id, game_type, number, phase, target, multiplier,
		server_seed, server_seed_hash, client_seed, house_edge,
		bet_count, total_wagered, total_paid_out, flagged,
		created_at, flight_started_at, settled_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		round.ID, string(round.GameType), round.Number, string(round.Phase),
		round.Target, round.Multiplier,
		round.ServerSeed, round.ServerSeedHash, round.ClientSeed, round.HouseEdge,
		round.BetCount, round.TotalWagered, round.TotalPaidOut, round.Flagged,
		formatTime(round.CreatedAt), formatTime(round.FlightStartedAt),
		formatTime(round.SettledAt), formatTime(round.EndedAt),
	)
	return err
}

func (s *SQLiteDB) UpdateRound(round *models.Round) error {
	query := `UPDATE rounds SET
		phase = ?, multiplier = ?, bet_count = ?, total_wagered = ?,
		total_paid_out = ?, flagged = ?, flight_started_at = ?,
		settled_at = ?, ended_at = ?
	WHERE id = ?`

	_, err := s.db.Exec(query,
		string(round.Phase), round.Multiplier, round.BetCount, round.TotalWagered,
		round.TotalPaidOut, round.Flagged, formatTime(round.FlightStartedAt),
		formatTime(round.SettledAt), formatTime(round.EndedAt),
		round.ID,
	)
	return err
}

const roundColumns = `id, game_type, number, phase, target, multiplier,
	server_seed, server_seed_hash, client_seed, house_edge,
	bet_count, total_wagered, total_paid_out, flagged,
	created_at, flight_started_at, settled_at, ended_at`

func scanRound(scan func(dest ...any) error) (*models.Round, error) {
	var round models.Round
	var gameType, phase string
	var createdAt, flightStartedAt, settledAt, endedAt sql.NullString

	err := scan(
		&round.ID, &gameType, &round.Number, &phase,
		&round.Target, &round.Multiplier,
		&round.ServerSeed, &round.ServerSeedHash, &round.ClientSeed, &round.HouseEdge,
		&round.BetCount, &round.TotalWagered, &round.TotalPaidOut, &round.Flagged,
		&createdAt, &flightStartedAt, &settledAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	round.GameType = models.GameType(gameType)
	round.Phase = models.RoundPhase(phase)
	round.CreatedAt = parseTime(createdAt)
	round.FlightStartedAt = parseTime(flightStartedAt)
	round.SettledAt = parseTime(settledAt)
	round.EndedAt = parseTime(endedAt)
	return &round, nil
}

func (s *SQLiteDB) GetRound(id string) (*models.Round, error) {
	row := s.db.QueryRow(`SELECT `+roundColumns+` FROM rounds WHERE id = ?`, id)
	return scanRound(row.Scan)
}

func (s *SQLiteDB) RecentRounds(gameType models.GameType, limit int) ([]*models.Round, error) {
	rows, err := s.db.Query(
		`SELECT `+roundColumns+` FROM rounds WHERE game_type = ? ORDER BY number DESC LIMIT ?`,
		string(gameType), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows.Scan)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

func (s *SQLiteDB) LastRoundNumber(gameType models.GameType) (int64, error) {
	var number sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(number) FROM rounds WHERE game_type = ?`, string(gameType),
	).Scan(&number)
	if err != nil {
		return 0, err
	}
	return number.Int64, nil
}

func (s *SQLiteDB) SaveParticipants(roundID string, participants []*models.Participant) error {
	if len(participants) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO participants (
		round_id, user_id, stake, cashout_multiplier, cashed_out_at,
		payout, status, placed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range participants {
		_, err := stmt.Exec(
			roundID, p.UserID, p.Stake, p.CashoutMultiplier,
			formatTime(p.CashedOutAt), p.Payout, string(p.Status),
			formatTime(p.PlacedAt),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) GetParticipants(roundID string) ([]*models.Participant, error) {
	rows, err := s.db.Query(`SELECT round_id, user_id, stake, cashout_multiplier,
		cashed_out_at, payout, status, placed_at
		FROM participants WHERE round_id = ? ORDER BY placed_at`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		var p models.Participant
		var status string
		var cashedOutAt, placedAt sql.NullString

		err := rows.Scan(&p.RoundID, &p.UserID, &p.Stake, &p.CashoutMultiplier,
			&cashedOutAt, &p.Payout, &status, &placedAt)
		if err != nil {
			return nil, err
		}

		p.Status = models.ParticipantStatus(status)
		p.CashedOutAt = parseTime(cashedOutAt)
		p.PlacedAt = parseTime(placedAt)
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

func (s *SQLiteDB) AppendTransaction(tx *models.Transaction) error {
	var detailJSON any
	if tx.Detail != nil {
		data, err := json.Marshal(tx.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal outcome detail: %w", err)
		}
		detailJSON = string(data)
	}

	result, err := s.db.Exec(`INSERT INTO transactions (
		user_id, kind, amount, game_type, round_id,
		balance_before, balance_after, detail, status, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, string(tx.Kind), tx.Amount, string(tx.GameType), tx.RoundID,
		tx.BalanceBefore, tx.BalanceAfter, detailJSON, tx.Status,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return err
	}

	tx.ID, _ = result.LastInsertId()
	return nil
}

func (s *SQLiteDB) FinalizeTransaction(id int64, before, after float64, status string) error {
	result, err := s.db.Exec(`UPDATE transactions
		SET balance_before = ?, balance_after = ?, status = ?
		WHERE id = ?`,
		before, after, status, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %d not found", id)
	}
	return nil
}

func (s *SQLiteDB) UserTransactions(userID int64, limit int) ([]*models.Transaction, error) {
	rows, err := s.db.Query(`SELECT id, user_id, kind, amount, game_type, round_id,
		balance_before, balance_after, detail, status, created_at
		FROM transactions WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var kind, gameType string
		var detail, createdAt sql.NullString

		err := rows.Scan(&tx.ID, &tx.UserID, &kind, &tx.Amount, &gameType, &tx.RoundID,
			&tx.BalanceBefore, &tx.BalanceAfter, &detail, &tx.Status, &createdAt)
		if err != nil {
			return nil, err
		}

		tx.Kind = models.TransactionType(kind)
		tx.GameType = models.GameType(gameType)
		tx.CreatedAt = parseTime(createdAt)
		if detail.Valid && detail.String != "" {
			var d models.OutcomeDetail
			if err := json.Unmarshal([]byte(detail.String), &d); err == nil {
				tx.Detail = &d
			}
		}
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}

func (s *SQLiteDB) DailyNetLoss(userID int64) (float64, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339Nano)

	// Bets are recorded with negative amounts and wins with positive ones,
	// so the net loss is just the negated sum over both kinds. Pending and
	// flagged rows describe money that did not (yet) move and are excluded.
	var net sql.NullFloat64
	err := s.db.QueryRow(`SELECT -SUM(amount) FROM transactions
		WHERE user_id = ? AND kind IN ('bet', 'win') AND status = 'completed'
		AND created_at >= ?`,
		userID, dayStart,
	).Scan(&net)
	if err != nil {
		return 0, err
	}
	return net.Float64, nil
}
