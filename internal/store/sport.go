package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type SportStore struct {
	db *sql.DB
}

func NewSportStore(db *sql.DB) *SportStore {
	return &SportStore{db: db}
}

// --- Match methods ---

func scanMatch(scanner interface{ Scan(...any) error }) (*model.Match, error) {
	var m model.Match
	err := scanner.Scan(&m.ID, &m.Team, &m.Opponent, &m.PlayedOn, &m.Location, &m.Home,
		&m.GoalsFor, &m.GoalsAgainst, &m.Competition, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const matchCols = `id, team, opponent, played_on, location, home, goals_for, goals_against, competition, created_at`

func (s *SportStore) CreateMatch(ctx context.Context, m model.Match) (*model.Match, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sport_matches (team, opponent, played_on, location, home, goals_for, goals_against, competition)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Team, m.Opponent, m.PlayedOn, m.Location, m.Home, m.GoalsFor, m.GoalsAgainst, m.Competition,
	)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMatch(ctx, id)
}

func (s *SportStore) GetMatch(ctx context.Context, id int64) (*model.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchCols+` FROM sport_matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (s *SportStore) ListMatches(ctx context.Context, f Filter) ([]model.Match, error) {
	var c clauses
	if f.Team != "" {
		c.add("team = ?", f.Team)
	}
	c.dateRange("played_on", f)
	q, args := c.query(`SELECT `+matchCols+` FROM sport_matches`, "played_on DESC, id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (s *SportStore) UpdateMatch(ctx context.Context, id int64, m model.Match) (*model.Match, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sport_matches SET team = ?, opponent = ?, played_on = ?, location = ?, home = ?,
		 goals_for = ?, goals_against = ?, competition = ? WHERE id = ?`,
		m.Team, m.Opponent, m.PlayedOn, m.Location, m.Home, m.GoalsFor, m.GoalsAgainst, m.Competition, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update match: %w", err)
	}
	return s.GetMatch(ctx, id)
}

// DeleteMatch removes a match and its cards. Sanctions issued for those
// cards stay and lose their card link.
func (s *SportStore) DeleteMatch(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sport_matches WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

// --- Card methods ---

const cardCols = `id, match_id, member_id, color, minute, created_at`

func scanCard(scanner interface{ Scan(...any) error }) (*model.MatchCard, error) {
	var c model.MatchCard
	if err := scanner.Scan(&c.ID, &c.MatchID, &c.MemberID, &c.Color, &c.Minute, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SportStore) AddCard(ctx context.Context, c model.MatchCard) (*model.MatchCard, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO match_cards (match_id, member_id, color, minute) VALUES (?, ?, ?, ?)`,
		c.MatchID, c.MemberID, c.Color, c.Minute,
	)
	if err != nil {
		return nil, fmt.Errorf("insert match card: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+cardCols+` FROM match_cards WHERE id = ?`, id)
	card, err := scanCard(row)
	if err != nil {
		return nil, fmt.Errorf("get match card: %w", err)
	}
	return card, nil
}

func (s *SportStore) ListCards(ctx context.Context, matchID int64) ([]model.MatchCard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cardCols+` FROM match_cards WHERE match_id = ? ORDER BY minute, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list match cards: %w", err)
	}
	defer rows.Close()

	var cards []model.MatchCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match card: %w", err)
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (s *SportStore) DeleteCard(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM match_cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete match card: %w", err)
	}
	return nil
}

// PendingCards returns cards that have no sanction linked to them yet,
// oldest first.
func (s *SportStore) PendingCards(ctx context.Context) ([]model.PendingCard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.match_id, c.member_id, c.color, c.minute, c.created_at, m.team, m.opponent, m.played_on
		 FROM match_cards c
		 JOIN sport_matches m ON m.id = c.match_id
		 LEFT JOIN sanctions s ON s.match_card_id = c.id
		 WHERE s.id IS NULL
		 ORDER BY m.played_on, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list pending cards: %w", err)
	}
	defer rows.Close()

	var cards []model.PendingCard
	for rows.Next() {
		var p model.PendingCard
		if err := rows.Scan(&p.ID, &p.MatchID, &p.MemberID, &p.Color, &p.Minute, &p.CreatedAt,
			&p.Team, &p.Opponent, &p.PlayedOn); err != nil {
			return nil, fmt.Errorf("scan pending card: %w", err)
		}
		cards = append(cards, p)
	}
	return cards, rows.Err()
}

// CardCounts returns yellow and red card totals, optionally for one team.
func (s *SportStore) CardCounts(ctx context.Context, team string) (yellow, red int, err error) {
	var c clauses
	if team != "" {
		c.add("m.team = ?", team)
	}
	args := append([]any{model.CardYellow, model.CardRed}, c.args...)
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN c.color = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN c.color = ? THEN 1 ELSE 0 END), 0)
		 FROM match_cards c JOIN sport_matches m ON m.id = c.match_id`+c.where(),
		args...,
	).Scan(&yellow, &red)
	if err != nil {
		return 0, 0, fmt.Errorf("count cards: %w", err)
	}
	return yellow, red, nil
}

// --- Transaction methods ---

const transactionCols = `id, team, kind, amount, label, occurred_on, created_at`

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.SportTransaction, error) {
	var t model.SportTransaction
	if err := scanner.Scan(&t.ID, &t.Team, &t.Kind, &t.Amount, &t.Label, &t.OccurredOn, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SportStore) CreateTransaction(ctx context.Context, t model.SportTransaction) (*model.SportTransaction, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sport_transactions (team, kind, amount, label, occurred_on) VALUES (?, ?, ?, ?, ?)`,
		t.Team, t.Kind, t.Amount, t.Label, t.OccurredOn,
	)
	if err != nil {
		return nil, fmt.Errorf("insert sport transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTransaction(ctx, id)
}

func (s *SportStore) GetTransaction(ctx context.Context, id int64) (*model.SportTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM sport_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sport transaction: %w", err)
	}
	return t, nil
}

func transactionClauses(f Filter, kind string) clauses {
	var c clauses
	if f.Team != "" {
		c.add("team = ?", f.Team)
	}
	if kind != "" {
		c.add("kind = ?", kind)
	}
	c.dateRange("occurred_on", f)
	return c
}

func (s *SportStore) ListTransactions(ctx context.Context, f Filter) ([]model.SportTransaction, error) {
	c := transactionClauses(f, "")
	q, args := c.query(`SELECT `+transactionCols+` FROM sport_transactions`, "occurred_on DESC, id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sport transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.SportTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sport transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (s *SportStore) UpdateTransaction(ctx context.Context, id int64, t model.SportTransaction) (*model.SportTransaction, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sport_transactions SET team = ?, kind = ?, amount = ?, label = ?, occurred_on = ? WHERE id = ?`,
		t.Team, t.Kind, t.Amount, t.Label, t.OccurredOn, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update sport transaction: %w", err)
	}
	return s.GetTransaction(ctx, id)
}

func (s *SportStore) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sport_transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete sport transaction: %w", err)
	}
	return nil
}

// SumTransactions totals receipts or expenses (kind) within f.
func (s *SportStore) SumTransactions(ctx context.Context, f Filter, kind string) (int64, error) {
	c := transactionClauses(f, kind)
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM sport_transactions`+c.where(), c.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum sport transactions: %w", err)
	}
	return total, nil
}

func (s *SportStore) CountMatches(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sport_matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}
