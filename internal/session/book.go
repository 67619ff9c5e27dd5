// Package session holds the portfolios being edited in one run of the
// analyst. The book lives in an in-memory SQLite database and is gone when
// the process exits.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
)

// Default portfolio IDs used by the comparison views.
const (
	PortfolioA = "A"
	PortfolioB = "B"
)

// Book stores legs per portfolio ID in insertion order.
type Book struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	logger zerolog.Logger
}

// Open creates an empty book.
func Open(logger zerolog.Logger) (*Book, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &Book{
		db:     db,
		logger: logger.With().Str("component", "session").Logger(),
	}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

func (b *Book) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS legs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio TEXT NOT NULL,
		option_type TEXT NOT NULL,
		strike REAL NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_legs_portfolio ON legs(portfolio, id);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Close releases the database. The book is unusable afterwards.
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// NormalizeID upper-cases and trims a portfolio ID.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func checkID(id string) (string, error) {
	id = NormalizeID(id)
	if id == "" {
		return "", apperrors.NewValidationError("portfolio", id, "must not be empty")
	}
	return id, nil
}

// AddLeg appends leg to portfolio id.
func (b *Book) AddLeg(ctx context.Context, id string, leg models.OptionLeg) error {
	id, err := checkID(id)
	if err != nil {
		return err
	}
	if err := leg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return apperrors.ErrSessionClosed
	}

	if err := insertLeg(ctx, b.db, id, leg); err != nil {
		return fmt.Errorf("failed to add leg: %w", err)
	}
	b.logger.Debug().Str("portfolio", id).Str("leg", leg.String()).Msg("Leg added")
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertLeg(ctx context.Context, db execer, id string, leg models.OptionLeg) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO legs (portfolio, option_type, strike, quantity, entry_price)
		VALUES (?, ?, ?, ?, ?)
	`, id, string(leg.Type), leg.Strike, leg.Quantity, leg.EntryPrice)
	return err
}

// SetLegs replaces every leg of portfolio id. All legs must be valid.
func (b *Book) SetLegs(ctx context.Context, id string, legs []models.OptionLeg) error {
	id, err := checkID(id)
	if err != nil {
		return err
	}
	for i, leg := range legs {
		if err := leg.Validate(); err != nil {
			return apperrors.NewLegError(id, i, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return apperrors.ErrSessionClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM legs WHERE portfolio = ?`, id); err != nil {
		return fmt.Errorf("failed to clear portfolio: %w", err)
	}
	for _, leg := range legs {
		if err := insertLeg(ctx, tx, id, leg); err != nil {
			return fmt.Errorf("failed to add leg: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	b.logger.Debug().Str("portfolio", id).Int("legs", len(legs)).Msg("Portfolio replaced")
	return nil
}

// Legs returns the legs of portfolio id in insertion order. An unknown ID
// has no legs.
func (b *Book) Legs(ctx context.Context, id string) ([]models.OptionLeg, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, apperrors.ErrSessionClosed
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT option_type, strike, quantity, entry_price
		FROM legs WHERE portfolio = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs: %w", err)
	}
	defer rows.Close()

	legs := []models.OptionLeg{}
	for rows.Next() {
		var leg models.OptionLeg
		var typ string
		if err := rows.Scan(&typ, &leg.Strike, &leg.Quantity, &leg.EntryPrice); err != nil {
			return nil, fmt.Errorf("failed to scan leg: %w", err)
		}
		leg.Type = models.OptionType(typ)
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

// Portfolio returns portfolio id as a models.Portfolio.
func (b *Book) Portfolio(ctx context.Context, id string) (models.Portfolio, error) {
	legs, err := b.Legs(ctx, id)
	if err != nil {
		return models.Portfolio{}, err
	}
	return models.Portfolio{ID: NormalizeID(id), Legs: legs}, nil
}

// RemoveLeg deletes the leg at zero-based position index and returns it.
func (b *Book) RemoveLeg(ctx context.Context, id string, index int) (models.OptionLeg, error) {
	id, err := checkID(id)
	if err != nil {
		return models.OptionLeg{}, err
	}
	if index < 0 {
		return models.OptionLeg{}, fmt.Errorf("%w: %s[%d]", apperrors.ErrLegNotFound, id, index)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return models.OptionLeg{}, apperrors.ErrSessionClosed
	}

	var rowID int64
	var leg models.OptionLeg
	var typ string
	err = b.db.QueryRowContext(ctx, `
		SELECT id, option_type, strike, quantity, entry_price
		FROM legs WHERE portfolio = ? ORDER BY id LIMIT 1 OFFSET ?
	`, id, index).Scan(&rowID, &typ, &leg.Strike, &leg.Quantity, &leg.EntryPrice)
	if err == sql.ErrNoRows {
		return models.OptionLeg{}, fmt.Errorf("%w: %s[%d]", apperrors.ErrLegNotFound, id, index)
	}
	if err != nil {
		return models.OptionLeg{}, fmt.Errorf("failed to find leg: %w", err)
	}
	leg.Type = models.OptionType(typ)

	if _, err := b.db.ExecContext(ctx, `DELETE FROM legs WHERE id = ?`, rowID); err != nil {
		return models.OptionLeg{}, fmt.Errorf("failed to remove leg: %w", err)
	}

	b.logger.Debug().Str("portfolio", id).Int("index", index).Msg("Leg removed")
	return leg, nil
}

// Clear removes every leg of portfolio id.
func (b *Book) Clear(ctx context.Context, id string) error {
	id, err := checkID(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return apperrors.ErrSessionClosed
	}

	if _, err := b.db.ExecContext(ctx, `DELETE FROM legs WHERE portfolio = ?`, id); err != nil {
		return fmt.Errorf("failed to clear portfolio: %w", err)
	}
	return nil
}

// IDs returns the portfolio IDs holding at least one leg, sorted.
func (b *Book) IDs(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, apperrors.ErrSessionClosed
	}

	rows, err := b.db.QueryContext(ctx, `SELECT DISTINCT portfolio FROM legs ORDER BY portfolio`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
