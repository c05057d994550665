package device

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is the persisted subset of a device's outputs.
type State struct {
	Relays [RelayCount]bool
	Screen bool
}

// StateRepository persists device outputs across restarts.
type StateRepository interface {
	// Load returns the last saved state, or ErrStateNotFound if nothing
	// has been saved yet.
	Load(ctx context.Context) (State, error)
	SaveRelay(ctx context.Context, relay int, on bool) error
	SaveScreen(ctx context.Context, on bool) error
}

const (
	screenKey   = "screen"
	relayPrefix = "relay/"
)

// SQLiteStateRepository implements StateRepository on the device_state table.
type SQLiteStateRepository struct {
	db *sql.DB
}

// NewSQLiteStateRepository creates a repository over an open, migrated database.
func NewSQLiteStateRepository(db *sql.DB) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db}
}

// Load reads every stored output. Rows for unknown outputs are skipped.
func (r *SQLiteStateRepository) Load(ctx context.Context) (State, error) {
	var st State

	rows, err := r.db.QueryContext(ctx, `SELECT name, value FROM device_state`)
	if err != nil {
		return st, fmt.Errorf("querying device state: %w", err)
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var (
			name  string
			value int
		)
		if err := rows.Scan(&name, &value); err != nil {
			return st, fmt.Errorf("scanning device state: %w", err)
		}

		switch {
		case name == screenKey:
			st.Screen = value != 0
		case strings.HasPrefix(name, relayPrefix):
			idx, err := strconv.Atoi(strings.TrimPrefix(name, relayPrefix))
			if err != nil || !ValidRelay(idx) {
				continue
			}
			st.Relays[idx] = value != 0
		default:
			continue
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterating device state: %w", err)
	}

	if found == 0 {
		return st, ErrStateNotFound
	}
	return st, nil
}

// SaveRelay stores one relay's state.
func (r *SQLiteStateRepository) SaveRelay(ctx context.Context, relay int, on bool) error {
	if !ValidRelay(relay) {
		return fmt.Errorf("%w: %d", ErrUnknownRelay, relay)
	}
	return r.upsert(ctx, relayPrefix+strconv.Itoa(relay), on)
}

// SaveScreen stores the screen power state.
func (r *SQLiteStateRepository) SaveScreen(ctx context.Context, on bool) error {
	return r.upsert(ctx, screenKey, on)
}

func (r *SQLiteStateRepository) upsert(ctx context.Context, name string, on bool) error {
	value := 0
	if on {
		value = 1
	}

	const query = `INSERT INTO device_state (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, name, value, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}
