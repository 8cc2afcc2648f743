package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteBankStore implements BankStore on top of SQLite. Each bank is stored
// as one row with the trait scores and the two append-only lists encoded as
// JSON columns. This mirrors the single-document shape the engine works
// with: reads and writes are whole-bank operations, so there is no value in
// normalizing the lists into child tables.
type SQLiteBankStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBankStore creates a SQLiteBankStore backed by the given database
// connection. The caller must ensure the memory_banks table exists (created
// by migration 0001_memory_banks.sql). If logger is nil, the default slog
// logger is used.
func NewSQLiteBankStore(db *sql.DB, logger *slog.Logger) *SQLiteBankStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteBankStore{db: db, logger: logger}
}

// Get loads the bank for the character. Returns (nil, nil) when no row exists.
func (s *SQLiteBankStore) Get(ctx context.Context, characterID string) (*Bank, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT character_id, name, summary, traits, key_memories, history, created_at, last_updated
		FROM memory_banks
		WHERE character_id = ?`,
		characterID,
	)

	var (
		bank           Bank
		traitsJSON     string
		memoriesJSON   sql.NullString
		historyJSON    sql.NullString
		createdAtStr   string
		lastUpdatedStr string
	)
	err := row.Scan(
		&bank.CharacterID,
		&bank.Name,
		&bank.PersonalitySummary,
		&traitsJSON,
		&memoriesJSON,
		&historyJSON,
		&createdAtStr,
		&lastUpdatedStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bank store: query bank: %w", err)
	}

	if err := json.Unmarshal([]byte(traitsJSON), &bank.PersonalityTraits); err != nil {
		return nil, fmt.Errorf("bank store: unmarshal traits: %w", err)
	}
	if memoriesJSON.Valid && memoriesJSON.String != "" {
		if err := json.Unmarshal([]byte(memoriesJSON.String), &bank.KeyMemories); err != nil {
			return nil, fmt.Errorf("bank store: unmarshal key memories: %w", err)
		}
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &bank.ConversationHistory); err != nil {
			return nil, fmt.Errorf("bank store: unmarshal history: %w", err)
		}
	}

	bank.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("bank store: parse created_at: %w", err)
	}
	bank.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdatedStr)
	if err != nil {
		return nil, fmt.Errorf("bank store: parse last_updated: %w", err)
	}

	return &bank, nil
}

// Put overwrites the bank row for bank.CharacterID.
func (s *SQLiteBankStore) Put(ctx context.Context, bank *Bank) error {
	traitsJSON, err := json.Marshal(bank.PersonalityTraits)
	if err != nil {
		return fmt.Errorf("bank store: marshal traits: %w", err)
	}

	var memoriesJSON []byte
	if len(bank.KeyMemories) > 0 {
		memoriesJSON, err = json.Marshal(bank.KeyMemories)
		if err != nil {
			return fmt.Errorf("bank store: marshal key memories: %w", err)
		}
	}

	var historyJSON []byte
	if len(bank.ConversationHistory) > 0 {
		historyJSON, err = json.Marshal(bank.ConversationHistory)
		if err != nil {
			return fmt.Errorf("bank store: marshal history: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory_banks
			(character_id, name, summary, traits, key_memories, history, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bank.CharacterID,
		bank.Name,
		bank.PersonalitySummary,
		string(traitsJSON),
		nullable(memoriesJSON),
		nullable(historyJSON),
		bank.CreatedAt.UTC().Format(time.RFC3339Nano),
		bank.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("bank store: upsert bank: %w", err)
	}

	s.logger.Debug("bank store: saved bank",
		"character_id", bank.CharacterID,
		"key_memories", len(bank.KeyMemories),
		"history_entries", len(bank.ConversationHistory),
	)
	return nil
}

// nullable converts an empty JSON buffer to a SQL NULL.
func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Compile-time interface satisfaction check.
var _ BankStore = (*SQLiteBankStore)(nil)
