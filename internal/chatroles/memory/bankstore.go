package memory

import "context"

// BankStore is the pluggable persistence interface for memory banks.
// Implementations must be safe for concurrent use.
//
// Absence is not an error: Get returns (nil, nil) when no bank exists for
// the character. Errors are reserved for storage I/O failure, which callers
// treat as fatal for the current request — retry policy belongs to the
// storage layer, not here.
type BankStore interface {
	// Get returns the bank for the character, or (nil, nil) when none exists.
	Get(ctx context.Context, characterID string) (*Bank, error)

	// Put persists the bank under its CharacterID, overwriting any previous
	// record in full.
	Put(ctx context.Context, bank *Bank) error
}
