// Package settings persists per-user configuration. Today that is a single
// opaque credential: the AI API key used for analysis and prompt calls.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// APIKeyName is the fixed key the credential is stored under.
const APIKeyName = "api_key"

// Store is the slice of the query layer the service needs.
type Store interface {
	GetSetting(ctx context.Context, userID, name string) (string, error)
	UpsertSetting(ctx context.Context, userID, name, value string) error
	DeleteSetting(ctx context.Context, userID, name string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// APIKey returns the stored credential, or empty when none has been set.
// Reading before the first write is not an error: the store is usable from
// the first call.
func (s *Service) APIKey(ctx context.Context, userID string) (string, error) {
	value, err := s.store.GetSetting(ctx, userID, APIKeyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get api key: %w", err)
	}
	return value, nil
}

// SetAPIKey stores or replaces the credential.
func (s *Service) SetAPIKey(ctx context.Context, userID, key string) error {
	if key == "" {
		return errors.New("api key must not be empty")
	}
	if err := s.store.UpsertSetting(ctx, userID, APIKeyName, key); err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	return nil
}

// ClearAPIKey removes the credential. Clearing an unset key is a no-op.
func (s *Service) ClearAPIKey(ctx context.Context, userID string) error {
	if err := s.store.DeleteSetting(ctx, userID, APIKeyName); err != nil {
		return fmt.Errorf("clear api key: %w", err)
	}
	return nil
}
