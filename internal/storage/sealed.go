package storage

import (
	"context"
	"fmt"

	"github.com/example/tablebook/internal/crypto"
)

// Sealed encrypts values before they reach inner. The key name is bound as
// additional data so a value cannot be moved to another slot.
type Sealed struct {
	inner Store
	aead  *crypto.AEAD
}

func NewSealed(inner Store, aead *crypto.AEAD) *Sealed {
	return &Sealed{inner: inner, aead: aead}
}

func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	ct, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	v, err := s.aead.DecryptString(ct, key)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", key, err)
	}
	return v, nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	ct, err := s.aead.EncryptToString(value, key)
	if err != nil {
		return fmt.Errorf("storage: seal %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, ct)
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
