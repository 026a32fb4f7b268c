// Package access manages single-use invite codes gating drop creation.
// Codes live in their own namespace and never touch the drop store or
// the crypto path.
package access

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

var prefixes = []string{
	"GHOST", "PHANTOM", "SHADOW", "CIPHER", "WRAITH", "SPECTER",
	"ENIGMA", "VORTEX", "NEXUS", "MATRIX", "QUANTUM",
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Code is a single-use invite code and its lifecycle metadata.
type Code struct {
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiredAt time.Time `json:"expiredAt,omitempty"`
}

type Stats struct {
	TotalGenerated int64 `json:"totalGenerated"`
	TotalUsed      int64 `json:"totalUsed"`
}

// Store persists invite codes. Validate must atomically check and mark
// a code used, so two concurrent submissions of the same code cannot
// both pass the gate.
type Store interface {
	Save(ctx context.Context, code *Code) error
	Validate(ctx context.Context, code string) (bool, error)
	Expire(ctx context.Context, code string) error
	Active(ctx context.Context) ([]string, error)
	Expired(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(st Store, log *slog.Logger) *Service {
	return &Service{store: st, log: log}
}

// Generate mints a new active code, e.g. "PHANTOM7KQZ". The pattern is
// memorable rather than high-entropy; the gate is incidental access
// control, not a security boundary.
func (s *Service) Generate(ctx context.Context) (string, error) {
	prefix := prefixes[randIndex(len(prefixes))]
	digit := 1 + randIndex(9)

	suffix := make([]byte, 3)
	for i := range suffix {
		suffix[i] = codeCharset[randIndex(len(codeCharset))]
	}

	code := fmt.Sprintf("%s%d%s", prefix, digit, suffix)

	if err := s.store.Save(ctx, &Code{
		Code:      code,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}); err != nil {
		return "", fmt.Errorf("saving access code: %w", err)
	}

	s.log.Info("access code generated", "code", code)
	return code, nil
}

// Validate checks a submitted code and marks it used. A used code stays
// active until the drop is created; Expire retires it for good.
func (s *Service) Validate(ctx context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false, nil
	}

	ok, err := s.store.Validate(ctx, code)
	if err != nil {
		return false, fmt.Errorf("validating access code: %w", err)
	}
	if ok {
		s.log.Info("access code validated", "code", code)
	}
	return ok, nil
}

// Expire retires a code after the drop it unlocked has been created.
func (s *Service) Expire(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return errors.New("code is required")
	}

	if err := s.store.Expire(ctx, code); err != nil {
		return fmt.Errorf("expiring access code: %w", err)
	}
	s.log.Info("access code expired", "code", code)
	return nil
}

type Overview struct {
	Active  []string `json:"active"`
	Expired []string `json:"expired"`
	Stats   Stats    `json:"stats"`
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	active, err := s.store.Active(ctx)
	if err != nil {
		return nil, err
	}
	expired, err := s.store.Expired(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{Active: active, Expired: expired, Stats: stats}, nil
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}
