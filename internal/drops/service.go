// Package drops holds the server-side lifecycle of an encrypted drop:
// creation with a bounded TTL, destructive-on-attempt retrieval,
// failed-decryption accounting and explicit destruction. It never sees
// plaintext or key material.
package drops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ghost.drop/config"
	"ghost.drop/internal/crypto"
	"ghost.drop/internal/models"
	"ghost.drop/internal/store"
)

// ErrTooLarge rejects payloads over the configured cap before they
// reach the store.
var ErrTooLarge = errors.New("payload too large")

// ValidationError describes malformed or out-of-range input. Its
// message is safe to return to clients verbatim.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// createAttempts bounds ID regeneration when Create hits an identifier
// collision. With ~190 bits of entropy a second collision in a row
// means something is wrong with the random source, not bad luck.
const createAttempts = 3

type Service struct {
	store store.Store
	cfg   config.DropsConfig
	log   *slog.Logger
}

func NewService(st store.Store, cfg config.DropsConfig, log *slog.Logger) *Service {
	return &Service{store: st, cfg: cfg, log: log}
}

type CreateInput struct {
	EncryptedData string
	IV            string
	Salt          string
	Version       string
	BurnTimer     int // seconds; 0 means unset
}

type CreateResult struct {
	ID        string
	ExpiresIn time.Duration
	MaxViews  int
}

// Create validates the upload, picks a fresh identifier and stores the
// drop with a TTL of min(max TTL, burn timer). Every drop allows
// exactly one successful view.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.EncryptedData == "" {
		return nil, validationf("encryptedData is required")
	}
	if in.IV == "" {
		return nil, validationf("iv is required")
	}
	if in.Salt == "" {
		return nil, validationf("salt is required")
	}
	if in.Version == "" {
		return nil, validationf("version is required")
	}
	if in.BurnTimer < 0 || in.BurnTimer > s.cfg.BurnTimerMax {
		return nil, validationf("burnTimer must be between 0 and %d seconds", s.cfg.BurnTimerMax)
	}
	if len(in.EncryptedData)+len(in.IV)+len(in.Salt) > s.cfg.MaxPayloadBytes {
		return nil, ErrTooLarge
	}

	ttl := s.cfg.MaxTTL
	if in.BurnTimer > 0 {
		if bt := time.Duration(in.BurnTimer) * time.Second; bt < ttl {
			ttl = bt
		}
	}

	drop := &models.Drop{
		Schema:         models.SchemaVersion,
		EncryptedData:  in.EncryptedData,
		IV:             in.IV,
		Salt:           in.Salt,
		Version:        in.Version,
		CreatedAt:      time.Now().Unix(),
		RemainingViews: 1,
		FailedAttempts: 0,
		BurnTimer:      in.BurnTimer,
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		id := crypto.GenerateID()
		err := s.store.Create(ctx, id, drop, ttl)
		if errors.Is(err, store.ErrExists) {
			s.log.Warn("drop id collision, regenerating", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storing drop: %w", err)
		}

		s.log.Info("drop created", "id", id, "ttl", ttl, "burn_timer", in.BurnTimer)
		return &CreateResult{ID: id, ExpiresIn: ttl, MaxViews: 1}, nil
	}

	return nil, errors.New("could not allocate a unique drop id")
}

// Retrieve runs the destructive retrieval transition. The mutation
// stands even if the caller disconnects before reading the response:
// retrieval is destructive on attempt, not on confirmed delivery.
// Exactly one store mutation is attempted; a transient store failure is
// surfaced as-is rather than retried, so no retry can ever grant an
// extra view.
func (s *Service) Retrieve(ctx context.Context, id string) (*models.Drop, error) {
	drop, err := s.store.Consume(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrDestroyed) {
			s.log.Info("drop destroyed by failed-attempt policy on retrieval", "id", id)
		}
		return nil, err
	}

	if drop.RemainingViews <= 0 {
		s.log.Info("drop deleted after final view", "id", id)
	}
	return drop, nil
}

type ReportResult struct {
	Deleted     bool
	Attempts    int
	MaxAttempts int
}

// ReportFailure records one failed client-side decryption. Reaching
// the threshold destroys the drop regardless of remaining views. A
// report against a missing drop succeeds as a no-op.
func (s *Service) ReportFailure(ctx context.Context, id string) (*ReportResult, error) {
	attempts, destroyed, err := s.store.RecordFailure(ctx, id)
	if err != nil {
		return nil, err
	}

	if destroyed && attempts > 0 {
		s.log.Warn("drop destroyed after repeated failed decryption attempts",
			"id", id, "attempts", attempts)
	} else if !destroyed {
		s.log.Info("failed decryption reported",
			"id", id, "attempts", attempts, "max_attempts", s.cfg.MaxFailedAttempts)
	}

	return &ReportResult{
		Deleted:     destroyed,
		Attempts:    attempts,
		MaxAttempts: s.cfg.MaxFailedAttempts,
	}, nil
}

// Destroy deletes unconditionally. It succeeds whether or not the drop
// existed, so callers cannot probe for drop presence.
func (s *Service) Destroy(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("destroying drop: %w", err)
	}
	s.log.Info("drop destroyed on request", "id", id)
	return nil
}
