// Package envelope applies the field codec to the declared sensitive fields
// of a record kind. Record types opt in by implementing SensitiveCarrier;
// nothing here knows one record kind from another.
package envelope

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"verikeep/internal/crypto/fieldcodec"
)

// SensitiveCarrier declares a record's ciphered attributes by name. The
// pointers let EncryptFields write ciphertext in place on the persist path.
type SensitiveCarrier interface {
	SensitiveFields() map[string]*string
}

// Envelope encrypts declared fields on write and projects plaintext on read.
type Envelope struct {
	codec  *fieldcodec.Codec
	logger *slog.Logger
}

type Option func(*Envelope)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Envelope) {
		e.logger = logger
	}
}

func New(codec *fieldcodec.Codec, opts ...Option) (*Envelope, error) {
	if codec == nil {
		return nil, fmt.Errorf("field codec is required")
	}
	e := &Envelope{codec: codec}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EncryptFields ciphers every declared field in place before persistence.
// Fields that already look encrypted are left untouched, so re-saving a
// loaded record never double-encrypts.
func (e *Envelope) EncryptFields(carrier SensitiveCarrier) error {
	for name, field := range carrier.SensitiveFields() {
		if field == nil || *field == "" {
			continue
		}
		if fieldcodec.LooksEncrypted(*field) {
			continue
		}
		encoded, err := e.codec.Encode(*field)
		if err != nil {
			return fmt.Errorf("encrypt field %s: %w", name, err)
		}
		*field = encoded
	}
	return nil
}

// DecryptData produces a plaintext projection of the declared fields. The
// stored ciphertext is never mutated. Each field decodes independently: a
// field that cannot be recovered appears as the codec sentinel and is logged,
// but never fails the projection.
func (e *Envelope) DecryptData(carrier SensitiveCarrier) map[string]string {
	fields := carrier.SensitiveFields()
	out := make(map[string]string, len(fields))
	for name, field := range fields {
		if field == nil {
			continue
		}
		plain := e.codec.Decode(*field)
		if plain == fieldcodec.Sentinel && e.logger != nil {
			e.logger.Warn("sensitive field is unreadable", "field", name)
		}
		out[name] = plain
	}
	return out
}

// DecryptField decodes one stored value without touching the carrier.
func (e *Envelope) DecryptField(value string) string {
	return e.codec.Decode(value)
}

// DecryptBatch fans the pure, CPU-bound read-path decryption out over the
// available cores and returns projections in input order. This is the one
// parallel path: unlike the sweep, decryption has no external side effects.
func (e *Envelope) DecryptBatch(ctx context.Context, carriers []SensitiveCarrier) ([]map[string]string, error) {
	out := make([]map[string]string, len(carriers))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, carrier := range carriers {
		g.Go(func() error {
			out[i] = e.DecryptData(carrier)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
