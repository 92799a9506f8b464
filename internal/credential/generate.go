package credential

import (
	"context"

	"github.com/google/uuid"
)

// Generator mints fresh credential pairs. It is a constructor-supplied
// capability so deployments that must mint credentials on the gateway
// platform itself can plug that in without touching the lifecycle logic.
type Generator interface {
	Generate(ctx context.Context, app string) (Pair, error)
}

// UUIDGenerator produces locally-generated random pairs. This is the shipped
// generator.
type UUIDGenerator struct{}

// NewUUIDGenerator creates the local random generator.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// Generate returns a fresh key/secret pair.
func (UUIDGenerator) Generate(ctx context.Context, app string) (Pair, error) {
	return Pair{
		Key:    "key-" + uuid.NewString(),
		Secret: "secret-" + uuid.NewString(),
	}, nil
}
