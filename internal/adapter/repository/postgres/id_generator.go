package postgres

import "github.com/oklog/ulid/v2"

// ULIDGenerator implements usecase.IDGenerator with lexicographically
// sortable identifiers. Entry order ties are broken by ID, so IDs must
// sort in creation order.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULID generator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
