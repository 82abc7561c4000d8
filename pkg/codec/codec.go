// Package codec converts identifiers, timestamps, and embedding vectors
// between their wire, storage, and in-memory forms.
//
// Identifiers are 128-bit values: raw 16-byte slices on the wire, canonical
// 8-4-4-4-12 lowercase hex everywhere humans see them. Timestamps cross the
// wire as UTC milliseconds since the Unix epoch. Vectors travel to Postgres
// as pgvector text literals.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDBytes returns the raw 16-byte form of an identifier.
func IDBytes(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// IDFromBytes parses a raw 16-byte identifier.
func IDFromBytes(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.Nil, fmt.Errorf("id must be exactly 16 bytes, got %d", len(b))
	}
	return uuid.FromBytes(b)
}

// HexID renders an identifier in canonical 8-4-4-4-12 lowercase hex.
func HexID(id uuid.UUID) string {
	return id.String()
}

// IDFromHex parses a canonical hex identifier. Only the 36-character
// hyphenated form is accepted; bracing and bare-hex variants are rejected.
func IDFromHex(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("id must be 36-character canonical hex, got %d characters", len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// Millis returns the UTC millisecond representation of t.
func Millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// TimeFromMillis converts UTC epoch milliseconds back to a time.Time.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// VectorLiteral renders an embedding as a pgvector text literal, e.g.
// "[0.12,-0.5,1]". The result binds as $n::vector in SQL.
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v)*10 + 2)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseVectorLiteral parses a pgvector text literal back into a slice.
func ParseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("vector literal must be bracketed, got %q", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
