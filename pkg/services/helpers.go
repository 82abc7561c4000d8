package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/pagination"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func parseID(b []byte, field string) (uuid.UUID, error) {
	id, err := codec.IDFromBytes(b)
	if err != nil {
		return uuid.Nil, invalidArgf("invalid %s: %v", field, err)
	}
	return id, nil
}

// optionalID parses an id field that may be absent.
func optionalID(b []byte, field string) (*uuid.UUID, error) {
	if len(b) == 0 {
		return nil, nil
	}
	id, err := parseID(b, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

// pageOf converts a token into the repository paging parameters.
func pageOf(tok pagination.Token) repository.Page {
	return repository.Page{
		Offset: tok.Start,
		Limit:  clampPageSize(tok.PageSize),
		SortBy: tok.SortBy,
		Order:  models.SortOrderFromString(tok.SortOrder),
	}
}

// nextToken advances the token past the returned page and encodes it, or
// returns "" when the listing is exhausted. Callers query limit+1 rows and
// pass hasMore accordingly.
func nextToken(tok pagination.Token, returned int, hasMore bool) (string, error) {
	if !hasMore {
		return "", nil
	}
	tok.Start += returned
	return pagination.Encode(tok)
}

// trimPage cuts the probe row used for more-pages detection.
func trimPage[T any](items []*T, limit int) ([]*T, bool) {
	if len(items) > limit {
		return items[:limit], true
	}
	return items, false
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
