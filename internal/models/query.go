package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a query has no text.
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	DefaultK = 8
	MaxK     = 100
)

// QueryRequest is a retrieval request for the k most relevant chunks.
type QueryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate trims the query, rejects empty text and clamps K to [1, MaxK],
// defaulting to DefaultK.
func (q *QueryRequest) Validate() error {
	return q.ValidateWith(DefaultK, MaxK)
}

// ValidateWith is Validate with caller-supplied limits.
func (q *QueryRequest) ValidateWith(defaultK, maxK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if q.K > maxK {
		q.K = maxK
	}
	return nil
}
