package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"order not found", ErrOrderNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("get order 3: %w", ErrOrderNotFound), KindNotFound},
		{"no rows", sql.ErrNoRows, KindNotFound},
		{"invalid status", fmt.Errorf("status \"weird\": %w", ErrInvalidStatus), KindValidation},
		{"missing field", ErrMissingField, KindValidation},
		{"duplicate link", ErrDuplicateLink, KindConflict},
		{"pq unique violation", &pq.Error{Code: "23505"}, KindConflict},
		{"pq not null violation", &pq.Error{Code: "23502"}, KindValidation},
		{"pq connection failure", &pq.Error{Code: "08006"}, KindStoreFailure},
		{"plain error", errors.New("boom"), KindStoreFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrWarehouseNotFound))
	assert.False(t, IsNotFound(ErrInvalidStatus))
	assert.False(t, IsNotFound(nil))
}
