package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: Validation("bad date"), want: http.StatusBadRequest},
		{name: "not found", err: NotFound("Not found"), want: http.StatusNotFound},
		{name: "persistence", err: Persistence(errors.New("disk I/O error")), want: http.StatusInternalServerError},
		{name: "upstream", err: Upstream(errors.New("EOF")), want: http.StatusInternalServerError},
		{name: "wrapped not found", err: fmt.Errorf("lookup: %w", NotFound("gone")), want: http.StatusNotFound},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed")
	err := Persistence(cause)

	assert.Equal(t, "UNIQUE constraint failed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindPersistence))
	assert.False(t, IsKind(err, KindUpstream))
}
