package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWalksChain(t *testing.T) {
	err := fmt.Errorf("create order: %w", Conflict(ErrInsufficientStock))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsConflict(err))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "create order: insufficient stock", err.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestTransientMessage(t *testing.T) {
	err := Transient("database unavailable", errors.New("dial tcp: refused"))

	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, "database unavailable: dial tcp: refused", err.Error())
	assert.Equal(t, "transient", KindOf(err).String())
}

func TestConstructors(t *testing.T) {
	assert.True(t, IsValidation(Validationf("items must not be empty")))
	assert.True(t, IsNotFound(NotFoundf("order %d not found", 7)))
	assert.Equal(t, "order 7 not found", NotFoundf("order %d not found", 7).Error())
}

func TestWrapfKeepsSentinel(t *testing.T) {
	err := Wrapf(KindConflict, ErrInsufficientStock, "product %d", 3)

	assert.True(t, IsConflict(err))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "product 3: insufficient stock", err.Error())
}

func TestUnauthorized(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthorized("invalid credentials"))

	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "unauthorized", KindOf(err).String())
	assert.False(t, IsUnauthorized(NotFoundf("staff user not found")))
}
