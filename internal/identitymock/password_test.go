package identitymock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := newPasswordHasher(bcrypt.MinCost)

	hashed, err := h.hash("correct horse")
	require.NoError(t, err)

	assert.NoError(t, h.verify(hashed, "correct horse"))
	assert.ErrorIs(t, h.verify(hashed, "battery staple"), ErrInvalidCredentials)
	assert.ErrorIs(t, h.verify("", "correct horse"), ErrInvalidCredentials)

	_, err = h.hash("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, newPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, newPasswordHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, newPasswordHasher(bcrypt.MinCost).cost)
}
