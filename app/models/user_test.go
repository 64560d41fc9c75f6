package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateUserDefaultsToBuyer(t *testing.T) {
	u, err := CreateUser("Maria Garcia", "maria@example.com", "secret123", "admin")
	assert.NoError(t, err)
	assert.Equal(t, ROLE_BUYER, u.Role, "admin must not be self-assignable")
	assert.Equal(t, STATUS_ACTIVE, u.Status)
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestCreateUserSellerRole(t *testing.T) {
	u, err := CreateUser("James Wilson", "james@example.com", "secret123", ROLE_SELLER)
	assert.NoError(t, err)
	assert.Equal(t, ROLE_SELLER, u.Role)
	assert.True(t, u.IsSeller())
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("ab", "not-an-email", "secret123", ROLE_BUYER)
	assert.Error(t, err)
}

func TestReviewValidateRatingBounds(t *testing.T) {
	r := &Review{AutomationID: 1, UserID: 1, Rating: 6}
	assert.Error(t, r.Validate())

	r.Rating = 5
	assert.NoError(t, r.Validate())

	r.Rating = 0
	assert.Error(t, r.Validate())
}
