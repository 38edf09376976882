package controllers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationMessage(t *testing.T) {
	err := validate.Struct(GameListQuery{Page: -1, PerPage: 500})
	msg := validationMessage(err)
	assert.Contains(t, msg, "Page must satisfy min=1")
	assert.Contains(t, msg, "PerPage must satisfy max=100")

	assert.Equal(t, "boom", validationMessage(errors.New("boom")))
}
