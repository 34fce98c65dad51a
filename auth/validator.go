package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CredentialsRequest is the payload shared by register and login.
// Only presence is enforced: the store has no rule beyond username
// uniqueness, so password complexity is intentionally not checked here.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func ValidateCredentials(req CredentialsRequest) error {
	return validate.Struct(req)
}
