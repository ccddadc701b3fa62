package authkit

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SignupInput is the payload for Coordinator.Signup.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignupInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// SigninInput is the payload for Coordinator.Signin.
type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SigninInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ForgotPasswordInput is the payload for Coordinator.ForgotPassword.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

func (r ForgotPasswordInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordInput is the payload for Coordinator.ResetPassword; the raw
// code arrives separately as a URL path segment.
type ResetPasswordInput struct {
	Password string `json:"password"`
}

func (r ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// ChangePasswordInput is the payload for Coordinator.ChangePassword.
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

// ExternalIdentity is the typed payload an external OAuth collaborator hands
// to FederatedLogin once its handshake completed.
type ExternalIdentity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

func (r ExternalIdentity) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}
