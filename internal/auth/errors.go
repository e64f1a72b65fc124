package auth

import "errors"

var (
	ErrValidation = errors.New("invalid request")

	ErrEmailTaken = errors.New("email is already registered")
	ErrSlugTaken  = errors.New("slug is already taken")

	ErrInvalidOrExpiredToken = errors.New("registration token is invalid or expired")
	ErrInvalidOTP            = errors.New("verification code is incorrect")
	ErrDispatchFailed        = errors.New("could not send verification code")
	// ErrRegistrationConflict means the account could not be committed. The
	// staged registration is kept so the confirm can be retried.
	ErrRegistrationConflict = errors.New("registration could not be completed")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotActive   = errors.New("account is not active")

	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrSessionExpiredOrInvalid = errors.New("session expired or invalid")
)
