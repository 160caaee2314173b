package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrWeakPassword          = errors.New("Password should be at least 6 characters")
	ErrEmailTaken            = errors.New("The email address is already in use by another account")
	ErrNotAuthenticated      = errors.New("Not authenticated")
)
