package domain

import "errors"

// ErrValidation marks malformed or missing input. Wrap it with the detail:
//
//	fmt.Errorf("%w: title is required", domain.ErrValidation)
var ErrValidation = errors.New("validation failed")

var ErrMissingToken = errors.New("missing token")
var ErrInvalidToken = errors.New("invalid token")
var ErrExpiredToken = errors.New("token expired")
