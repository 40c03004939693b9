package domain

import "errors"

var (
	// ErrStateAlreadyConsumed is returned when an authorization state is consumed twice
	ErrStateAlreadyConsumed = errors.New("authorization state has already been consumed")

	// ErrStateNotPrepared is returned when protecting a state that is past the prepared step
	ErrStateNotPrepared = errors.New("authorization state is not prepared")

	// ErrStateNotRecovered is returned when consuming a state that was never recovered and validated
	ErrStateNotRecovered = errors.New("authorization state has not been recovered")

	// ErrInvalidKeyConfig is returned when the signing key cannot be assembled from configuration
	ErrInvalidKeyConfig = errors.New("invalid signing key configuration")

	// ErrTokenGeneration is returned when a token cannot be signed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrIdentityNotFound is returned by repositories when no identity matches
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrInvalidToken is returned when a token cannot be verified
	ErrInvalidToken = errors.New("invalid token")
)
