package domain

import "errors"

var (
	// ErrIngredientNotFound is returned when a lookup yields no ingredient record
	ErrIngredientNotFound = errors.New("ingredient not found")

	// ErrLookupFailure is returned when the remote ingredient lookup request fails
	ErrLookupFailure = errors.New("ingredient lookup request failed")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidSkinType is returned when a skin-type code cannot be parsed
	ErrInvalidSkinType = errors.New("invalid skin type code")

	// ErrInvalidRegistry is returned when the ingredient registry seed is malformed
	ErrInvalidRegistry = errors.New("invalid ingredient registry")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
