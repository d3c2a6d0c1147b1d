package integration

import "errors"

var (
	// Transport errors
	ErrUpstreamUnavailable = errors.New("integration: upstream temporarily unavailable")
	ErrRequestFailed       = errors.New("integration: upstream request failed")
	ErrInvalidResponse     = errors.New("integration: invalid upstream response")
	ErrRateLimited         = errors.New("integration: upstream rate limited")
	ErrRetryExhausted      = errors.New("integration: retry attempts exhausted")

	// Session errors (PowerBody SOAP)
	ErrAuthFailed     = errors.New("integration: upstream authentication failed")
	ErrSessionExpired = errors.New("integration: upstream session expired")

	// Mapping errors
	ErrMappingNotFound        = errors.New("integration: mapping not found")
	ErrMappingInvalidKind     = errors.New("integration: invalid mapping kind")
	ErrMappingInvalidLocalID  = errors.New("integration: invalid local ID")
	ErrMappingInvalidRemoteID = errors.New("integration: invalid remote ID")

	// Cache errors
	ErrCacheMiss = errors.New("integration: cache miss")

	// Dead-letter errors
	ErrDeadLetterNotFound = errors.New("integration: dead-letter record not found")
	ErrDeadLetterClaimed  = errors.New("integration: dead-letter record already claimed")

	// Order sync errors
	ErrOrderInvalid   = errors.New("integration: invalid order for sync")
	ErrOrderNotFound  = errors.New("integration: order not found on platform")
	ErrOrderRejected  = errors.New("integration: order rejected by platform")
	ErrRefundNotFound = errors.New("integration: refund not found on platform")

	// Product sync errors
	ErrProductInvalid  = errors.New("integration: invalid product for sync")
	ErrProductNotFound = errors.New("integration: product not found on platform")
)
