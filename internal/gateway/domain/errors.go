package domain

import "errors"

var (
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrDeclined           = errors.New("payment_declined")
	ErrUnknownCorrelation = errors.New("unknown_correlation")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrEventIgnored       = errors.New("event_ignored")
	ErrGatewayNotFound    = errors.New("gateway_not_found")
	ErrInvalidConfig      = errors.New("invalid_gateway_config")
)
