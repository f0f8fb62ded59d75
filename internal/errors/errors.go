// Package errors defines domain-level errors used throughout the application.
// These errors represent business logic failures and are mapped to appropriate
// HTTP status codes at the API boundary (internal/daemon mapError). Unmapped
// errors default to HTTP 500 Internal Server Error.
package errors

import (
	"errors"
)

var (
	// ErrServerNotFound indicates that the requested server id is not registered.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrServerAlreadyExists indicates that a registration was attempted for an
	// id that is already present in the registry.
	// Recommended to map to HTTP 409 Conflict.
	ErrServerAlreadyExists = errors.New("server already registered")

	// ErrImmutableServerID indicates that an update tried to change a server's id.
	// The id is fixed at registration time.
	// Recommended to map to HTTP 400 Bad Request.
	ErrImmutableServerID = errors.New("server id is immutable")

	// ErrServerValidationFailed indicates that a descriptor failed validation.
	// The accompanying ValidationResult carries the per-field details.
	// Recommended to map to HTTP 400 Bad Request.
	ErrServerValidationFailed = errors.New("server validation failed")

	// ErrHealthNotTracked indicates that no health entry exists for the server.
	// Given the registry keeps its map and the monitor's in lockstep this should
	// not occur for registered servers.
	// Recommended to map to HTTP 404 Not Found.
	ErrHealthNotTracked = errors.New("server health is not being tracked")

	// ErrServerNotConnected indicates that a tool operation was attempted against
	// a known server whose client connection is not currently established.
	// Recommended to map to HTTP 409 Conflict.
	ErrServerNotConnected = errors.New("server not connected")

	// ErrConnectionClosed indicates that a pending request was abandoned because
	// its connection was torn down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRequestTimeout indicates that an individual JSON-RPC request did not
	// complete within its deadline. The connection itself stays open.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrConnectTimeout indicates that establishing a connection did not complete
	// within the connect deadline.
	ErrConnectTimeout = errors.New("connect timed out")

	// ErrNotConnected indicates that a request was issued on a client that has no
	// established connection.
	ErrNotConnected = errors.New("not connected")

	// ErrToolCallFailed indicates that executing a tool on a connected server
	// failed. This represents a communication or execution error with the
	// external server.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrToolListFailed indicates that listing tools from a server failed.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrToolListFailed = errors.New("tool list failed")
)
