/*
Package errs provides custom error types and application-level error code constants.

These error codes identify chat and reporting failures both inside the server and
in what is told to clients (chat system lines and admin API responses).
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON for the endpoint.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrNotFound indicates that the requested admin resource does not exist.
	ErrNotFound = 1008
)

// 2xxx: Room Membership Errors
const (
	// ErrDuplicateName indicates that the requested nickname is already joined.
	ErrDuplicateName = 2101

	// ErrInvalidName indicates that the requested nickname is empty, too long or reserved.
	ErrInvalidName = 2102
)

// 3xxx: Connection Lifecycle Errors
const (
	// ErrServerShuttingDown indicates that the acceptor no longer takes new sessions.
	ErrServerShuttingDown = 3001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
