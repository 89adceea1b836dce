// Package errors provides structured error handling for the matchmaking services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authentication errors
	CodeNotAuthenticated    Code = "NOT_AUTHENTICATED"
	CodeSessionGrantInvalid Code = "SESSION_GRANT_INVALID"
	CodeSessionGrantExpired Code = "SESSION_GRANT_EXPIRED"

	// Ticket errors
	CodeInvalidCriteria     Code = "INVALID_CRITERIA"
	CodeAlreadyActiveTicket Code = "ALREADY_ACTIVE_TICKET"
	CodeTicketNotFound      Code = "TICKET_NOT_FOUND"
	CodeTicketNotOwner      Code = "TICKET_NOT_OWNER"
	CodeTicketNotActive     Code = "TICKET_NOT_ACTIVE"

	// Match errors
	CodeMatchNotFound       Code = "MATCH_NOT_FOUND"
	CodeMatchNotParticipant Code = "MATCH_NOT_PARTICIPANT"

	// Notification errors
	CodeNotificationNotFound Code = "NOTIFICATION_NOT_FOUND"

	// Dependency errors
	CodeProfileLookupFailed Code = "PROFILE_LOOKUP_FAILED"
	CodeStorageFailure      Code = "STORAGE_FAILURE"
)

// HTTPStatus maps an error code to the HTTP status used by the public API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotAuthenticated, CodeSessionGrantInvalid, CodeSessionGrantExpired:
		return http.StatusUnauthorized
	case CodeInvalidCriteria:
		return http.StatusBadRequest
	case CodeAlreadyActiveTicket, CodeTicketNotActive:
		return http.StatusConflict
	case CodeTicketNotFound, CodeMatchNotFound, CodeNotificationNotFound:
		return http.StatusNotFound
	case CodeTicketNotOwner, CodeMatchNotParticipant:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
