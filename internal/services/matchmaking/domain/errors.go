package domain

import "errors"

var (
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("matchmaking store is not configured")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("matchmaking id generator is not configured")
	// ErrIDGeneratorExhausted indicates a fixed test ID sequence was exhausted.
	ErrIDGeneratorExhausted = errors.New("matchmaking id generator exhausted")
	// ErrCallerRequired indicates caller identity is required.
	ErrCallerRequired = errors.New("caller user id is required")

	// ErrTicketNotFound indicates a ticket record was not found.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketNotOwner indicates the ticket belongs to another user.
	ErrTicketNotOwner = errors.New("ticket belongs to another user")
	// ErrTicketNotActive indicates the ticket already reached a terminal status.
	ErrTicketNotActive = errors.New("ticket is not active")
	// ErrActiveTicketExists indicates the user already has an open ticket.
	ErrActiveTicketExists = errors.New("user already has an active ticket")

	// ErrMatchNotFound indicates a match record was not found.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchNotParticipant indicates the caller is not part of the match.
	ErrMatchNotParticipant = errors.New("match belongs to other users")

	// ErrProfileUnavailable indicates the profile lookup failed at creation time.
	ErrProfileUnavailable = errors.New("profile lookup failed")
)

// Criteria validation errors, surfaced together as invalid-criteria failures.
var (
	ErrGameRequired      = errors.New("game is required")
	ErrRegionRequired    = errors.New("region is required")
	ErrGameModeRequired  = errors.New("game mode is required")
	ErrSkillLevelInvalid = errors.New("skill level is not on the ranking scale")
	ErrLanguageRequired  = errors.New("language is required")
	ErrRoleInvalid       = errors.New("role tags must be non-empty")
	ErrMaxWaitInvalid    = errors.New("max wait time is out of range")
)

// criteriaErrors lists every validation failure callers should treat as
// invalid criteria rather than an internal fault.
var criteriaErrors = []error{
	ErrGameRequired,
	ErrRegionRequired,
	ErrGameModeRequired,
	ErrSkillLevelInvalid,
	ErrLanguageRequired,
	ErrRoleInvalid,
	ErrMaxWaitInvalid,
}

// IsInvalidCriteria reports whether err is a ticket criteria validation failure.
func IsInvalidCriteria(err error) bool {
	for _, criteriaErr := range criteriaErrors {
		if errors.Is(err, criteriaErr) {
			return true
		}
	}
	return false
}
