package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested ticket, match, or notification record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrNotActive indicates a status-guarded write found the ticket already closed.
	ErrNotActive = errors.New("ticket not active")
)

// TicketStatus identifies one ticket lifecycle state as persisted.
type TicketStatus string

const (
	// TicketStatusActive means the ticket is waiting in the pool.
	TicketStatusActive TicketStatus = "active"
	// TicketStatusMatched means the ticket was consumed by a match.
	TicketStatusMatched TicketStatus = "matched"
	// TicketStatusCancelled means the owner withdrew the ticket.
	TicketStatusCancelled TicketStatus = "cancelled"
	// TicketStatusExpired means the ticket's wait deadline passed unmatched.
	TicketStatusExpired TicketStatus = "expired"
)

// TicketRecord stores one matchmaking ticket row.
type TicketRecord struct {
	ID             string
	UserID         string
	SnapshotJSON   string
	Game           string
	Region         string
	GameMode       string
	Skill          int
	RolesAny       bool
	RolesJSON      string
	LanguageAny    bool
	LanguageTag    string
	MicRequired    bool
	MaxWaitSeconds int
	Status         TicketStatus
	MatchID        string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	ClosedAt       *time.Time
}

// MatchRecord stores one committed pairing row.
type MatchRecord struct {
	ID                string
	Ticket1ID         string
	Ticket2ID         string
	User1ID           string
	User2ID           string
	User1SnapshotJSON string
	User2SnapshotJSON string
	Game              string
	Region            string
	GameMode          string
	Skill1            int
	Skill2            int
	LanguageAny       bool
	LanguageTag       string
	Status            string
	Result            string
	CreatedAt         time.Time
}

// NotificationRecord stores one user notification inbox item.
type NotificationRecord struct {
	ID              string
	RecipientUserID string
	MessageType     string
	PayloadJSON     string
	DedupeKey       string
	CreatedAt       time.Time
	ReadAt          *time.Time
}

// NotificationPage stores a paged inbox listing result.
type NotificationPage struct {
	Notifications []NotificationRecord
	NextPageToken string
}

// TicketStore persists ticket lifecycle state. CloseTicket and the match
// commit path guard on status: closing a ticket that already reached a
// terminal status must fail with ErrNotActive.
type TicketStore interface {
	PutTicket(ctx context.Context, record TicketRecord) error
	GetTicket(ctx context.Context, ticketID string) (TicketRecord, error)
	GetActiveTicketByUser(ctx context.Context, userID string) (TicketRecord, error)
	ListActiveTickets(ctx context.Context, now time.Time, limit int) ([]TicketRecord, error)
	ListActiveTicketsByBucket(ctx context.Context, game, region, gameMode string, now time.Time, limit int) ([]TicketRecord, error)
	ListExpiredActiveTickets(ctx context.Context, now time.Time, limit int) ([]TicketRecord, error)
	CloseTicket(ctx context.Context, ticketID string, status TicketStatus, closedAt time.Time) error
}

// MatchStore persists match records. CreateMatch atomically verifies both
// referenced tickets are still active, closes them as matched, and inserts
// the match row, failing with ErrNotActive when either ticket lost the race.
type MatchStore interface {
	CreateMatch(ctx context.Context, record MatchRecord) error
	GetMatch(ctx context.Context, matchID string) (MatchRecord, error)
}

// NotificationStore persists notification inbox state.
type NotificationStore interface {
	PutNotification(ctx context.Context, record NotificationRecord) error
	GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (NotificationRecord, error)
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (NotificationPage, error)
	CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (NotificationRecord, error)
}
