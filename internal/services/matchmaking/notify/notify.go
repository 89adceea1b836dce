// Package notify delivers and stores in-app matchmaking notifications.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/squadforge/squadforge/internal/platform/id"
	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
)

// MessageTypeMatchFound identifies the pairing announcement message.
const MessageTypeMatchFound = "match.found"

// DefaultPageSize applies when an inbox listing does not set a page size.
const DefaultPageSize = 20

// MaxPageSize caps how many inbox items one listing returns.
const MaxPageSize = 100

var (
	// ErrNotFound indicates a requested notification is missing.
	ErrNotFound = errors.New("notification not found")
	// ErrDuplicate indicates a notification with the same dedupe key exists.
	ErrDuplicate = errors.New("notification already delivered")
	// ErrRecipientRequired indicates a missing recipient user id.
	ErrRecipientRequired = errors.New("recipient user id is required")
)

// Notification is one inbox item owned by a recipient.
type Notification struct {
	ID              string
	RecipientUserID string
	MessageType     string
	Payload         json.RawMessage
	DedupeKey       string
	CreatedAt       time.Time
	ReadAt          *time.Time
}

// Page is one inbox listing slice with a cursor to the next slice.
type Page struct {
	Notifications []Notification
	NextPageToken string
}

// MatchFoundPayload is the JSON body of a match.found notification.
type MatchFoundPayload struct {
	MatchID         string `json:"matchId"`
	PartnerUserID   string `json:"partnerUserId"`
	PartnerUsername string `json:"partnerUsername"`
	Game            string `json:"game"`
	Region          string `json:"region"`
	GameMode        string `json:"gameMode"`
}

// Store persists notification inbox state. PutNotification must report
// ErrDuplicate when the recipient already holds the same dedupe key.
type Store interface {
	PutNotification(ctx context.Context, notification Notification) error
	ListByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (Page, error)
	CountUnread(ctx context.Context, recipientUserID string) (int, error)
	MarkRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error)
}

// Service enqueues and serves in-app notifications.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
	logf  func(format string, args ...any)
}

// Options tunes optional service behavior; zero values select defaults.
type Options struct {
	Clock func() time.Time
	NewID func() (string, error)
	Logf  func(format string, args ...any)
}

// NewService constructs a notification service over the provided store.
func NewService(store Store, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = id.NewID
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Service{store: store, clock: clock, newID: newID, logf: logf}
}

// MatchFound enqueues one pairing announcement for a participant. Redelivery
// of the same match to the same recipient is deduplicated and not an error.
func (s *Service) MatchFound(ctx context.Context, recipientUserID string, match domain.Match) error {
	if s == nil || s.store == nil {
		return domain.ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return ErrRecipientRequired
	}

	partnerID := match.User2ID
	partnerUsername := match.User2Snapshot.Username
	if recipientUserID == match.User2ID {
		partnerID = match.User1ID
		partnerUsername = match.User1Snapshot.Username
	}
	payload, err := json.Marshal(MatchFoundPayload{
		MatchID:         match.ID,
		PartnerUserID:   partnerID,
		PartnerUsername: partnerUsername,
		Game:            match.Game,
		Region:          match.Region,
		GameMode:        match.GameMode,
	})
	if err != nil {
		return fmt.Errorf("encode match payload: %w", err)
	}

	notificationID, err := s.newID()
	if err != nil {
		return err
	}
	notification := Notification{
		ID:              notificationID,
		RecipientUserID: recipientUserID,
		MessageType:     MessageTypeMatchFound,
		Payload:         payload,
		DedupeKey:       fmt.Sprintf("%s:%s:%s", MessageTypeMatchFound, match.ID, recipientUserID),
		CreatedAt:       s.clock().UTC(),
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// ListInbox lists one recipient's notifications newest-first.
func (s *Service) ListInbox(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (Page, error) {
	if s == nil || s.store == nil {
		return Page{}, domain.ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return Page{}, ErrRecipientRequired
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return s.store.ListByRecipient(ctx, recipientUserID, pageSize, strings.TrimSpace(pageToken))
}

// CountUnread returns one recipient's unread inbox count.
func (s *Service) CountUnread(ctx context.Context, recipientUserID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, ErrRecipientRequired
	}
	return s.store.CountUnread(ctx, recipientUserID)
}

// MarkRead marks one owned notification as read.
func (s *Service) MarkRead(ctx context.Context, recipientUserID string, notificationID string) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, domain.ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientRequired
	}
	if notificationID == "" {
		return Notification{}, ErrNotFound
	}
	return s.store.MarkRead(ctx, recipientUserID, notificationID, s.clock().UTC())
}
