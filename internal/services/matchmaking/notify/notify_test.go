package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
)

type fakeStore struct {
	mu            sync.Mutex
	notifications map[string]Notification
	putErr        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{notifications: make(map[string]Notification)}
}

func (s *fakeStore) PutNotification(_ context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	for _, existing := range s.notifications {
		if existing.RecipientUserID == notification.RecipientUserID && existing.DedupeKey == notification.DedupeKey {
			return ErrDuplicate
		}
	}
	s.notifications[notification.ID] = notification
	return nil
}

func (s *fakeStore) ListByRecipient(_ context.Context, recipientUserID string, pageSize int, pageToken string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []Notification
	for _, notification := range s.notifications {
		if notification.RecipientUserID == recipientUserID {
			items = append(items, notification)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	start := 0
	if pageToken != "" {
		for i, item := range items {
			if item.ID == pageToken {
				start = i + 1
				break
			}
		}
	}
	page := Page{}
	for i := start; i < len(items) && len(page.Notifications) < pageSize; i++ {
		page.Notifications = append(page.Notifications, items[i])
	}
	if start+len(page.Notifications) < len(items) && len(page.Notifications) > 0 {
		page.NextPageToken = page.Notifications[len(page.Notifications)-1].ID
	}
	return page, nil
}

func (s *fakeStore) CountUnread(_ context.Context, recipientUserID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, notification := range s.notifications {
		if notification.RecipientUserID == recipientUserID && notification.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) MarkRead(_ context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok || notification.RecipientUserID != recipientUserID {
		return Notification{}, ErrNotFound
	}
	at := readAt
	notification.ReadAt = &at
	s.notifications[notificationID] = notification
	return notification, nil
}

func testMatch() domain.Match {
	return domain.Match{
		ID:            "match-1",
		Ticket1ID:     "ticket-1",
		Ticket2ID:     "ticket-2",
		User1ID:       "user-1",
		User2ID:       "user-2",
		User1Snapshot: domain.ProfileSnapshot{Username: "alpha"},
		User2Snapshot: domain.ProfileSnapshot{Username: "bravo"},
		Game:          "pubg",
		Region:        "na",
		GameMode:      "squad",
		Status:        domain.MatchStatusMatched,
		CreatedAt:     time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func newIDSequence(prefix string) func() (string, error) {
	var mu sync.Mutex
	next := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return prefix + "-" + string(rune('0'+next)), nil
	}
}

func TestMatchFoundEnqueuesPartnerPayload(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	service := NewService(store, Options{
		Clock: func() time.Time { return now },
		NewID: newIDSequence("notif"),
		Logf:  t.Logf,
	})

	if err := service.MatchFound(context.Background(), "user-1", testMatch()); err != nil {
		t.Fatalf("match found: %v", err)
	}

	page, err := service.ListInbox(context.Background(), "user-1", 10, "")
	if err != nil {
		t.Fatalf("list inbox: %v", err)
	}
	if len(page.Notifications) != 1 {
		t.Fatalf("inbox size = %d, want 1", len(page.Notifications))
	}
	notification := page.Notifications[0]
	if notification.MessageType != MessageTypeMatchFound {
		t.Fatalf("message type = %q", notification.MessageType)
	}

	var payload MatchFoundPayload
	if err := json.Unmarshal(notification.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.MatchID != "match-1" {
		t.Fatalf("payload match id = %q", payload.MatchID)
	}
	if payload.PartnerUserID != "user-2" || payload.PartnerUsername != "bravo" {
		t.Fatalf("payload partner = (%s, %s), want the other participant", payload.PartnerUserID, payload.PartnerUsername)
	}
}

func TestMatchFoundPartnerForSecondParticipant(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := NewService(store, Options{NewID: newIDSequence("notif"), Logf: t.Logf})

	if err := service.MatchFound(context.Background(), "user-2", testMatch()); err != nil {
		t.Fatalf("match found: %v", err)
	}
	page, err := service.ListInbox(context.Background(), "user-2", 10, "")
	if err != nil {
		t.Fatalf("list inbox: %v", err)
	}
	var payload MatchFoundPayload
	if err := json.Unmarshal(page.Notifications[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.PartnerUserID != "user-1" || payload.PartnerUsername != "alpha" {
		t.Fatalf("payload partner = (%s, %s), want first participant", payload.PartnerUserID, payload.PartnerUsername)
	}
}

func TestMatchFoundDeduplicatesRedelivery(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := NewService(store, Options{NewID: newIDSequence("notif"), Logf: t.Logf})

	for i := 0; i < 3; i++ {
		if err := service.MatchFound(context.Background(), "user-1", testMatch()); err != nil {
			t.Fatalf("match found %d: %v", i, err)
		}
	}
	unread, err := service.CountUnread(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 1 {
		t.Fatalf("unread = %d, want deduplicated single delivery", unread)
	}
}

func TestMatchFoundRequiresRecipient(t *testing.T) {
	t.Parallel()

	service := NewService(newFakeStore(), Options{Logf: t.Logf})
	if err := service.MatchFound(context.Background(), " ", testMatch()); !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("err = %v, want recipient required", err)
	}
}

func TestListInboxClampsPageSize(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := now
	service := NewService(store, Options{
		Clock: func() time.Time { clock = clock.Add(time.Second); return clock },
		NewID: newIDSequence("notif"),
		Logf:  t.Logf,
	})

	match := testMatch()
	for i := 0; i < 3; i++ {
		match.ID = "match-" + string(rune('1'+i))
		if err := service.MatchFound(context.Background(), "user-1", match); err != nil {
			t.Fatalf("match found %d: %v", i, err)
		}
	}

	page, err := service.ListInbox(context.Background(), "user-1", 0, "")
	if err != nil {
		t.Fatalf("list with zero page size: %v", err)
	}
	if len(page.Notifications) != 3 {
		t.Fatalf("default page = %d items, want all 3", len(page.Notifications))
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	service := NewService(store, Options{
		Clock: func() time.Time { return now },
		NewID: newIDSequence("notif"),
		Logf:  t.Logf,
	})
	if err := service.MatchFound(context.Background(), "user-1", testMatch()); err != nil {
		t.Fatalf("match found: %v", err)
	}
	page, err := service.ListInbox(context.Background(), "user-1", 10, "")
	if err != nil {
		t.Fatalf("list inbox: %v", err)
	}

	read, err := service.MarkRead(context.Background(), "user-1", page.Notifications[0].ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.ReadAt == nil || !read.ReadAt.Equal(now) {
		t.Fatalf("readAt = %v, want clock time", read.ReadAt)
	}

	if _, err := service.MarkRead(context.Background(), "user-2", page.Notifications[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign mark read err = %v, want not found", err)
	}
}
