package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
	"github.com/squadforge/squadforge/internal/services/matchmaking/notify"
	matchmakingsqlite "github.com/squadforge/squadforge/internal/services/matchmaking/storage/sqlite"
)

func openTestStore(t *testing.T) *matchmakingsqlite.Store {
	t.Helper()
	store, err := matchmakingsqlite.Open(filepath.Join(t.TempDir(), "matchmaking.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func domainTicket(id string, userID string, createdAt time.Time) domain.Ticket {
	return domain.Ticket{
		ID:     id,
		UserID: userID,
		Snapshot: domain.ProfileSnapshot{
			Username:    "name-" + userID,
			DisplayName: "Name " + userID,
			AvatarURL:   "https://cdn.example/" + userID + ".png",
			GameStats: map[string]domain.GameStats{
				"pubg": {MatchesPlayed: 120, Wins: 14, KDRatio: 1.35},
			},
		},
		Game:      "pubg",
		Region:    "na",
		GameMode:  "squad",
		Skill:     domain.SkillGold,
		Roles:     domain.RolePreference{Roles: []string{"igl", "support"}},
		Language:  domain.NamedTag("en"),
		MaxWait:   15 * time.Minute,
		Status:    domain.TicketStatusActive,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(15 * time.Minute),
	}
}

func TestTicketAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := newTicketStoreAdapter(openTestStore(t))
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ticket := domainTicket("ticket-1", "user-1", createdAt)
	if err := adapter.PutTicket(ctx, ticket); err != nil {
		t.Fatalf("PutTicket() error = %v", err)
	}

	fetched, err := adapter.GetTicket(ctx, "ticket-1")
	if err != nil {
		t.Fatalf("GetTicket() error = %v", err)
	}
	if fetched.UserID != "user-1" || fetched.Game != "pubg" || fetched.Skill != domain.SkillGold {
		t.Errorf("ticket = %+v, want user-1/pubg/gold", fetched)
	}
	if fetched.Language.Any || fetched.Language.Name != "en" {
		t.Errorf("language = %+v, want named en", fetched.Language)
	}
	if len(fetched.Roles.Roles) != 2 || fetched.Roles.Roles[0] != "igl" {
		t.Errorf("roles = %+v, want [igl support]", fetched.Roles)
	}
	if fetched.MaxWait != 15*time.Minute {
		t.Errorf("maxWait = %v, want 15m", fetched.MaxWait)
	}
	if !fetched.CreatedAt.Equal(createdAt) {
		t.Errorf("createdAt = %v, want %v", fetched.CreatedAt, createdAt)
	}
	stats, ok := fetched.Snapshot.GameStats["pubg"]
	if !ok || stats.MatchesPlayed != 120 || stats.KDRatio != 1.35 {
		t.Errorf("snapshot stats = %+v, want matchesPlayed 120 kd 1.35", fetched.Snapshot.GameStats)
	}
}

func TestTicketAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter := newTicketStoreAdapter(openTestStore(t))
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := adapter.GetTicket(ctx, "missing"); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Errorf("GetTicket(missing) error = %v, want ErrTicketNotFound", err)
	}

	if err := adapter.PutTicket(ctx, domainTicket("ticket-1", "user-1", createdAt)); err != nil {
		t.Fatalf("PutTicket() error = %v", err)
	}
	err := adapter.PutTicket(ctx, domainTicket("ticket-2", "user-1", createdAt.Add(time.Second)))
	if !errors.Is(err, domain.ErrActiveTicketExists) {
		t.Errorf("second active PutTicket error = %v, want ErrActiveTicketExists", err)
	}

	closedAt := createdAt.Add(time.Minute)
	if err := adapter.CloseTicket(ctx, "ticket-1", domain.TicketStatusCancelled, closedAt); err != nil {
		t.Fatalf("CloseTicket() error = %v", err)
	}
	err = adapter.CloseTicket(ctx, "ticket-1", domain.TicketStatusCancelled, closedAt)
	if !errors.Is(err, domain.ErrTicketNotActive) {
		t.Errorf("repeat CloseTicket error = %v, want ErrTicketNotActive", err)
	}
	if err := adapter.CloseTicket(ctx, "missing", domain.TicketStatusCancelled, closedAt); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Errorf("CloseTicket(missing) error = %v, want ErrTicketNotFound", err)
	}
}

func TestTicketAdapterActiveListings(t *testing.T) {
	ctx := context.Background()
	adapter := newTicketStoreAdapter(openTestStore(t))
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domainTicket("ticket-1", "user-1", createdAt)
	second := domainTicket("ticket-2", "user-2", createdAt.Add(time.Second))
	other := domainTicket("ticket-3", "user-3", createdAt.Add(2*time.Second))
	other.Region = "eu"
	for _, ticket := range []domain.Ticket{first, second, other} {
		if err := adapter.PutTicket(ctx, ticket); err != nil {
			t.Fatalf("PutTicket(%s) error = %v", ticket.ID, err)
		}
	}

	now := createdAt.Add(time.Minute)
	bucket, err := adapter.ListActiveTicketsByBucket(ctx, first.Bucket(), now, 10)
	if err != nil {
		t.Fatalf("ListActiveTicketsByBucket() error = %v", err)
	}
	if len(bucket) != 2 || bucket[0].ID != "ticket-1" || bucket[1].ID != "ticket-2" {
		t.Errorf("bucket listing = %+v, want ticket-1 then ticket-2", bucket)
	}

	expired, err := adapter.ListExpiredActiveTickets(ctx, createdAt.Add(16*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListExpiredActiveTickets() error = %v", err)
	}
	if len(expired) != 3 {
		t.Errorf("expired listing = %d tickets, want 3", len(expired))
	}

	active, err := adapter.GetActiveTicketByUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("GetActiveTicketByUser() error = %v", err)
	}
	if active.ID != "ticket-2" {
		t.Errorf("active ticket = %q, want ticket-2", active.ID)
	}
}

func TestMatchAdapterCreateAndFetch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	tickets := newTicketStoreAdapter(store)
	matches := newMatchStoreAdapter(store)
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domainTicket("ticket-1", "user-1", createdAt)
	second := domainTicket("ticket-2", "user-2", createdAt.Add(time.Second))
	for _, ticket := range []domain.Ticket{first, second} {
		if err := tickets.PutTicket(ctx, ticket); err != nil {
			t.Fatalf("PutTicket(%s) error = %v", ticket.ID, err)
		}
	}

	match := domain.Match{
		ID:            "match-1",
		Ticket1ID:     first.ID,
		Ticket2ID:     second.ID,
		User1ID:       first.UserID,
		User2ID:       second.UserID,
		User1Snapshot: first.Snapshot,
		User2Snapshot: second.Snapshot,
		Game:          "pubg",
		Region:        "na",
		GameMode:      "squad",
		Skill1:        first.Skill,
		Skill2:        second.Skill,
		Language:      domain.NamedTag("en"),
		Status:        domain.MatchStatusMatched,
		CreatedAt:     createdAt.Add(2 * time.Second),
	}
	if err := matches.CreateMatch(ctx, match); err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}

	fetched, err := matches.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("GetMatch() error = %v", err)
	}
	if !fetched.Participant("user-1") || !fetched.Participant("user-2") {
		t.Errorf("participants = %q/%q, want user-1 and user-2", fetched.User1ID, fetched.User2ID)
	}
	if fetched.User1Snapshot.Username != "name-user-1" {
		t.Errorf("user1 snapshot username = %q, want name-user-1", fetched.User1Snapshot.Username)
	}

	for _, ticketID := range []string{first.ID, second.ID} {
		ticket, err := tickets.GetTicket(ctx, ticketID)
		if err != nil {
			t.Fatalf("GetTicket(%s) error = %v", ticketID, err)
		}
		if ticket.Status != domain.TicketStatusMatched || ticket.MatchID != "match-1" {
			t.Errorf("ticket %s = %s/%s, want matched/match-1", ticketID, ticket.Status, ticket.MatchID)
		}
	}

	if err := matches.CreateMatch(ctx, match); !errors.Is(err, domain.ErrTicketNotActive) {
		t.Errorf("replay CreateMatch error = %v, want ErrTicketNotActive", err)
	}
	if _, err := matches.GetMatch(ctx, "missing"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("GetMatch(missing) error = %v, want ErrMatchNotFound", err)
	}
}

func TestNotifyAdapterInbox(t *testing.T) {
	ctx := context.Background()
	adapter := newNotifyStoreAdapter(openTestStore(t))
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	notification := notify.Notification{
		ID:              "notification-1",
		RecipientUserID: "user-1",
		MessageType:     notify.MessageTypeMatchFound,
		Payload:         []byte(`{"matchId":"match-1"}`),
		DedupeKey:       "match.found:match-1:user-1",
		CreatedAt:       createdAt,
	}
	if err := adapter.PutNotification(ctx, notification); err != nil {
		t.Fatalf("PutNotification() error = %v", err)
	}
	if err := adapter.PutNotification(ctx, notification); !errors.Is(err, notify.ErrDuplicate) {
		t.Errorf("duplicate PutNotification error = %v, want ErrDuplicate", err)
	}

	page, err := adapter.ListByRecipient(ctx, "user-1", 10, "")
	if err != nil {
		t.Fatalf("ListByRecipient() error = %v", err)
	}
	if len(page.Notifications) != 1 || page.Notifications[0].ID != "notification-1" {
		t.Fatalf("inbox = %+v, want one notification-1", page.Notifications)
	}

	unread, err := adapter.CountUnread(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountUnread() error = %v", err)
	}
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}

	read, err := adapter.MarkRead(ctx, "user-1", "notification-1", createdAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if read.ReadAt == nil {
		t.Error("readAt is nil after mark read")
	}
	if _, err := adapter.MarkRead(ctx, "user-2", "notification-1", createdAt.Add(time.Minute)); !errors.Is(err, notify.ErrNotFound) {
		t.Errorf("foreign MarkRead error = %v, want ErrNotFound", err)
	}
}
