package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
	"github.com/squadforge/squadforge/internal/services/matchmaking/notify"
	"github.com/squadforge/squadforge/internal/services/matchmaking/storage"
)

type ticketStoreAdapter struct {
	store storage.TicketStore
}

func newTicketStoreAdapter(store storage.TicketStore) *ticketStoreAdapter {
	return &ticketStoreAdapter{store: store}
}

func (a *ticketStoreAdapter) PutTicket(ctx context.Context, ticket domain.Ticket) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	record, err := toTicketRecord(ticket)
	if err != nil {
		return err
	}
	if err := a.store.PutTicket(ctx, record); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.ErrActiveTicketExists
		}
		return mapTicketStorageError(err)
	}
	return nil
}

func (a *ticketStoreAdapter) GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if a == nil || a.store == nil {
		return domain.Ticket{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, mapTicketStorageError(err)
	}
	return toDomainTicket(record)
}

func (a *ticketStoreAdapter) GetActiveTicketByUser(ctx context.Context, userID string) (domain.Ticket, error) {
	if a == nil || a.store == nil {
		return domain.Ticket{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetActiveTicketByUser(ctx, userID)
	if err != nil {
		return domain.Ticket{}, mapTicketStorageError(err)
	}
	return toDomainTicket(record)
}

func (a *ticketStoreAdapter) ListActiveTickets(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListActiveTickets(ctx, now, limit)
	if err != nil {
		return nil, mapTicketStorageError(err)
	}
	return toDomainTickets(records)
}

func (a *ticketStoreAdapter) ListActiveTicketsByBucket(ctx context.Context, key domain.BucketKey, now time.Time, limit int) ([]domain.Ticket, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListActiveTicketsByBucket(ctx, key.Game, key.Region, key.GameMode, now, limit)
	if err != nil {
		return nil, mapTicketStorageError(err)
	}
	return toDomainTickets(records)
}

func (a *ticketStoreAdapter) ListExpiredActiveTickets(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListExpiredActiveTickets(ctx, now, limit)
	if err != nil {
		return nil, mapTicketStorageError(err)
	}
	return toDomainTickets(records)
}

func (a *ticketStoreAdapter) CloseTicket(ctx context.Context, ticketID string, status domain.TicketStatus, at time.Time) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	if err := a.store.CloseTicket(ctx, ticketID, storage.TicketStatus(status), at); err != nil {
		return mapTicketStorageError(err)
	}
	return nil
}

type matchStoreAdapter struct {
	store storage.MatchStore
}

func newMatchStoreAdapter(store storage.MatchStore) *matchStoreAdapter {
	return &matchStoreAdapter{store: store}
}

func (a *matchStoreAdapter) CreateMatch(ctx context.Context, match domain.Match) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	record, err := toMatchRecord(match)
	if err != nil {
		return err
	}
	if err := a.store.CreateMatch(ctx, record); err != nil {
		return mapTicketStorageError(err)
	}
	return nil
}

func (a *matchStoreAdapter) GetMatch(ctx context.Context, matchID string) (domain.Match, error) {
	if a == nil || a.store == nil {
		return domain.Match{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Match{}, domain.ErrMatchNotFound
		}
		return domain.Match{}, err
	}
	return toDomainMatch(record)
}

type notifyStoreAdapter struct {
	store storage.NotificationStore
}

func newNotifyStoreAdapter(store storage.NotificationStore) *notifyStoreAdapter {
	return &notifyStoreAdapter{store: store}
}

func (a *notifyStoreAdapter) PutNotification(ctx context.Context, notification notify.Notification) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	err := a.store.PutNotification(ctx, storage.NotificationRecord{
		ID:              notification.ID,
		RecipientUserID: notification.RecipientUserID,
		MessageType:     notification.MessageType,
		PayloadJSON:     string(notification.Payload),
		DedupeKey:       notification.DedupeKey,
		CreatedAt:       notification.CreatedAt,
		ReadAt:          notification.ReadAt,
	})
	if errors.Is(err, storage.ErrConflict) {
		return notify.ErrDuplicate
	}
	return err
}

func (a *notifyStoreAdapter) ListByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (notify.Page, error) {
	if a == nil || a.store == nil {
		return notify.Page{}, domain.ErrStoreNotConfigured
	}
	page, err := a.store.ListNotificationsByRecipient(ctx, recipientUserID, pageSize, pageToken)
	if err != nil {
		return notify.Page{}, err
	}
	result := notify.Page{
		Notifications: make([]notify.Notification, 0, len(page.Notifications)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Notifications {
		result.Notifications = append(result.Notifications, toNotifyNotification(record))
	}
	return result, nil
}

func (a *notifyStoreAdapter) CountUnread(ctx context.Context, recipientUserID string) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	return a.store.CountUnreadNotificationsByRecipient(ctx, recipientUserID)
}

func (a *notifyStoreAdapter) MarkRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (notify.Notification, error) {
	if a == nil || a.store == nil {
		return notify.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.MarkNotificationRead(ctx, recipientUserID, notificationID, readAt)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notify.Notification{}, notify.ErrNotFound
		}
		return notify.Notification{}, err
	}
	return toNotifyNotification(record), nil
}

func mapTicketStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrTicketNotFound
	case errors.Is(err, storage.ErrNotActive):
		return domain.ErrTicketNotActive
	default:
		return err
	}
}

type snapshotPayload struct {
	Username    string                      `json:"username,omitempty"`
	DisplayName string                      `json:"displayName,omitempty"`
	AvatarURL   string                      `json:"avatarUrl,omitempty"`
	GameStats   map[string]gameStatsPayload `json:"gameStats,omitempty"`
}

type gameStatsPayload struct {
	MatchesPlayed int     `json:"matchesPlayed"`
	Wins          int     `json:"wins"`
	KDRatio       float64 `json:"kdRatio"`
}

func encodeSnapshot(snapshot domain.ProfileSnapshot) (string, error) {
	payload := snapshotPayload{
		Username:    snapshot.Username,
		DisplayName: snapshot.DisplayName,
		AvatarURL:   snapshot.AvatarURL,
	}
	if len(snapshot.GameStats) > 0 {
		payload.GameStats = make(map[string]gameStatsPayload, len(snapshot.GameStats))
		for game, stats := range snapshot.GameStats {
			payload.GameStats[game] = gameStatsPayload{
				MatchesPlayed: stats.MatchesPlayed,
				Wins:          stats.Wins,
				KDRatio:       stats.KDRatio,
			}
		}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode profile snapshot: %w", err)
	}
	return string(encoded), nil
}

func decodeSnapshot(encoded string) (domain.ProfileSnapshot, error) {
	if encoded == "" {
		return domain.ProfileSnapshot{}, nil
	}
	var payload snapshotPayload
	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		return domain.ProfileSnapshot{}, fmt.Errorf("decode profile snapshot: %w", err)
	}
	snapshot := domain.ProfileSnapshot{
		Username:    payload.Username,
		DisplayName: payload.DisplayName,
		AvatarURL:   payload.AvatarURL,
	}
	if len(payload.GameStats) > 0 {
		snapshot.GameStats = make(map[string]domain.GameStats, len(payload.GameStats))
		for game, stats := range payload.GameStats {
			snapshot.GameStats[game] = domain.GameStats{
				MatchesPlayed: stats.MatchesPlayed,
				Wins:          stats.Wins,
				KDRatio:       stats.KDRatio,
			}
		}
	}
	return snapshot, nil
}

func toTicketRecord(ticket domain.Ticket) (storage.TicketRecord, error) {
	snapshotJSON, err := encodeSnapshot(ticket.Snapshot)
	if err != nil {
		return storage.TicketRecord{}, err
	}
	roles := ticket.Roles.Roles
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return storage.TicketRecord{}, fmt.Errorf("encode roles: %w", err)
	}
	return storage.TicketRecord{
		ID:             ticket.ID,
		UserID:         ticket.UserID,
		SnapshotJSON:   snapshotJSON,
		Game:           ticket.Game,
		Region:         ticket.Region,
		GameMode:       ticket.GameMode,
		Skill:          int(ticket.Skill),
		RolesAny:       ticket.Roles.Any,
		RolesJSON:      string(rolesJSON),
		LanguageAny:    ticket.Language.Any,
		LanguageTag:    ticket.Language.Name,
		MicRequired:    ticket.MicRequired,
		MaxWaitSeconds: int(ticket.MaxWait / time.Second),
		Status:         storage.TicketStatus(ticket.Status),
		MatchID:        ticket.MatchID,
		CreatedAt:      ticket.CreatedAt,
		ExpiresAt:      ticket.ExpiresAt,
		ClosedAt:       ticket.ClosedAt,
	}, nil
}

func toDomainTicket(record storage.TicketRecord) (domain.Ticket, error) {
	snapshot, err := decodeSnapshot(record.SnapshotJSON)
	if err != nil {
		return domain.Ticket{}, err
	}
	var roles []string
	if record.RolesJSON != "" {
		if err := json.Unmarshal([]byte(record.RolesJSON), &roles); err != nil {
			return domain.Ticket{}, fmt.Errorf("decode roles: %w", err)
		}
	}
	ticket := domain.Ticket{
		ID:          record.ID,
		UserID:      record.UserID,
		Snapshot:    snapshot,
		Game:        record.Game,
		Region:      record.Region,
		GameMode:    record.GameMode,
		Skill:       domain.SkillLevel(record.Skill),
		Roles:       domain.RolePreference{Any: record.RolesAny, Roles: roles},
		Language:    domain.Tag{Any: record.LanguageAny, Name: record.LanguageTag},
		MicRequired: record.MicRequired,
		MaxWait:     time.Duration(record.MaxWaitSeconds) * time.Second,
		Status:      domain.TicketStatus(record.Status),
		MatchID:     record.MatchID,
		CreatedAt:   record.CreatedAt,
		ExpiresAt:   record.ExpiresAt,
		ClosedAt:    record.ClosedAt,
	}
	return ticket, nil
}

func toDomainTickets(records []storage.TicketRecord) ([]domain.Ticket, error) {
	tickets := make([]domain.Ticket, 0, len(records))
	for _, record := range records {
		ticket, err := toDomainTicket(record)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func toMatchRecord(match domain.Match) (storage.MatchRecord, error) {
	snapshot1, err := encodeSnapshot(match.User1Snapshot)
	if err != nil {
		return storage.MatchRecord{}, err
	}
	snapshot2, err := encodeSnapshot(match.User2Snapshot)
	if err != nil {
		return storage.MatchRecord{}, err
	}
	return storage.MatchRecord{
		ID:                match.ID,
		Ticket1ID:         match.Ticket1ID,
		Ticket2ID:         match.Ticket2ID,
		User1ID:           match.User1ID,
		User2ID:           match.User2ID,
		User1SnapshotJSON: snapshot1,
		User2SnapshotJSON: snapshot2,
		Game:              match.Game,
		Region:            match.Region,
		GameMode:          match.GameMode,
		Skill1:            int(match.Skill1),
		Skill2:            int(match.Skill2),
		LanguageAny:       match.Language.Any,
		LanguageTag:       match.Language.Name,
		Status:            string(match.Status),
		Result:            match.Result,
		CreatedAt:         match.CreatedAt,
	}, nil
}

func toDomainMatch(record storage.MatchRecord) (domain.Match, error) {
	snapshot1, err := decodeSnapshot(record.User1SnapshotJSON)
	if err != nil {
		return domain.Match{}, err
	}
	snapshot2, err := decodeSnapshot(record.User2SnapshotJSON)
	if err != nil {
		return domain.Match{}, err
	}
	return domain.Match{
		ID:            record.ID,
		Ticket1ID:     record.Ticket1ID,
		Ticket2ID:     record.Ticket2ID,
		User1ID:       record.User1ID,
		User2ID:       record.User2ID,
		User1Snapshot: snapshot1,
		User2Snapshot: snapshot2,
		Game:          record.Game,
		Region:        record.Region,
		GameMode:      record.GameMode,
		Skill1:        domain.SkillLevel(record.Skill1),
		Skill2:        domain.SkillLevel(record.Skill2),
		Language:      domain.Tag{Any: record.LanguageAny, Name: record.LanguageTag},
		Status:        domain.MatchStatus(record.Status),
		Result:        record.Result,
		CreatedAt:     record.CreatedAt,
	}, nil
}

func toNotifyNotification(record storage.NotificationRecord) notify.Notification {
	return notify.Notification{
		ID:              record.ID,
		RecipientUserID: record.RecipientUserID,
		MessageType:     record.MessageType,
		Payload:         json.RawMessage(record.PayloadJSON),
		DedupeKey:       record.DedupeKey,
		CreatedAt:       record.CreatedAt,
		ReadAt:          record.ReadAt,
	}
}
