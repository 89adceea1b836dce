package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/squadforge/squadforge/internal/platform/storage/sqlitemigrate"
	"github.com/squadforge/squadforge/internal/services/matchmaking/storage"
	"github.com/squadforge/squadforge/internal/services/matchmaking/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for matchmaking state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a matchmaking SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS)
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

const ticketColumns = `id, user_id, snapshot_json, game, region, game_mode, skill, roles_any, roles_json, language_any, language_tag, mic_required, max_wait_seconds, status, match_id, created_at, expires_at, closed_at`

// PutTicket persists one new ticket row. A second active ticket for the same
// user violates the active-per-user index and reports storage.ErrConflict.
func (s *Store) PutTicket(ctx context.Context, record storage.TicketRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeTicketRecord(record)
	if err != nil {
		return err
	}

	var closedAt sql.NullInt64
	if normalized.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: toMillis(*normalized.ClosedAt), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO tickets (`+ticketColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.UserID,
		normalized.SnapshotJSON,
		normalized.Game,
		normalized.Region,
		normalized.GameMode,
		normalized.Skill,
		boolToInt(normalized.RolesAny),
		normalized.RolesJSON,
		boolToInt(normalized.LanguageAny),
		normalized.LanguageTag,
		boolToInt(normalized.MicRequired),
		normalized.MaxWaitSeconds,
		string(normalized.Status),
		normalized.MatchID,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.ExpiresAt),
		closedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put ticket: %w", err)
	}
	return nil
}

// GetTicket loads one ticket row by id.
func (s *Store) GetTicket(ctx context.Context, ticketID string) (storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TicketRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TicketRecord{}, fmt.Errorf("storage is not configured")
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return storage.TicketRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE id = ?
`, ticketID)
	record, err := scanTicket(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TicketRecord{}, storage.ErrNotFound
		}
		return storage.TicketRecord{}, fmt.Errorf("get ticket: %w", err)
	}
	return record, nil
}

// GetActiveTicketByUser loads one user's active ticket, if any.
func (s *Store) GetActiveTicketByUser(ctx context.Context, userID string) (storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TicketRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TicketRecord{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.TicketRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE user_id = ? AND status = ?
`, userID, storage.TicketStatusActive)
	record, err := scanTicket(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TicketRecord{}, storage.ErrNotFound
		}
		return storage.TicketRecord{}, fmt.Errorf("get active ticket by user: %w", err)
	}
	return record, nil
}

// ListActiveTickets lists unexpired active tickets in creation order.
func (s *Store) ListActiveTickets(ctx context.Context, now time.Time, limit int) ([]storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE status = ? AND expires_at > ?
ORDER BY created_at ASC, id ASC
LIMIT ?
`, storage.TicketStatusActive, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list active tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows, limit)
}

// ListActiveTicketsByBucket lists unexpired active tickets for one
// compatibility group in creation order.
func (s *Store) ListActiveTicketsByBucket(ctx context.Context, game, region, gameMode string, now time.Time, limit int) ([]storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	game = strings.TrimSpace(game)
	region = strings.TrimSpace(region)
	gameMode = strings.TrimSpace(gameMode)
	if game == "" || region == "" || gameMode == "" {
		return nil, fmt.Errorf("bucket key is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE status = ? AND game = ? AND region = ? AND game_mode = ? AND expires_at > ?
ORDER BY created_at ASC, id ASC
LIMIT ?
`, storage.TicketStatusActive, game, region, gameMode, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list active tickets by bucket: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows, limit)
}

// ListExpiredActiveTickets lists active tickets whose deadline has passed.
func (s *Store) ListExpiredActiveTickets(ctx context.Context, now time.Time, limit int) ([]storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE status = ? AND expires_at <= ?
ORDER BY expires_at ASC, id ASC
LIMIT ?
`, storage.TicketStatusActive, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired active tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows, limit)
}

// CloseTicket transitions one active ticket to a terminal status. The update
// is guarded on the current status so a ticket closed by a concurrent writer
// reports storage.ErrNotActive instead of being overwritten.
func (s *Store) CloseTicket(ctx context.Context, ticketID string, status storage.TicketStatus, closedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return storage.ErrNotFound
	}
	if status == storage.TicketStatusActive {
		return fmt.Errorf("close status must be terminal")
	}
	if closedAt.IsZero() {
		return fmt.Errorf("closed at is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE tickets
SET status = ?, closed_at = ?
WHERE id = ? AND status = ?
`, string(status), toMillis(closedAt), ticketID, storage.TicketStatusActive)
	if err != nil {
		return fmt.Errorf("close ticket: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close ticket rows affected: %w", err)
	}
	if affected == 0 {
		var one int
		if scanErr := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE id = ?`, ticketID).Scan(&one); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("close ticket status check: %w", scanErr)
		}
		return storage.ErrNotActive
	}
	return nil
}

// CreateMatch atomically closes both tickets as matched and inserts the match
// row. The ticket updates are status-guarded, so a ticket consumed by another
// match or a cancel in the meantime aborts the whole write with
// storage.ErrNotActive.
func (s *Store) CreateMatch(ctx context.Context, record storage.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeMatchRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin match write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback match write: %v", cause, rollbackErr)
		}
		return cause
	}

	closedAt := toMillis(normalized.CreatedAt)
	for _, ticketID := range []string{normalized.Ticket1ID, normalized.Ticket2ID} {
		result, execErr := tx.ExecContext(ctx, `
UPDATE tickets
SET status = ?, match_id = ?, closed_at = ?
WHERE id = ? AND status = ?
`, storage.TicketStatusMatched, normalized.ID, closedAt, ticketID, storage.TicketStatusActive)
		if execErr != nil {
			return rollbackWith(fmt.Errorf("close matched ticket %s: %w", ticketID, execErr))
		}
		affected, affectedErr := result.RowsAffected()
		if affectedErr != nil {
			return rollbackWith(fmt.Errorf("close matched ticket rows affected: %w", affectedErr))
		}
		if affected == 0 {
			return rollbackWith(storage.ErrNotActive)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (
    id, ticket1_id, ticket2_id, user1_id, user2_id,
    user1_snapshot_json, user2_snapshot_json,
    game, region, game_mode, skill1, skill2,
    language_any, language_tag, status, result, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.Ticket1ID,
		normalized.Ticket2ID,
		normalized.User1ID,
		normalized.User2ID,
		normalized.User1SnapshotJSON,
		normalized.User2SnapshotJSON,
		normalized.Game,
		normalized.Region,
		normalized.GameMode,
		normalized.Skill1,
		normalized.Skill2,
		boolToInt(normalized.LanguageAny),
		normalized.LanguageTag,
		normalized.Status,
		normalized.Result,
		toMillis(normalized.CreatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return rollbackWith(storage.ErrConflict)
		}
		return rollbackWith(fmt.Errorf("insert match: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit match write: %w", err)
	}
	return nil
}

// GetMatch loads one match row by id.
func (s *Store) GetMatch(ctx context.Context, matchID string) (storage.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MatchRecord{}, fmt.Errorf("storage is not configured")
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return storage.MatchRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, ticket1_id, ticket2_id, user1_id, user2_id,
       user1_snapshot_json, user2_snapshot_json,
       game, region, game_mode, skill1, skill2,
       language_any, language_tag, status, result, created_at
FROM matches
WHERE id = ?
`, matchID)
	record, err := scanMatch(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MatchRecord{}, storage.ErrNotFound
		}
		return storage.MatchRecord{}, fmt.Errorf("get match: %w", err)
	}
	return record, nil
}

// PutNotification persists one notification inbox row. A duplicate dedupe key
// for the same recipient reports storage.ErrConflict.
func (s *Store) PutNotification(ctx context.Context, record storage.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeNotificationRecord(record)
	if err != nil {
		return err
	}

	var readAt sql.NullInt64
	if normalized.ReadAt != nil {
		readAt = sql.NullInt64{Int64: toMillis(*normalized.ReadAt), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO notifications (
    id, recipient_user_id, message_type, payload_json, dedupe_key, created_at, read_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.RecipientUserID,
		normalized.MessageType,
		normalized.PayloadJSON,
		normalized.DedupeKey,
		toMillis(normalized.CreatedAt),
		readAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotificationByRecipientAndDedupeKey loads one recipient notification by dedupe key.
func (s *Store) GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	dedupeKey = strings.TrimSpace(dedupeKey)
	if recipientUserID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("recipient user id is required")
	}
	if dedupeKey == "" {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, recipient_user_id, message_type, payload_json, dedupe_key, created_at, read_at
FROM notifications
WHERE recipient_user_id = ? AND dedupe_key = ?
`, recipientUserID, dedupeKey)
	record, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("get notification by dedupe key: %w", err)
	}
	return record, nil
}

// ListNotificationsByRecipient lists one recipient inbox newest-first with cursor pagination.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (storage.NotificationPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.NotificationPage{}, fmt.Errorf("storage is not configured")
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	pageToken = strings.TrimSpace(pageToken)
	if recipientUserID == "" {
		return storage.NotificationPage{}, fmt.Errorf("recipient user id is required")
	}
	if pageSize <= 0 {
		return storage.NotificationPage{}, fmt.Errorf("page size must be greater than zero")
	}

	limit := pageSize + 1
	if pageToken == "" {
		rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, recipient_user_id, message_type, payload_json, dedupe_key, created_at, read_at
FROM notifications
WHERE recipient_user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, recipientUserID, limit)
		if err != nil {
			return storage.NotificationPage{}, fmt.Errorf("list notifications: %w", err)
		}
		defer rows.Close()
		return collectNotificationPage(rows, pageSize)
	}

	tokenCreatedAt, err := s.notificationCreatedAtByID(ctx, recipientUserID, pageToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.NotificationPage{}, nil
		}
		return storage.NotificationPage{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, recipient_user_id, message_type, payload_json, dedupe_key, created_at, read_at
FROM notifications
WHERE recipient_user_id = ?
  AND (created_at < ? OR (created_at = ? AND id < ?))
ORDER BY created_at DESC, id DESC
LIMIT ?
`, recipientUserID, toMillis(tokenCreatedAt), toMillis(tokenCreatedAt), pageToken, limit)
	if err != nil {
		return storage.NotificationPage{}, fmt.Errorf("list notifications with token: %w", err)
	}
	defer rows.Close()
	return collectNotificationPage(rows, pageSize)
}

// CountUnreadNotificationsByRecipient returns unread inbox count for one recipient.
func (s *Store) CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, fmt.Errorf("recipient user id is required")
	}

	var unreadCount int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM notifications
WHERE recipient_user_id = ? AND read_at IS NULL
`, recipientUserID).Scan(&unreadCount); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return unreadCount, nil
}

// MarkNotificationRead marks one notification row as read for a recipient.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientUserID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("recipient user id is required")
	}
	if notificationID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications
SET read_at = ?
WHERE recipient_user_id = ? AND id = ?
`, toMillis(readAt.UTC()), recipientUserID, notificationID)
	if err != nil {
		return storage.NotificationRecord{}, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.NotificationRecord{}, fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, recipient_user_id, message_type, payload_json, dedupe_key, created_at, read_at
FROM notifications
WHERE recipient_user_id = ? AND id = ?
`, recipientUserID, notificationID)
	record, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("get notification by id: %w", err)
	}
	return record, nil
}

func (s *Store) notificationCreatedAtByID(ctx context.Context, recipientUserID string, notificationID string) (time.Time, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT created_at
FROM notifications
WHERE recipient_user_id = ? AND id = ?
`, recipientUserID, notificationID)
	var createdAtMillis int64
	if err := row.Scan(&createdAtMillis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("lookup notification cursor: %w", err)
	}
	return fromMillis(createdAtMillis), nil
}

type scanner func(dest ...any) error

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func normalizeTicketRecord(record storage.TicketRecord) (storage.TicketRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.UserID = strings.TrimSpace(record.UserID)
	record.Game = strings.TrimSpace(record.Game)
	record.Region = strings.TrimSpace(record.Region)
	record.GameMode = strings.TrimSpace(record.GameMode)
	record.LanguageTag = strings.TrimSpace(record.LanguageTag)
	record.MatchID = strings.TrimSpace(record.MatchID)
	record.SnapshotJSON = strings.TrimSpace(record.SnapshotJSON)
	record.RolesJSON = strings.TrimSpace(record.RolesJSON)
	if record.SnapshotJSON == "" {
		record.SnapshotJSON = "{}"
	}
	if record.RolesJSON == "" {
		record.RolesJSON = "[]"
	}
	if record.ID == "" {
		return storage.TicketRecord{}, fmt.Errorf("ticket id is required")
	}
	if record.UserID == "" {
		return storage.TicketRecord{}, fmt.Errorf("user id is required")
	}
	if record.Game == "" || record.Region == "" || record.GameMode == "" {
		return storage.TicketRecord{}, fmt.Errorf("bucket key is required")
	}
	if record.Status == "" {
		return storage.TicketRecord{}, fmt.Errorf("ticket status is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.TicketRecord{}, fmt.Errorf("created_at is required")
	}
	if record.ExpiresAt.IsZero() {
		return storage.TicketRecord{}, fmt.Errorf("expires_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	if record.ClosedAt != nil {
		closedAt := record.ClosedAt.UTC()
		record.ClosedAt = &closedAt
	}
	return record, nil
}

func normalizeMatchRecord(record storage.MatchRecord) (storage.MatchRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Ticket1ID = strings.TrimSpace(record.Ticket1ID)
	record.Ticket2ID = strings.TrimSpace(record.Ticket2ID)
	record.User1ID = strings.TrimSpace(record.User1ID)
	record.User2ID = strings.TrimSpace(record.User2ID)
	record.Game = strings.TrimSpace(record.Game)
	record.Region = strings.TrimSpace(record.Region)
	record.GameMode = strings.TrimSpace(record.GameMode)
	record.LanguageTag = strings.TrimSpace(record.LanguageTag)
	record.Status = strings.TrimSpace(record.Status)
	record.Result = strings.TrimSpace(record.Result)
	record.User1SnapshotJSON = strings.TrimSpace(record.User1SnapshotJSON)
	record.User2SnapshotJSON = strings.TrimSpace(record.User2SnapshotJSON)
	if record.User1SnapshotJSON == "" {
		record.User1SnapshotJSON = "{}"
	}
	if record.User2SnapshotJSON == "" {
		record.User2SnapshotJSON = "{}"
	}
	if record.ID == "" {
		return storage.MatchRecord{}, fmt.Errorf("match id is required")
	}
	if record.Ticket1ID == "" || record.Ticket2ID == "" {
		return storage.MatchRecord{}, fmt.Errorf("both ticket ids are required")
	}
	if record.Ticket1ID == record.Ticket2ID {
		return storage.MatchRecord{}, fmt.Errorf("match must reference two distinct tickets")
	}
	if record.User1ID == "" || record.User2ID == "" {
		return storage.MatchRecord{}, fmt.Errorf("both user ids are required")
	}
	if record.Status == "" {
		return storage.MatchRecord{}, fmt.Errorf("match status is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.MatchRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

func normalizeNotificationRecord(record storage.NotificationRecord) (storage.NotificationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.RecipientUserID = strings.TrimSpace(record.RecipientUserID)
	record.MessageType = strings.TrimSpace(record.MessageType)
	record.DedupeKey = strings.TrimSpace(record.DedupeKey)
	record.PayloadJSON = strings.TrimSpace(record.PayloadJSON)
	if record.PayloadJSON == "" {
		record.PayloadJSON = "{}"
	}
	if record.ID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification id is required")
	}
	if record.RecipientUserID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("recipient user id is required")
	}
	if record.MessageType == "" {
		return storage.NotificationRecord{}, fmt.Errorf("message type is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.NotificationRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	if record.ReadAt != nil {
		readAt := record.ReadAt.UTC()
		record.ReadAt = &readAt
	}
	return record, nil
}

func scanTicket(scan scanner) (storage.TicketRecord, error) {
	var record storage.TicketRecord
	var rolesAny int
	var languageAny int
	var micRequired int
	var createdAt int64
	var expiresAt int64
	var closedAt sql.NullInt64
	if err := scan(
		&record.ID,
		&record.UserID,
		&record.SnapshotJSON,
		&record.Game,
		&record.Region,
		&record.GameMode,
		&record.Skill,
		&rolesAny,
		&record.RolesJSON,
		&languageAny,
		&record.LanguageTag,
		&micRequired,
		&record.MaxWaitSeconds,
		&record.Status,
		&record.MatchID,
		&createdAt,
		&expiresAt,
		&closedAt,
	); err != nil {
		return storage.TicketRecord{}, err
	}
	record.RolesAny = rolesAny != 0
	record.LanguageAny = languageAny != 0
	record.MicRequired = micRequired != 0
	record.CreatedAt = fromMillis(createdAt)
	record.ExpiresAt = fromMillis(expiresAt)
	if closedAt.Valid {
		value := fromMillis(closedAt.Int64)
		record.ClosedAt = &value
	}
	return record, nil
}

func collectTickets(rows *sql.Rows, limit int) ([]storage.TicketRecord, error) {
	results := make([]storage.TicketRecord, 0, limit)
	for rows.Next() {
		record, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan ticket row: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket rows: %w", err)
	}
	return results, nil
}

func scanMatch(scan scanner) (storage.MatchRecord, error) {
	var record storage.MatchRecord
	var languageAny int
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.Ticket1ID,
		&record.Ticket2ID,
		&record.User1ID,
		&record.User2ID,
		&record.User1SnapshotJSON,
		&record.User2SnapshotJSON,
		&record.Game,
		&record.Region,
		&record.GameMode,
		&record.Skill1,
		&record.Skill2,
		&languageAny,
		&record.LanguageTag,
		&record.Status,
		&record.Result,
		&createdAt,
	); err != nil {
		return storage.MatchRecord{}, err
	}
	record.LanguageAny = languageAny != 0
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func collectNotificationPage(rows *sql.Rows, pageSize int) (storage.NotificationPage, error) {
	page := storage.NotificationPage{
		Notifications: make([]storage.NotificationRecord, 0, pageSize),
	}
	for rows.Next() {
		record, err := scanNotification(rows.Scan)
		if err != nil {
			return storage.NotificationPage{}, fmt.Errorf("scan notification row: %w", err)
		}
		page.Notifications = append(page.Notifications, record)
	}
	if err := rows.Err(); err != nil {
		return storage.NotificationPage{}, fmt.Errorf("iterate notification rows: %w", err)
	}
	if len(page.Notifications) > pageSize {
		page.NextPageToken = page.Notifications[pageSize-1].ID
		page.Notifications = page.Notifications[:pageSize]
	}
	return page, nil
}

func scanNotification(scan scanner) (storage.NotificationRecord, error) {
	var record storage.NotificationRecord
	var createdAt int64
	var readAt sql.NullInt64
	if err := scan(
		&record.ID,
		&record.RecipientUserID,
		&record.MessageType,
		&record.PayloadJSON,
		&record.DedupeKey,
		&createdAt,
		&readAt,
	); err != nil {
		return storage.NotificationRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	if readAt.Valid {
		value := fromMillis(readAt.Int64)
		record.ReadAt = &value
	}
	return record, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
