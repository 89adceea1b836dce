package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/squadforge/squadforge/internal/platform/id"
)

const (
	// DefaultSweepBatchSize bounds how many active tickets one sweep run loads.
	DefaultSweepBatchSize = 100
	// DefaultReapBatchSize bounds how many overdue tickets one reap run loads.
	DefaultReapBatchSize = 100
	// DefaultMaxWait applies when a ticket request does not set a wait time.
	DefaultMaxWait = 15 * time.Minute
	// MaxWaitCeiling caps how long a ticket may stay in the pool.
	MaxWaitCeiling = 24 * time.Hour
)

// TicketStore is the domain persistence boundary for ticket lifecycle state.
// CloseTicket transitions a ticket out of active and must fail with
// ErrTicketNotActive when the ticket already reached a terminal status.
type TicketStore interface {
	PutTicket(ctx context.Context, ticket Ticket) error
	GetTicket(ctx context.Context, ticketID string) (Ticket, error)
	GetActiveTicketByUser(ctx context.Context, userID string) (Ticket, error)
	ListActiveTickets(ctx context.Context, now time.Time, limit int) ([]Ticket, error)
	ListActiveTicketsByBucket(ctx context.Context, key BucketKey, now time.Time, limit int) ([]Ticket, error)
	ListExpiredActiveTickets(ctx context.Context, now time.Time, limit int) ([]Ticket, error)
	CloseTicket(ctx context.Context, ticketID string, status TicketStatus, at time.Time) error
}

// MatchStore persists match records. CreateMatch is the transactional
// primitive: it atomically re-verifies that both referenced tickets are still
// active, closes them as matched, and inserts the match. It must fail with
// ErrTicketNotActive when either ticket lost the race.
type MatchStore interface {
	CreateMatch(ctx context.Context, match Match) error
	GetMatch(ctx context.Context, matchID string) (Match, error)
}

// ProfileLookup resolves the denormalized snapshot stored on new tickets.
type ProfileLookup interface {
	ProfileByID(ctx context.Context, userID string) (ProfileSnapshot, error)
}

// Notifier delivers match-found notifications. Delivery is best-effort and
// never unwinds a committed match.
type Notifier interface {
	MatchFound(ctx context.Context, recipientUserID string, match Match) error
}

// Service orchestrates ticket lifecycle and pairing behavior.
type Service struct {
	tickets    TicketStore
	matches    MatchStore
	profiles   ProfileLookup
	notifier   Notifier
	clock      func() time.Time
	newID      func() (string, error)
	sweepBatch int
	reapBatch  int
	logf       func(format string, args ...any)
}

// Options tunes optional service behavior; zero values select defaults.
type Options struct {
	SweepBatchSize int
	ReapBatchSize  int
	Clock          func() time.Time
	NewID          func() (string, error)
	Logf           func(format string, args ...any)
}

// NewService constructs matchmaking domain use-cases.
func NewService(tickets TicketStore, matches MatchStore, profiles ProfileLookup, notifier Notifier, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = id.NewID
	}
	sweepBatch := opts.SweepBatchSize
	if sweepBatch <= 0 {
		sweepBatch = DefaultSweepBatchSize
	}
	reapBatch := opts.ReapBatchSize
	if reapBatch <= 0 {
		reapBatch = DefaultReapBatchSize
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Service{
		tickets:    tickets,
		matches:    matches,
		profiles:   profiles,
		notifier:   notifier,
		clock:      clock,
		newID:      newID,
		sweepBatch: sweepBatch,
		reapBatch:  reapBatch,
		logf:       logf,
	}
}

// CreateTicketInput is one raw ticket request before normalization.
type CreateTicketInput struct {
	UserID         string
	Game           string
	Region         string
	GameMode       string
	SkillLevel     string
	Roles          []string
	Language       string
	MicRequired    bool
	MaxWaitSeconds int
}

// CreateTicket validates and persists a new active ticket, then runs one
// immediate pairing pass over the ticket's bucket. The returned ticket
// reflects the post-pass state, so it may already be matched.
func (s *Service) CreateTicket(ctx context.Context, input CreateTicketInput) (Ticket, error) {
	if s == nil || s.tickets == nil || s.matches == nil {
		return Ticket{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Ticket{}, ErrIDGeneratorNotConfigured
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return Ticket{}, ErrCallerRequired
	}

	criteria, err := normalizeCriteria(input)
	if err != nil {
		return Ticket{}, err
	}

	if _, err := s.tickets.GetActiveTicketByUser(ctx, userID); err == nil {
		return Ticket{}, ErrActiveTicketExists
	} else if !errors.Is(err, ErrTicketNotFound) {
		return Ticket{}, err
	}

	if s.profiles == nil {
		return Ticket{}, fmt.Errorf("%w: profile lookup is not configured", ErrProfileUnavailable)
	}
	snapshot, err := s.profiles.ProfileByID(ctx, userID)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}

	ticketID, err := s.newID()
	if err != nil {
		return Ticket{}, err
	}
	now := s.nowUTC()
	ticket := Ticket{
		ID:          ticketID,
		UserID:      userID,
		Snapshot:    snapshot,
		Game:        criteria.game,
		Region:      criteria.region,
		GameMode:    criteria.gameMode,
		Skill:       criteria.skill,
		Roles:       criteria.roles,
		Language:    criteria.language,
		MicRequired: input.MicRequired,
		MaxWait:     criteria.maxWait,
		Status:      TicketStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(criteria.maxWait),
	}
	if err := s.tickets.PutTicket(ctx, ticket); err != nil {
		return Ticket{}, err
	}

	// One synchronous pairing pass over the new ticket's bucket. The caller
	// gets the ticket either way; a hit is announced by notification.
	if err := s.matchNewTicket(ctx, ticket); err != nil {
		s.logf("matchmaking: immediate pass for ticket %s: %v", ticket.ID, err)
	}

	current, err := s.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		return ticket, nil
	}
	return current, nil
}

// GetTicket loads one ticket for its owner.
func (s *Service) GetTicket(ctx context.Context, ticketID string, callerID string) (Ticket, error) {
	if s == nil || s.tickets == nil {
		return Ticket{}, ErrStoreNotConfigured
	}
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return Ticket{}, ErrCallerRequired
	}
	ticket, err := s.tickets.GetTicket(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return Ticket{}, err
	}
	if ticket.UserID != callerID {
		return Ticket{}, ErrTicketNotOwner
	}
	return ticket, nil
}

// CancelTicket transitions an owned active ticket to cancelled. The close is
// status-guarded, so a cancel that races a concurrent match loses cleanly and
// reports ErrTicketNotActive.
func (s *Service) CancelTicket(ctx context.Context, ticketID string, callerID string) error {
	if s == nil || s.tickets == nil {
		return ErrStoreNotConfigured
	}
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return ErrCallerRequired
	}
	ticket, err := s.tickets.GetTicket(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return err
	}
	if ticket.UserID != callerID {
		return ErrTicketNotOwner
	}
	if ticket.Status != TicketStatusActive {
		return ErrTicketNotActive
	}
	return s.tickets.CloseTicket(ctx, ticket.ID, TicketStatusCancelled, s.nowUTC())
}

// GetMatch loads one match for either participant.
func (s *Service) GetMatch(ctx context.Context, matchID string, callerID string) (Match, error) {
	if s == nil || s.matches == nil {
		return Match{}, ErrStoreNotConfigured
	}
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return Match{}, ErrCallerRequired
	}
	match, err := s.matches.GetMatch(ctx, strings.TrimSpace(matchID))
	if err != nil {
		return Match{}, err
	}
	if !match.Participant(callerID) {
		return Match{}, ErrMatchNotParticipant
	}
	return match, nil
}

// SweepReport summarizes one pairing sweep.
type SweepReport struct {
	Scanned int
	Buckets int
	Paired  int
}

// SweepAndPair loads one bounded batch of active tickets in creation order,
// buckets them, and commits every first-fit pair it finds. Zero pairs is a
// normal outcome. Tickets outside the batch window wait for a later run.
func (s *Service) SweepAndPair(ctx context.Context) (SweepReport, error) {
	if s == nil || s.tickets == nil || s.matches == nil {
		return SweepReport{}, ErrStoreNotConfigured
	}
	now := s.nowUTC()
	batch, err := s.tickets.ListActiveTickets(ctx, now, s.sweepBatch)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list active tickets: %w", err)
	}

	report := SweepReport{Scanned: len(batch)}
	keys, buckets := bucketTickets(batch)
	for _, key := range keys {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		report.Buckets++
		for _, pair := range findPairs(members) {
			committed, err := s.commitMatch(ctx, pair[0], pair[1])
			if err != nil {
				return report, err
			}
			if committed {
				report.Paired++
			}
		}
	}
	return report, nil
}

// ReapReport summarizes one expiration run.
type ReapReport struct {
	Expired int
}

// ReapExpired closes a bounded batch of active tickets whose deadline has
// passed. A ticket that was matched or cancelled since the batch was read is
// skipped, not an error.
func (s *Service) ReapExpired(ctx context.Context) (ReapReport, error) {
	if s == nil || s.tickets == nil {
		return ReapReport{}, ErrStoreNotConfigured
	}
	now := s.nowUTC()
	overdue, err := s.tickets.ListExpiredActiveTickets(ctx, now, s.reapBatch)
	if err != nil {
		return ReapReport{}, fmt.Errorf("list expired tickets: %w", err)
	}

	var report ReapReport
	for _, ticket := range overdue {
		if err := s.tickets.CloseTicket(ctx, ticket.ID, TicketStatusExpired, now); err != nil {
			if errors.Is(err, ErrTicketNotActive) || errors.Is(err, ErrTicketNotFound) {
				continue
			}
			return report, fmt.Errorf("expire ticket %s: %w", ticket.ID, err)
		}
		report.Expired++
	}
	return report, nil
}

// matchNewTicket scans the new ticket's bucket for the first compatible
// active candidate and tries to commit a pairing with it.
func (s *Service) matchNewTicket(ctx context.Context, ticket Ticket) error {
	now := s.nowUTC()
	candidates, err := s.tickets.ListActiveTicketsByBucket(ctx, ticket.Bucket(), now, s.sweepBatch)
	if err != nil {
		return fmt.Errorf("list bucket candidates: %w", err)
	}
	for _, candidate := range candidates {
		if candidate.ID == ticket.ID {
			continue
		}
		if !Compatible(candidate, ticket) {
			continue
		}
		committed, err := s.commitMatch(ctx, candidate, ticket)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return nil
}

// commitMatch re-reads both tickets and commits a match when both are still
// active and compatible. Losing the commit race to another matcher or a
// cancel is a clean abort, not an error.
func (s *Service) commitMatch(ctx context.Context, a Ticket, b Ticket) (bool, error) {
	first, err := s.tickets.GetTicket(ctx, a.ID)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return false, nil
		}
		return false, err
	}
	second, err := s.tickets.GetTicket(ctx, b.ID)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return false, nil
		}
		return false, err
	}
	if first.Status != TicketStatusActive || second.Status != TicketStatusActive {
		return false, nil
	}
	if !Compatible(first, second) {
		return false, nil
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		first, second = second, first
	}

	matchID, err := s.newID()
	if err != nil {
		return false, err
	}
	match := Match{
		ID:            matchID,
		Ticket1ID:     first.ID,
		Ticket2ID:     second.ID,
		User1ID:       first.UserID,
		User2ID:       second.UserID,
		User1Snapshot: first.Snapshot,
		User2Snapshot: second.Snapshot,
		Game:          first.Game,
		Region:        first.Region,
		GameMode:      first.GameMode,
		Skill1:        first.Skill,
		Skill2:        second.Skill,
		Language:      matchLanguage(first.Language, second.Language),
		Status:        MatchStatusMatched,
		CreatedAt:     s.nowUTC(),
	}
	if err := s.matches.CreateMatch(ctx, match); err != nil {
		if errors.Is(err, ErrTicketNotActive) || errors.Is(err, ErrTicketNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("create match: %w", err)
	}

	s.notifyMatch(ctx, match)
	return true, nil
}

// notifyMatch fans out one notification per participant. The match is the
// durable fact; delivery failures are logged and swallowed.
func (s *Service) notifyMatch(ctx context.Context, match Match) {
	if s.notifier == nil {
		return
	}
	for _, recipient := range []string{match.User1ID, match.User2ID} {
		if err := s.notifier.MatchFound(ctx, recipient, match); err != nil {
			s.logf("matchmaking: notify %s about match %s: %v", recipient, match.ID, err)
		}
	}
}

type ticketCriteria struct {
	game     string
	region   string
	gameMode string
	skill    SkillLevel
	roles    RolePreference
	language Tag
	maxWait  time.Duration
}

func normalizeCriteria(input CreateTicketInput) (ticketCriteria, error) {
	var criteria ticketCriteria

	criteria.game = strings.ToLower(strings.TrimSpace(input.Game))
	if criteria.game == "" {
		return ticketCriteria{}, ErrGameRequired
	}
	criteria.region = strings.ToLower(strings.TrimSpace(input.Region))
	if criteria.region == "" {
		return ticketCriteria{}, ErrRegionRequired
	}
	criteria.gameMode = strings.ToLower(strings.TrimSpace(input.GameMode))
	if criteria.gameMode == "" {
		return ticketCriteria{}, ErrGameModeRequired
	}

	skill, err := ParseSkillLevel(input.SkillLevel)
	if err != nil {
		return ticketCriteria{}, err
	}
	criteria.skill = skill

	roles, err := ParseRolePreference(input.Roles)
	if err != nil {
		return ticketCriteria{}, err
	}
	criteria.roles = roles

	language, err := ParseTag(input.Language)
	if err != nil {
		return ticketCriteria{}, err
	}
	criteria.language = language

	switch {
	case input.MaxWaitSeconds < 0:
		return ticketCriteria{}, ErrMaxWaitInvalid
	case input.MaxWaitSeconds == 0:
		criteria.maxWait = DefaultMaxWait
	default:
		criteria.maxWait = time.Duration(input.MaxWaitSeconds) * time.Second
		if criteria.maxWait > MaxWaitCeiling {
			return ticketCriteria{}, ErrMaxWaitInvalid
		}
	}

	return criteria, nil
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
