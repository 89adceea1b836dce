package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SkillLevel is the ordinal rank used for pairing, bronze(1) through conqueror(8).
type SkillLevel int

const (
	SkillBronze SkillLevel = iota + 1
	SkillSilver
	SkillGold
	SkillPlatinum
	SkillDiamond
	SkillCrown
	SkillAce
	SkillConqueror
)

var skillLevelNames = map[SkillLevel]string{
	SkillBronze:    "bronze",
	SkillSilver:    "silver",
	SkillGold:      "gold",
	SkillPlatinum:  "platinum",
	SkillDiamond:   "diamond",
	SkillCrown:     "crown",
	SkillAce:       "ace",
	SkillConqueror: "conqueror",
}

// Valid reports whether the level is on the 8-point scale.
func (s SkillLevel) Valid() bool {
	return s >= SkillBronze && s <= SkillConqueror
}

// String returns the lowercase rank name, or "unknown" off-scale.
func (s SkillLevel) String() string {
	if name, ok := skillLevelNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSkillLevel converts a rank name into its ordinal level.
func ParseSkillLevel(value string) (SkillLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for level, name := range skillLevelNames {
		if name == normalized {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrSkillLevelInvalid, value)
}

// WildcardTag is the request-level sentinel accepted for language and roles.
const WildcardTag = "any"

// Tag is a match criterion that is either a specific value or a wildcard.
type Tag struct {
	Any  bool
	Name string
}

// AnyTag returns the wildcard tag.
func AnyTag() Tag {
	return Tag{Any: true}
}

// NamedTag returns a tag for one specific value.
func NamedTag(name string) Tag {
	return Tag{Name: strings.ToLower(strings.TrimSpace(name))}
}

// ParseTag converts a request value into a tag, mapping the wildcard sentinel.
func ParseTag(value string) (Tag, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return Tag{}, ErrLanguageRequired
	}
	if normalized == WildcardTag {
		return AnyTag(), nil
	}
	return Tag{Name: normalized}, nil
}

// String renders the tag using the wildcard sentinel for Any.
func (t Tag) String() string {
	if t.Any {
		return WildcardTag
	}
	return t.Name
}

// RolePreference is the set of roles a player wants to fill. An empty set
// means no preference; Any matches every role.
type RolePreference struct {
	Any   bool
	Roles []string
}

// ParseRolePreference normalizes raw role tags, mapping the wildcard sentinel.
// Roles are lowercased, deduplicated, and sorted.
func ParseRolePreference(values []string) (RolePreference, error) {
	var pref RolePreference
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		role := strings.ToLower(strings.TrimSpace(value))
		if role == "" {
			return RolePreference{}, ErrRoleInvalid
		}
		if role == WildcardTag {
			pref.Any = true
			continue
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		pref.Roles = append(pref.Roles, role)
	}
	sort.Strings(pref.Roles)
	return pref, nil
}

// Empty reports whether the preference carries no constraint at all.
func (p RolePreference) Empty() bool {
	return !p.Any && len(p.Roles) == 0
}

// TicketStatus is the lifecycle state of a matchmaking ticket.
type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "active"
	TicketStatusMatched   TicketStatus = "matched"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusExpired   TicketStatus = "expired"
)

// Terminal reports whether no further transition may leave this status.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketStatusMatched, TicketStatusCancelled, TicketStatusExpired:
		return true
	}
	return false
}

// GameStats is a per-game performance summary frozen into a snapshot.
type GameStats struct {
	MatchesPlayed int
	Wins          int
	KDRatio       float64
}

// ProfileSnapshot is the denormalized profile captured at ticket creation.
// It is owned by the ticket and never refreshed.
type ProfileSnapshot struct {
	Username    string
	DisplayName string
	AvatarURL   string
	GameStats   map[string]GameStats
}

// Ticket is one user's open request to be paired with a compatible partner.
type Ticket struct {
	ID          string
	UserID      string
	Snapshot    ProfileSnapshot
	Game        string
	Region      string
	GameMode    string
	Skill       SkillLevel
	Roles       RolePreference
	Language    Tag
	MicRequired bool
	MaxWait     time.Duration
	Status      TicketStatus
	MatchID     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ClosedAt    *time.Time
}

// Bucket returns the compatibility-group key for this ticket.
func (t Ticket) Bucket() BucketKey {
	return BucketKey{Game: t.Game, Region: t.Region, GameMode: t.GameMode}
}

// Expired reports whether the ticket's wait deadline has passed.
func (t Ticket) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
