package domain

import "time"

// MatchStatus is the lifecycle state of a match record.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusDisputed  MatchStatus = "disputed"
)

// Match is the durable record pairing exactly two tickets. Result stays empty
// until the result-reporting flow fills it in.
type Match struct {
	ID            string
	Ticket1ID     string
	Ticket2ID     string
	User1ID       string
	User2ID       string
	User1Snapshot ProfileSnapshot
	User2Snapshot ProfileSnapshot
	Game          string
	Region        string
	GameMode      string
	Skill1        SkillLevel
	Skill2        SkillLevel
	Language      Tag
	Status        MatchStatus
	Result        string
	CreatedAt     time.Time
}

// Participant reports whether the user is one of the two matched players.
func (m Match) Participant(userID string) bool {
	return userID != "" && (m.User1ID == userID || m.User2ID == userID)
}

// matchLanguage picks the concrete language when only one side was specific.
func matchLanguage(a, b Tag) Tag {
	if a.Any {
		return b
	}
	return a
}
