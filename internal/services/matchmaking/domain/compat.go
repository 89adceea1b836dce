package domain

// Compatible reports whether two tickets may be paired into a match. The
// check is symmetric and touches neither ticket.
//
// All rules must hold:
//   - same game, region, and game mode (the bucket key)
//   - skill levels at most one rank apart
//   - same language, unless either side is the wildcard
//   - identical mic requirement on both sides
//   - role sets that do not constrain each other (see rolesCompatible)
func Compatible(a, b Ticket) bool {
	if a.Game != b.Game || a.Region != b.Region || a.GameMode != b.GameMode {
		return false
	}
	if !skillAdjacent(a.Skill, b.Skill) {
		return false
	}
	if !languageCompatible(a.Language, b.Language) {
		return false
	}
	if a.MicRequired != b.MicRequired {
		return false
	}
	return rolesCompatible(a.Roles, b.Roles)
}

func skillAdjacent(a, b SkillLevel) bool {
	diff := int(a) - int(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func languageCompatible(a, b Tag) bool {
	if a.Any || b.Any {
		return true
	}
	return a.Name == b.Name
}

// rolesCompatible accepts any pairing where either side has no preference or
// carries the wildcard. Otherwise two tickets pair only when their preferred
// role sets are disjoint: tickets that share a preferred role never pair.
func rolesCompatible(a, b RolePreference) bool {
	if a.Empty() || b.Empty() {
		return true
	}
	if a.Any || b.Any {
		return true
	}
	return !rolesOverlap(a.Roles, b.Roles)
}

func rolesOverlap(a, b []string) bool {
	for _, roleA := range a {
		for _, roleB := range b {
			if roleA == roleB {
				return true
			}
		}
	}
	return false
}
