package services

import (
	"slices"
	"strings"

	"relun-backend/internal/models"
)

// CompleteThreshold is the score at which a profile counts as complete
const CompleteThreshold = 80

// ComputeCompleteness scores how many of the ten tracked user and profile
// fields are filled
func ComputeCompleteness(u *models.User, p *models.Profile) (int, bool) {
	fields := []bool{
		u.FullName != "",
		u.DateOfBirth != nil,
		u.Gender != "",
		u.Email != nil && *u.Email != "",
		u.Phone != nil && *u.Phone != "",
		p.Bio != "",
		p.City != "",
		p.Segment != "",
		p.LookingFor != "",
		len(p.Interests) > 0,
	}

	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	score := (filled*100 + len(fields)/2) / len(fields)
	return score, score >= CompleteThreshold
}

// applyCompleteness recomputes the derived fields of p in place
func applyCompleteness(u *models.User, p *models.Profile) {
	p.CompletenessScore, p.IsComplete = ComputeCompleteness(u, p)
}

// normalizeInterests trims, lowercases, deduplicates and sorts tags
func normalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// needsProfileCompletion reports whether onboarding is unfinished
func needsProfileCompletion(u *models.User, p *models.Profile) bool {
	return u.FullName == "" || u.DateOfBirth == nil || u.Gender == "" || p == nil || p.Segment == ""
}
