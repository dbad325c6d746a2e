package engine

import (
	"sort"
	"strings"

	"civiclens-be/models"
)

// The projector is the single source of truth for state derived from an
// issue. Handlers render its output and never re-derive status themselves.

// StatusLabel returns the issue's status: the highest completed stage wins.
func StatusLabel(issue *models.Issue) models.Stage {
	return CurrentStage(&issue.Progress)
}

// CountsByStatus maps each of the four labels to the number of issues
// carrying it. Every label is present even when its count is zero, so the
// counts always sum to len(issues).
func CountsByStatus(issues []models.Issue) map[models.Stage]int {
	counts := make(map[models.Stage]int, len(stageOrder))
	for _, s := range stageOrder {
		counts[s] = 0
	}
	for i := range issues {
		counts[StatusLabel(&issues[i])]++
	}
	return counts
}

// FilterByStatus keeps issues whose canonical label matches.
func FilterByStatus(issues []models.Issue, label models.Stage) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	for i := range issues {
		if StatusLabel(&issues[i]) == label {
			out = append(out, issues[i])
		}
	}
	return out
}

// FilterByText keeps issues whose title or description contains the search
// term, case-insensitively.
func FilterByText(issues []models.Issue, search string) []models.Issue {
	needle := strings.ToLower(search)
	out := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if strings.Contains(strings.ToLower(issue.Title), needle) ||
			strings.Contains(strings.ToLower(issue.Description), needle) {
			out = append(out, issue)
		}
	}
	return out
}

// SortKey selects the list ordering.
type SortKey string

const (
	SortNewest      SortKey = "newest"
	SortOldest      SortKey = "oldest"
	SortCredibility SortKey = "credibility"
)

// Sort returns a sorted copy; the input slice is left untouched.
func Sort(issues []models.Issue, key SortKey) []models.Issue {
	out := make([]models.Issue, len(issues))
	copy(out, issues)
	switch key {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	case SortCredibility:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Verification.NetCredibility() > out[j].Verification.NetCredibility()
		})
	case SortNewest:
		fallthrough
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}
