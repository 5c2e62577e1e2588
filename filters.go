package actionkit

import "time"

// DefaultAssignmentLimit caps assignment queries without an explicit limit.
const DefaultAssignmentLimit = 100

// AssignmentFilter provides options for filtering special assignment queries.
type AssignmentFilter struct {
	// Filter by target
	TargetID string

	// Filter by authority holding the assignment
	AuthorityID string

	// Filter by role identifiers (any of)
	Roles []string

	// Filter by creation time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAssignmentFilter creates a new AssignmentFilter with default values.
func NewAssignmentFilter() AssignmentFilter {
	return AssignmentFilter{
		Limit: DefaultAssignmentLimit,
	}
}

// WithTarget sets the target filter.
func (f AssignmentFilter) WithTarget(targetID string) AssignmentFilter {
	f.TargetID = targetID
	return f
}

// WithAuthority sets the authority filter.
func (f AssignmentFilter) WithAuthority(authorityID string) AssignmentFilter {
	f.AuthorityID = authorityID
	return f
}

// WithRoles sets the role filter.
func (f AssignmentFilter) WithRoles(roles ...string) AssignmentFilter {
	f.Roles = append([]string(nil), roles...)
	return f
}

// WithTimeRange sets the time range filter.
func (f AssignmentFilter) WithTimeRange(since, until time.Time) AssignmentFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithSince sets the start time filter.
func (f AssignmentFilter) WithSince(since time.Time) AssignmentFilter {
	f.Since = since
	return f
}

// WithUntil sets the end time filter.
func (f AssignmentFilter) WithUntil(until time.Time) AssignmentFilter {
	f.Until = until
	return f
}

// WithPagination sets both limit and offset.
func (f AssignmentFilter) WithPagination(limit, offset int) AssignmentFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// Matches reports whether an assignment satisfies the filter, ignoring pagination.
func (f AssignmentFilter) Matches(a *AuthorityRoleAssignment) bool {
	if f.TargetID != "" && a.TargetID != f.TargetID {
		return false
	}
	if f.AuthorityID != "" && a.AuthorityID != f.AuthorityID {
		return false
	}
	if len(f.Roles) > 0 {
		found := false
		for _, r := range f.Roles {
			if r == a.Role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && a.CreatedAt.After(f.Until) {
		return false
	}
	return true
}
