package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyRole indicates the role name is empty
	ErrEmptyRole = errors.New("role cannot be empty")

	// ErrRoleTooLong indicates the role name exceeds MaxRoleLength
	ErrRoleTooLong = errors.New("role must be at most 50 characters")

	// ErrInvalidRoleFormat indicates the role contains unsupported characters
	ErrInvalidRoleFormat = errors.New("role can only contain letters, digits, spaces, hyphens and underscores")
)

// MaxRoleLength is the longest accepted role name after sanitizing
const MaxRoleLength = 50

// roleRegex matches a sanitized role: lower-case words joined by underscores
var roleRegex = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// separatorRegex matches runs of separators between role words
var separatorRegex = regexp.MustCompile(`[\s\-_]+`)

// RoleValidator normalises shift role names so that "Door Supervisor",
// "door-supervisor" and "door_supervisor" are the same role
type RoleValidator struct{}

// NewRoleValidator creates a new role validator instance
func NewRoleValidator() *RoleValidator {
	return &RoleValidator{}
}

// Validate returns the sanitized role or an error if it is unusable
func (v *RoleValidator) Validate(role string) (string, error) {
	if strings.TrimSpace(role) == "" {
		return "", ErrEmptyRole
	}

	sanitized := v.Sanitize(role)
	if sanitized == "" {
		return "", ErrInvalidRoleFormat
	}
	if !roleRegex.MatchString(sanitized) {
		return "", ErrInvalidRoleFormat
	}
	if len(sanitized) > MaxRoleLength {
		return "", ErrRoleTooLong
	}

	return sanitized, nil
}

// Sanitize lower-cases the role and joins its words with underscores
func (v *RoleValidator) Sanitize(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	role = separatorRegex.ReplaceAllString(role, "_")
	return strings.Trim(role, "_")
}

// IsValid is a convenience method that returns true if role is valid
func (v *RoleValidator) IsValid(role string) bool {
	_, err := v.Validate(role)
	return err == nil
}

// ValidateMultiple validates several roles at once.
// Returns a map of role to error (nil if valid).
func (v *RoleValidator) ValidateMultiple(roles []string) map[string]error {
	results := make(map[string]error, len(roles))
	for _, role := range roles {
		_, err := v.Validate(role)
		results[role] = err
	}
	return results
}
