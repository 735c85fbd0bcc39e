package models

import "time"

// ContactMethod is the parent's preferred notification channel.
type ContactMethod string

const (
	ContactMethodEmail ContactMethod = "email"
	ContactMethodPhone ContactMethod = "phone"
)

// Student represents a learner managed by a teacher. Parent contact details
// feed fee reminders.
type Student struct {
	ID               string        `db:"id" json:"id"`
	FullName         string        `db:"full_name" json:"full_name"`
	Email            *string       `db:"email" json:"email,omitempty"`
	Phone            *string       `db:"phone" json:"phone,omitempty"`
	ParentName       string        `db:"parent_name" json:"parent_name"`
	ParentEmail      string        `db:"parent_email" json:"parent_email"`
	ParentPhone      string        `db:"parent_phone" json:"parent_phone"`
	PreferredContact ContactMethod `db:"preferred_contact" json:"preferred_contact"`
	Active           bool          `db:"active" json:"active"`
	CreatedBy        string        `db:"created_by" json:"created_by"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	CreatedBy string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
