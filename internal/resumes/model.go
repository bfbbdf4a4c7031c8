package resumes

import "time"

// Resume is the stored record describing one resume owned by a user.
type Resume struct {
	ID             string
	OwnerID        string
	Name           string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	TemplateType   string
	Color          string
	IsDeleted      bool
	ScreenshotURL  string
	ScreenshotURLs []string
}

// UpdateFields lists the mutable resume attributes. Nil fields are left untouched.
type UpdateFields struct {
	Name         *string
	TemplateType *string
	Color        *string
}

// Empty reports whether no field is set.
func (u UpdateFields) Empty() bool {
	return u.Name == nil && u.TemplateType == nil && u.Color == nil
}

// Caller identifies who issued a request.
type Caller struct {
	UserID    string
	Token     string
	RequestID string
}
