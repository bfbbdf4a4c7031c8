package resumes

import "context"

// OwnerLookup resolves the owner of a resume.
type OwnerLookup interface {
	Owner(ctx context.Context, id string) (string, error)
}

// Guard checks that a caller owns the resume it addresses.
type Guard struct {
	Owners OwnerLookup
}

// Authorize returns nil when callerID owns resumeID, ErrNotFound when the
// resume does not exist and ErrForbidden when someone else owns it.
func (g *Guard) Authorize(ctx context.Context, callerID, resumeID string) error {
	if resumeID == "" {
		return ErrNotFound
	}
	owner, err := g.Owners.Owner(ctx, resumeID)
	if err != nil {
		return err
	}
	if callerID == "" || owner != callerID {
		return ErrForbidden
	}
	return nil
}
