package resumes

import (
	"context"
	"time"
)

// Document names a JSON sub-document stored alongside a resume.
type Document string

const (
	DocumentContent Document = fieldContent
	DocumentChat    Document = fieldChat
)

// Repo persists resume records and their sub-documents.
type Repo interface {
	Create(ctx context.Context, r Resume) error
	Get(ctx context.Context, id string) (Resume, error)
	Owner(ctx context.Context, id string) (string, error)
	ListByOwner(ctx context.Context, ownerID string, trashed bool) ([]Resume, error)
	Update(ctx context.Context, id string, fields UpdateFields, at time.Time) (Resume, error)
	SetDeleted(ctx context.Context, id string, deleted bool) (Resume, error)
	SetScreenshots(ctx context.Context, id string, urls []string) error
	Delete(ctx context.Context, ownerID, id string) error

	GetDocument(ctx context.Context, ownerID, id string, doc Document) ([]byte, error)
	// PutDocument replaces a sub-document and reports whether the stored bytes changed.
	PutDocument(ctx context.Context, ownerID, id string, doc Document, body []byte) (bool, error)
	DeleteDocument(ctx context.Context, ownerID, id string, doc Document) error
}
