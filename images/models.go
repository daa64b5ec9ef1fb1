package images

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Image is a stored gallery image. The binary payload lives in blob
// storage; this record keeps the serving URL and the storage key needed
// to delete it later.
type Image struct {
	bun.BaseModel `bun:"table:images,alias:img"`

	ID         uuid.UUID  `bun:"id,pk,notnull" json:"id"`
	URL        string     `bun:"url,notnull" json:"url"`
	PublicID   string     `bun:"public_id,notnull" json:"public_id"`
	UploadedBy uuid.UUID  `bun:"uploaded_by,notnull" json:"uploaded_by"`
	CreatedAt  *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt  *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}
