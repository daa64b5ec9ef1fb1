package images

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Images is the gallery metadata store. Lookups key on the row id rather
// than the generic repository identifier, so the surface is redeclared
// instead of embedding repository.Repository.
type Images interface {
	Create(ctx context.Context, record *Image, criteria ...repository.InsertCriteria) (*Image, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Image, criteria ...repository.InsertCriteria) (*Image, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Image, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Image, error)

	List(ctx context.Context, opts ListOptions) ([]*Image, int, error)
	ListTx(ctx context.Context, tx bun.IDB, opts ListOptions) ([]*Image, int, error)

	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

// ListOptions control pagination and ordering for image listings
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// sortable columns exposed through the API, keyed by their payload names
var imageSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"url":       "url",
}

type imgs struct {
	repository.Repository[*Image]
	db *bun.DB
}

var _ Images = (*imgs)(nil)

func NewImagesRepository(db *bun.DB) Images {
	repo := repository.NewRepository[*Image](db, repository.ModelHandlers[*Image]{
		NewRecord: func() *Image { return &Image{} },
		GetID: func(i *Image) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Image, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
		GetIdentifier: func() string {
			return "public_id"
		},
	})

	return &imgs{
		Repository: repo,
		db:         db,
	}
}

func (r *imgs) Create(ctx context.Context, record *Image, criteria ...repository.InsertCriteria) (*Image, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *imgs) CreateTx(ctx context.Context, tx bun.IDB, record *Image, criteria ...repository.InsertCriteria) (*Image, error) {
	prepareImageDefaults(record)
	_, err := tx.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *imgs) GetByID(ctx context.Context, id uuid.UUID) (*Image, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *imgs) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Image, error) {
	record := &Image{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *imgs) List(ctx context.Context, opts ListOptions) ([]*Image, int, error) {
	return r.ListTx(ctx, r.db, opts)
}

func (r *imgs) ListTx(ctx context.Context, tx bun.IDB, opts ListOptions) ([]*Image, int, error) {
	opts = normalizeListOptions(opts)

	var records []*Image

	total, err := tx.NewSelect().
		Model(&records).
		OrderExpr("? ?", bun.Ident(imageSortColumns[opts.SortBy]), bun.Safe(strings.ToUpper(opts.SortOrder))).
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *imgs) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.DeleteByIDTx(ctx, r.db, id)
}

func (r *imgs) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Image)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Exec(ctx)

	if err != nil {
		return err
	}

	if res != nil {
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
	}

	return nil
}

func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Page < 1 {
		opts.Page = 1
	}

	if opts.Limit < 1 {
		opts.Limit = DefaultPageSize
	}

	if opts.Limit > MaxPageSize {
		opts.Limit = MaxPageSize
	}

	if _, ok := imageSortColumns[opts.SortBy]; !ok {
		opts.SortBy = "createdAt"
	}

	switch strings.ToLower(opts.SortOrder) {
	case "asc", "desc":
		opts.SortOrder = strings.ToLower(opts.SortOrder)
	default:
		opts.SortOrder = "desc"
	}

	return opts
}

func prepareImageDefaults(record *Image) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
