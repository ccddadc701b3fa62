package authkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunUserStore is the bun-backed UserStore. It works against any dialect
// bun supports; the test suite drives it with in-memory SQLite.
type BunUserStore struct {
	repo repository.Repository[*Identity]
	db   *bun.DB
}

func NewBunUserStore(db *bun.DB) *BunUserStore {
	handlers := repository.ModelHandlers[*Identity]{
		NewRecord: func() *Identity {
			return &Identity{}
		},
		GetID: func(record *Identity) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Identity, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}

	return &BunUserStore{
		repo: repository.NewRepository[*Identity](db, handlers),
		db:   db,
	}
}

func (s *BunUserStore) FindByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return s.findOne(ctx, "id", id)
}

func (s *BunUserStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	return s.findOne(ctx, "email", email)
}

func (s *BunUserStore) FindByVerificationCodeHash(ctx context.Context, hash string) (*Identity, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findOne(ctx, "verification_code_hash", hash)
}

func (s *BunUserStore) FindByResetCodeHash(ctx context.Context, hash string) (*Identity, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findOne(ctx, "reset_code_hash", hash)
}

func (s *BunUserStore) findOne(ctx context.Context, column string, value any) (*Identity, error) {
	record := &Identity{}
	err := s.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity lookup failed")
	}
	return record, nil
}

// Save inserts when the identity has no ID yet, updates otherwise.
func (s *BunUserStore) Save(ctx context.Context, identity *Identity) (*Identity, error) {
	if identity == nil {
		return nil, goerrors.New("cannot save nil identity", goerrors.CategoryBadInput)
	}

	identity.Email = NormalizeEmail(identity.Email)

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
		saved, err := s.repo.CreateTx(ctx, s.db, identity)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrDuplicateIdentity
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity insert failed")
		}
		return saved, nil
	}

	saved, err := s.repo.UpdateTx(ctx, s.db, identity, repository.UpdateByID(identity.ID.String()))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity update failed")
	}
	return saved, nil
}

func (s *BunUserStore) Remove(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.ID == uuid.Nil {
		return nil
	}

	_, err := s.db.NewDelete().
		Model(identity).
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "identity delete failed")
	}
	return nil
}

// InitSchema creates the identities table when missing. Meant for dev
// setups and tests; production schemas belong to migrations.
func (s *BunUserStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Identity)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create identities table")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
