// Package services contains server-side business logic. UserService handles
// registration, credential checks and access token issuance.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"
)

// Hasher hashes and verifies secrets.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	Issue(u *models.User) (string, error)
}

// dummySecret is hashed when the service is built and verified against
// whenever no user matches, so both login failure paths cost one verification.
const dummySecret = "authkeeper-dummy-secret"

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	records     *users.Records
	hasher      Hasher
	issuer      TokenIssuer
	metrics     *metrics.Metrics
	log         logging.Logger
	dummyDigest string
}

func NewUserService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	records *users.Records,
	hasher Hasher,
	issuer TokenIssuer,
	mx *metrics.Metrics,
	log logging.Logger,
) *UserService {
	s := &UserService{
		db:          db,
		repomanager: m,
		records:     records,
		hasher:      hasher,
		issuer:      issuer,
		metrics:     mx,
		log:         log.With("module", "services.user"),
	}

	digest, err := hasher.Hash(dummySecret)
	if err != nil {
		s.log.Warn(context.Background(), "dummy digest unavailable, unknown-user logins will answer faster", "error", err)
	}
	s.dummyDigest = digest
	return s
}

// Register validates and stores a new user. It returns *users.ValidationError
// for bad input and common.ErrorAlreadyExists when the email is taken.
func (s *UserService) Register(ctx context.Context, reg users.Registration) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.records.Create(reg)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			s.metrics.Registration(metrics.OutcomeInvalid)
			return nil, err
		}
		s.metrics.Registration(metrics.OutcomeError)
		s.log.Error(ctx, "building user record failed", "error", err)
		return nil, fmt.Errorf("create record: %w", err)
	}

	var created *models.User
	err = dbx.InTx(ctx, s.db, nil, s.repomanager.Users, func(ctx context.Context, repo usersrepo.Repository) error {
		_, err := repo.FindOneByEncryptedField(ctx, usersrepo.FieldEmail, record.Email)
		switch {
		case err == nil:
			return common.ErrorAlreadyExists
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		created, err = repo.Insert(ctx, record)
		return err
	})

	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.metrics.Registration(metrics.OutcomeDuplicate)
			return nil, common.ErrorAlreadyExists
		}
		s.metrics.Registration(metrics.OutcomeError)
		s.log.Error(ctx, "storing user failed", "error", err)
		return nil, fmt.Errorf("%w: error creating user: %v", common.ErrorInternal, err)
	}

	s.metrics.Registration(metrics.OutcomeSuccess)
	s.log.Info(ctx, "user registered", "user_id", created.ID)
	return created, nil
}

// Authenticate returns the user whose email matches identifier and whose
// password matches secret. Every credential failure is common.ErrorUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, identifier, secret string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := s.records.LookupKey(identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user, err := s.repomanager.Users(s.db).FindOneByEncryptedField(ctx, usersrepo.FieldEmail, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(secret)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	ok, err := s.hasher.Verify(secret, user.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "stored password digest unusable", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// Login authenticates and returns a signed access token.
func (s *UserService) Login(ctx context.Context, identifier, secret string) (string, error) {
	user, err := s.Authenticate(ctx, identifier, secret)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.metrics.Login(metrics.OutcomeDenied)
		} else {
			s.metrics.Login(metrics.OutcomeError)
		}
		return "", err
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		s.log.Error(ctx, "issuing token failed", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	return token, nil
}

// Profile returns the public view of the user with id userID.
func (s *UserService) Profile(ctx context.Context, userID string) (*users.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	view, err := s.records.PublicView(user)
	if err != nil {
		s.log.Error(ctx, "decrypting user failed", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return view, nil
}

func (s *UserService) burnVerify(secret string) {
	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(secret, s.dummyDigest)
	}
}
