package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/notes-service/internal/models"
	"github.com/avolkov/notes-service/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameTaken is returned by Register when the username exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password. The two cases are deliberately not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service handles business logic
type Service struct {
	repo *repository.Repository
	log  *logrus.Logger
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Register creates a new user with hashed password. The username is checked
// before the insert for the common case, but the unique constraint on the
// insert remains authoritative: concurrent registrations of the same name
// race past the pre-check and exactly one of them wins.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	if _, err := s.repo.FindUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Username)
	return user, nil
}

// Login verifies the credentials and returns the matching user
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.log.Infof("User logged in: %s", user.Username)
	return user, nil
}

// CreateNote creates a note owned by the given user, stamped with the
// current UTC time.
func (s *Service) CreateNote(ctx context.Context, userID int64, content string) (*models.Note, error) {
	note := &models.Note{
		Content:   content,
		CreatedAt: time.Now().UTC(),
		UserID:    userID,
	}

	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	s.log.Infof("Note %d created for user %d", note.ID, note.UserID)
	return note, nil
}
