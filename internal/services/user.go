package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/boogle-events/apiserver/internal/store"
	"github.com/boogle-events/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo       UserRepository
	media      *MediaService
	bcryptCost int
}

type UserServiceOption func(*UserService)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) UserServiceOption {
	return func(s *UserService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func NewUserService(repo UserRepository, media *MediaService, opts ...UserServiceOption) *UserService {
	svc := &UserService{
		repo:       repo,
		media:      media,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RegisterInput is the payload of a new account.
type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Bio       *string `json:"bio"`
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// Register creates an account. Self-registration may pick the user or
// organizer role; anything else falls back to user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return types.User{}, fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if err := validateEmail(in.Email); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return types.User{}, err
	}

	role := types.RoleUser
	if in.Role == types.RoleOrganizer {
		role = types.RoleOrganizer
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, err
	}
	return user, nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile applies patch to the user's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (types.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if patch.FirstName != nil {
		name := strings.TrimSpace(*patch.FirstName)
		if name == "" {
			return types.User{}, fmt.Errorf("%w: first name cannot be empty", ErrValidation)
		}
		user.FirstName = name
	}
	if patch.LastName != nil {
		name := strings.TrimSpace(*patch.LastName)
		if name == "" {
			return types.User{}, fmt.Errorf("%w: last name cannot be empty", ErrValidation)
		}
		user.LastName = name
	}
	if patch.Bio != nil {
		user.Bio = strings.TrimSpace(*patch.Bio)
	}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if err := validateEmail(email); err != nil {
			return types.User{}, err
		}
		if email != user.Email {
			if _, err := s.repo.GetByEmail(ctx, email); err == nil {
				return types.User{}, ErrEmailTaken
			} else if !errors.Is(err, store.ErrNotFound) {
				return types.User{}, err
			}
			user.Email = email
		}
	}
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return types.User{}, err
		}
		hash, err := s.hashPassword(*patch.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}

	return s.save(ctx, user)
}

// SetAvatar hosts upload and makes it the user's profile image. The
// previous image is discarded.
func (s *UserService) SetAvatar(ctx context.Context, id string, upload Upload) (types.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	imageURL, err := s.media.UploadImage(ctx, FolderAvatars, upload)
	if err != nil {
		return types.User{}, err
	}

	previous := user.ProfileImageURL
	user.ProfileImageURL = imageURL
	updated, err := s.save(ctx, user)
	if err != nil {
		s.media.Discard(ctx, imageURL)
		return types.User{}, err
	}
	s.media.Discard(ctx, previous)
	return updated, nil
}

func (s *UserService) save(ctx context.Context, user types.User) (types.User, error) {
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, notFound(err, ErrUserNotFound)
	}
	return updated, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if len(password) > 72 {
		return fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
	}
	return nil
}
