package organization

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/auth"
)

var (
	ErrNotFound           = errors.New("organization not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

type Service struct {
	repo     Repository
	location *time.Location
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		location: location,
	}
}

// Signup creates the tenant root and its first admin user in one step.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (Organization, User, error) {
	now := time.Now().In(s.location)

	org := Organization{
		ID:        primitive.NewObjectID().Hex(),
		Name:      strings.TrimSpace(req.OrganizationName),
		Slug:      Slugify(req.OrganizationName),
		Plan:      "free",
		Credits:   0,
		Features:  map[string]bool{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Organization{}, User{}, err
	}

	user := User{
		ID:             primitive.NewObjectID().Hex(),
		OrganizationID: org.ID,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          strings.TrimSpace(req.Phone),
		PasswordHash:   hash,
		Role:           RoleAdmin,
		CreatedAt:      now,
	}

	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		return Organization{}, User{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Organization{}, User{}, ErrEmailTaken
		}
		return Organization{}, User{}, err
	}

	return org, user, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, orgID string) (Organization, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return org, nil
}

func (s *Service) UpdateFeatures(ctx context.Context, orgID string, features map[string]bool) (Organization, error) {
	updated, err := s.repo.SetFeatures(ctx, orgID, features, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return updated, nil
}

func (s *Service) CreateUser(ctx context.Context, orgID string, req CreateUserRequest) (User, error) {
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !IsValidRole(role) {
		return User{}, ErrInvalidRole
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:             primitive.NewObjectID().Hex(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          strings.TrimSpace(req.Phone),
		PasswordHash:   hash,
		Role:           role,
		CreatedAt:      time.Now().In(s.location),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, orgID string) ([]User, error) {
	return s.repo.ListUsers(ctx, orgID)
}

func (s *Service) GetUser(ctx context.Context, orgID, id string) (User, error) {
	user, err := s.repo.GetUser(ctx, orgID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
var multiDash = regexp.MustCompile(`-+`)

func Slugify(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, " ", "-")
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
