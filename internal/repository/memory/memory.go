// Package memory provides mutex-guarded in-memory implementations of the repository interfaces.
// They follow the same contracts as the Postgres repositories and back the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
)

// UserStore is an in-memory repository.UserRepository
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (s *UserStore) conflict(u *domain.User) error {
	for _, existing := range s.users {
		if existing.ID == u.ID || existing.IsDeleted() || u.IsDeleted() {
			continue
		}
		if u.Email != nil && existing.Email != nil && *existing.Email == *u.Email {
			return fmt.Errorf("user with email %s already exists: %w", *u.Email, repository.ErrDuplicateEmail)
		}
		if u.Username != nil && existing.Username != nil && *existing.Username == *u.Username {
			return fmt.Errorf("user with username already exists: %w", repository.ErrDuplicateUsername)
		}
	}
	return nil
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := s.conflict(user); err != nil {
		return err
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if !u.IsDeleted() && u.Email != nil && *u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user with email %s not found: %w", email, repository.ErrNotFound)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted() {
		return nil, fmt.Errorf("user with id %s not found: %w", id, repository.ErrNotFound)
	}
	return copyUser(u), nil
}

func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user with id %s not found: %w", user.ID, repository.ErrNotFound)
	}
	if err := s.conflict(user); err != nil {
		return err
	}

	user.UpdatedAt = time.Now()
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *UserStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", userID, repository.ErrNotFound)
	}
	u.LastLoginAt = &at
	return nil
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.IsDeleted() || u.EmailVerified {
		return false, nil
	}
	u.EmailVerified = true
	u.UpdatedAt = at
	return true, nil
}

func (s *UserStore) List(ctx context.Context, q domain.ListUsersQuery) ([]*domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))

	var matched []*domain.User
	for _, u := range s.users {
		if u.IsDeleted() {
			continue
		}
		if q.EmailVerified != nil && u.EmailVerified != *q.EmailVerified {
			continue
		}
		if q.IsActive != nil && u.IsActive != *q.IsActive {
			continue
		}
		if search != "" && !matchesSearch(u, search) {
			continue
		}
		matched = append(matched, copyUser(u))
	}

	desc := !strings.EqualFold(q.SortOrder, "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		less, equal := compareUsers(matched[i], matched[j], q.SortBy)
		if equal {
			return matched[i].ID < matched[j].ID
		}
		if desc {
			return !less
		}
		return less
	})

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func matchesSearch(u *domain.User, search string) bool {
	fields := []string{u.FullName}
	if u.Email != nil {
		fields = append(fields, *u.Email)
	}
	if u.Username != nil {
		fields = append(fields, *u.Username)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func compareUsers(a, b *domain.User, sortBy string) (less, equal bool) {
	switch sortBy {
	case "full_name":
		return a.FullName < b.FullName, a.FullName == b.FullName
	case "email":
		return a.EmailAddress() < b.EmailAddress(), a.EmailAddress() == b.EmailAddress()
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
	case "last_login_at":
		var ta, tb time.Time
		if a.LastLoginAt != nil {
			ta = *a.LastLoginAt
		}
		if b.LastLoginAt != nil {
			tb = *b.LastLoginAt
		}
		return ta.Before(tb), ta.Equal(tb)
	default:
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
}

// TokenStore is an in-memory repository.TokenRepository keyed by token hash
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

// NewTokenStore creates an empty refresh token store
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*domain.RefreshToken)}
}

func copyRefreshToken(t *domain.RefreshToken) *domain.RefreshToken {
	c := *t
	c.Token = ""
	return &c
}

func (s *TokenStore) Create(ctx context.Context, token *domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.TokenHash]; ok {
		return fmt.Errorf("token with hash already exists: %w", repository.ErrDuplicateToken)
	}
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	s.tokens[token.TokenHash] = copyRefreshToken(token)
	return nil
}

func (s *TokenStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("token with hash not found: %w", repository.ErrNotFound)
	}
	return copyRefreshToken(t), nil
}

func (s *TokenStore) GetValidByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tokens []*domain.RefreshToken
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsValid(now) {
			tokens = append(tokens, copyRefreshToken(t))
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens, nil
}

func (s *TokenStore) Revoke(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok || !t.IsValid(now) {
		return false, nil
	}
	revoke(t, now)
	return true, nil
}

func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsValid(now) {
			revoke(t, now)
			n++
		}
	}
	return n, nil
}

func (s *TokenStore) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tokens {
		if !t.Revoked && !now.Before(t.ExpiresAt) {
			revoke(t, now)
			n++
		}
	}
	return n, nil
}

func revoke(t *domain.RefreshToken, now time.Time) {
	t.Revoked = true
	at := now
	t.RevokedAt = &at
}

// VerificationTokenStore is an in-memory repository.VerificationTokenRepository
type VerificationTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.VerificationToken
	users  repository.UserRepository
}

// NewVerificationTokenStore creates an empty verification token store whose tokens verify users in users
func NewVerificationTokenStore(users repository.UserRepository) *VerificationTokenStore {
	return &VerificationTokenStore{
		tokens: make(map[string]*domain.VerificationToken),
		users:  users,
	}
}

func (s *VerificationTokenStore) Create(ctx context.Context, token *domain.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.TokenHash]; ok {
		return fmt.Errorf("verification token with hash already exists: %w", repository.ErrDuplicateToken)
	}
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	c := *token
	c.Token = ""
	s.tokens[token.TokenHash] = &c
	return nil
}

func (s *VerificationTokenStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("verification token not found: %w", repository.ErrNotFound)
	}
	c := *t
	return &c, nil
}

// ConsumeAndVerify spends the token only once the user store accepted the verification
func (s *VerificationTokenStore) ConsumeAndVerify(ctx context.Context, tokenHash string, now time.Time) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok || !t.IsUsable(now) {
		return false, false, nil
	}

	verified, err := s.users.MarkEmailVerified(ctx, t.UserID, now)
	if err != nil {
		return false, false, err
	}

	at := now
	t.UsedAt = &at
	return true, verified, nil
}

var (
	_ repository.UserRepository              = (*UserStore)(nil)
	_ repository.TokenRepository             = (*TokenStore)(nil)
	_ repository.VerificationTokenRepository = (*VerificationTokenStore)(nil)
)
