package service

import (
	"context"
	"sync"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/provider"
	"github.com/aichukanov/docta-auth/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// In-memory repository fakes mirroring the store semantics the services
// depend on, including the conditional writes.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, userID, displayName, photoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	if photoURL != "" {
		u.PhotoURL = photoURL
	}
	return nil
}

func (r *fakeUserRepo) UpdateEmail(_ context.Context, userID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.Email == email && id != userID {
			return repository.ErrDuplicateEmail
		}
	}

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Email = email
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsEmailVerified = true
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

type fakeOAuthRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.OAuthAccount // keyed by provider + "/" + provider user id
}

func newFakeOAuthRepo() *fakeOAuthRepo {
	return &fakeOAuthRepo{accounts: make(map[string]*domain.OAuthAccount)}
}

func (r *fakeOAuthRepo) Link(_ context.Context, account *domain.OAuthAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := account.Provider + "/" + account.ProviderUserID
	if existing, ok := r.accounts[key]; ok {
		existing.AccessToken = account.AccessToken
		if account.RefreshToken != nil {
			existing.RefreshToken = account.RefreshToken
		}
		existing.TokenExpiresAt = account.TokenExpiresAt
		existing.UpdatedAt = time.Now()
		*account = *existing
		return nil
	}

	isPrimary := true
	for _, a := range r.accounts {
		if a.UserID == account.UserID {
			isPrimary = false
			break
		}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.IsPrimary = isPrimary
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt

	clone := *account
	r.accounts[key] = &clone
	return nil
}

func (r *fakeOAuthRepo) GetByProvider(_ context.Context, providerName, providerUserID string) (*domain.OAuthAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[providerName+"/"+providerUserID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *fakeOAuthRepo) GetByUserID(_ context.Context, userID string) ([]*domain.OAuthAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.OAuthAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeOAuthRepo) SetPrimary(_ context.Context, userID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.OAuthAccount
	for _, a := range r.accounts {
		if a.UserID == userID && a.ID == accountID {
			target = a
		}
	}
	if target == nil {
		return repository.ErrNotFound
	}

	for _, a := range r.accounts {
		if a.UserID == userID {
			a.IsPrimary = false
		}
	}
	target.IsPrimary = true
	return nil
}

func (r *fakeOAuthRepo) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, a := range r.accounts {
		if a.ID == accountID {
			delete(r.accounts, key)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeOAuthRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.AuthToken // keyed by token hash
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.AuthToken)}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *domain.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.TokenHash]; ok {
		return repository.ErrDuplicateToken
	}

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	token.CreatedAt = time.Now()

	clone := *token
	r.tokens[token.TokenHash] = &clone
	return nil
}

func (r *fakeTokenRepo) GetByHash(_ context.Context, tokenHash string) (*domain.AuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTokenRepo) Consume(_ context.Context, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok || t.Consumed {
		return false, nil
	}
	t.Consumed = true
	return true, nil
}

func (r *fakeTokenRepo) DeleteUnconsumed(_ context.Context, userID string, kind domain.TokenKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, t := range r.tokens {
		if t.UserID == userID && t.Kind == kind && !t.Consumed {
			delete(r.tokens, hash)
		}
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for hash, t := range r.tokens {
		if now.After(t.ExpiresAt) {
			delete(r.tokens, hash)
		}
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteCreatedBefore(_ context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*domain.LoginHistoryEntry
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.LoginHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	clone := *entry
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *fakeHistoryRepo) CountFailedSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.entries {
		if e.UserID == userID && !e.Success && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeHistoryRepo) LastSuccessful(_ context.Context, userID string) (*domain.LoginHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last *domain.LoginHistoryEntry
	for _, e := range r.entries {
		if e.UserID == userID && e.Success {
			if last == nil || e.CreatedAt.After(last.CreatedAt) {
				last = e
			}
		}
	}
	if last == nil {
		return nil, repository.ErrNotFound
	}
	clone := *last
	return &clone, nil
}

func (r *fakeHistoryRepo) MethodStats(_ context.Context, userID string) ([]*domain.LoginMethodStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byMethod := make(map[string]*domain.LoginMethodStat)
	for _, e := range r.entries {
		if e.UserID != userID || !e.Success {
			continue
		}
		stat, ok := byMethod[e.Method]
		if !ok {
			stat = &domain.LoginMethodStat{Method: e.Method}
			byMethod[e.Method] = stat
		}
		stat.Count++
		if stat.LastUsed == nil || e.CreatedAt.After(*stat.LastUsed) {
			created := e.CreatedAt
			stat.LastUsed = &created
		}
	}

	var out []*domain.LoginMethodStat
	for _, stat := range byMethod {
		out = append(out, stat)
	}
	return out, nil
}

func (r *fakeHistoryRepo) ListRecent(_ context.Context, userID string, limit int) ([]*domain.LoginHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LoginHistoryEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			clone := *r.entries[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) rows(userID string) []*domain.LoginHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LoginHistoryEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out
}

// fakeProvider implements provider.Provider without any network calls and
// counts how often the token endpoint was hit.
type fakeProvider struct {
	mu            sync.Mutex
	name          string
	profile       provider.Profile
	exchangeErr   error
	profileErr    error
	exchangeCalls int
}

func (p *fakeProvider) Name() string {
	return p.name
}

func (p *fakeProvider) AuthCodeURL(state, redirectURI string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code, redirectURI string) (*oauth2.Token, error) {
	p.mu.Lock()
	p.exchangeCalls++
	p.mu.Unlock()

	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, _ *oauth2.Token) (*provider.Profile, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	profile := p.profile
	return &profile, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}
