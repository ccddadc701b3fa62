package authkit_test

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/maragall/authkit"
)

// memoryStore is an in-memory UserStore for unit tests. It copies records on
// the way in and out so tests cannot mutate stored state by accident.
type memoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*authkit.Identity
	failAll bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[uuid.UUID]*authkit.Identity{}}
}

func (s *memoryStore) FindByID(_ context.Context, id uuid.UUID) (*authkit.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return nil, goerrors.New("store unavailable", goerrors.CategoryInternal)
	}

	if rec, ok := s.records[id]; ok {
		return cloneIdentity(rec), nil
	}
	return nil, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*authkit.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return nil, goerrors.New("store unavailable", goerrors.CategoryInternal)
	}

	for _, rec := range s.records {
		if rec.Email == email {
			return cloneIdentity(rec), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) FindByVerificationCodeHash(_ context.Context, hash string) (*authkit.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash == "" {
		return nil, nil
	}
	for _, rec := range s.records {
		if rec.VerificationCodeHash == hash {
			return cloneIdentity(rec), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) FindByResetCodeHash(_ context.Context, hash string) (*authkit.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash == "" {
		return nil, nil
	}
	for _, rec := range s.records {
		if rec.ResetCodeHash == hash {
			return cloneIdentity(rec), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) Save(_ context.Context, identity *authkit.Identity) (*authkit.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return nil, goerrors.New("store unavailable", goerrors.CategoryInternal)
	}

	if identity.ID == uuid.Nil {
		for _, rec := range s.records {
			if rec.Email == identity.Email {
				return nil, authkit.ErrDuplicateIdentity
			}
		}
		identity.ID = uuid.New()
	}

	s.records[identity.ID] = cloneIdentity(identity)
	return cloneIdentity(identity), nil
}

func (s *memoryStore) Remove(_ context.Context, identity *authkit.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, identity.ID)
	return nil
}

func (s *memoryStore) get(id uuid.UUID) *authkit.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[id]; ok {
		return cloneIdentity(rec)
	}
	return nil
}

func cloneIdentity(in *authkit.Identity) *authkit.Identity {
	out := *in
	out.PasswordChangedAt = cloneTime(in.PasswordChangedAt)
	out.VerificationCodeExpiry = cloneTime(in.VerificationCodeExpiry)
	out.ResetCodeExpiry = cloneTime(in.ResetCodeExpiry)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// sentEmail records a single outbound message from captureSender.
type sentEmail struct {
	kind string
	to   string
	link string
}

// captureSender records outbound emails instead of delivering them, and can
// be told to fail.
type captureSender struct {
	mu   sync.Mutex
	sent []sentEmail
	fail bool
}

func (s *captureSender) SendVerification(_ context.Context, identity *authkit.Identity, link string) error {
	return s.record("verification", identity.Email, link)
}

func (s *captureSender) SendPasswordReset(_ context.Context, identity *authkit.Identity, link string) error {
	return s.record("reset", identity.Email, link)
}

func (s *captureSender) record(kind, to, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return goerrors.New("smtp unavailable", goerrors.CategoryOperation)
	}
	s.sent = append(s.sent, sentEmail{kind: kind, to: to, link: link})
	return nil
}

func (s *captureSender) last() sentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sent) == 0 {
		return sentEmail{}
	}
	return s.sent[len(s.sent)-1]
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// testConfig returns a Config valid for unit tests.
func testConfig() authkit.Config {
	return authkit.Config{
		Environment:      "test",
		AccessSecret:     "access-secret-for-tests",
		RefreshSecret:    "refresh-secret-for-tests",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		AccessCookieTTL:  15 * time.Minute,
		RefreshCookieTTL: 7 * 24 * time.Hour,
		SkewTolerance:    100 * time.Second,
		CodeTTL:          10 * time.Minute,
		Issuer:           "authkit-test",
		FrontendURL:      "https://app.example.com",
	}
}

// fixedClock returns a deterministic, adjustable time source.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{t: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
