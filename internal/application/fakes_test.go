package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAccountStore struct {
	mu       sync.Mutex
	byEmail  map[string]domain.Account
	byID     map[uuid.UUID]domain.Account
	profiles map[uuid.UUID]domain.Profile
	events   []ports.OutboxEvent

	findErr   error
	findHook  func()
	insertErr func(domain.Account) error
	updateErr error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		byEmail:  map[string]domain.Account{},
		byID:     map[uuid.UUID]domain.Account{},
		profiles: map[uuid.UUID]domain.Profile{},
	}
}

func (s *fakeAccountStore) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	if s.findHook != nil {
		s.findHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return domain.Account{}, s.findErr
	}
	a, ok := s.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeAccountStore) GetByID(_ context.Context, id uuid.UUID) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeAccountStore) InsertAccountAndProfile(ctx context.Context, account domain.Account, profile domain.Profile, event ports.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		if err := s.insertErr(account); err != nil {
			return err
		}
	}
	if _, exists := s.byEmail[account.Email]; exists {
		return &ports.PersistenceError{
			Kind:       ports.ViolationUnique,
			Constraint: ports.AccountsEmailConstraint,
			Err:        errors.New("duplicate key value violates unique constraint"),
		}
	}
	s.byEmail[account.Email] = account
	s.byID[account.AccountID] = account
	s.profiles[account.AccountID] = profile
	s.events = append(s.events, event)
	return nil
}

func (s *fakeAccountStore) GetProfile(_ context.Context, id uuid.UUID, _ domain.AccountType) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakeAccountStore) UpdatePhotoURL(_ context.Context, id uuid.UUID, _ domain.AccountType, url string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch v := p.(type) {
	case domain.PersonProfile:
		v.PhotoURL = &url
		s.profiles[id] = v
	case domain.OrganizationProfile:
		v.PhotoURL = &url
		s.profiles[id] = v
	}
	return nil
}

func (s *fakeAccountStore) put(account domain.Account, profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[account.Email] = account
	s.byID[account.AccountID] = account
	if profile != nil {
		s.profiles[account.AccountID] = profile
	}
}

func (s *fakeAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type fakeLedger struct {
	mu     sync.Mutex
	tasks  map[uuid.UUID]domain.CompensationTask
	events []ports.OutboxEvent

	enqueueErr error
	selectErr  error
	saveErr    func(domain.CompensationTask) error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{tasks: map[uuid.UUID]domain.CompensationTask{}}
}

func (l *fakeLedger) Enqueue(ctx context.Context, task domain.CompensationTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enqueueErr != nil {
		return l.enqueueErr
	}
	l.tasks[task.ID] = task
	return nil
}

func (l *fakeLedger) SelectDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]domain.CompensationTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.selectErr != nil {
		return nil, l.selectErr
	}
	out := make([]domain.CompensationTask, 0)
	for _, t := range l.tasks {
		if len(out) >= limit {
			break
		}
		if t.Status == domain.CompensationPending && t.Attempts < maxAttempts && !t.NextRetryAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *fakeLedger) Save(_ context.Context, task domain.CompensationTask, events ...ports.OutboxEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		if err := l.saveErr(task); err != nil {
			return err
		}
	}
	l.tasks[task.ID] = task
	l.events = append(l.events, events...)
	return nil
}

func (l *fakeLedger) add(task domain.CompensationTask) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks[task.ID] = task
}

func (l *fakeLedger) get(id uuid.UUID) domain.CompensationTask {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks[id]
}

func (l *fakeLedger) byIdentity(id uuid.UUID) []domain.CompensationTask {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.CompensationTask
	for _, t := range l.tasks {
		if t.KCUserID == id {
			out = append(out, t)
		}
	}
	return out
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// fakeGateway keeps the set of live remote identities so tests can check for leaks.
type fakeGateway struct {
	mu         sync.Mutex
	identities map[uuid.UUID]string
	created    []uuid.UUID

	createErr   error
	afterCreate func()
	setCredErr  error
	deleteErr   func(uuid.UUID) error
	deleteCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{identities: map[uuid.UUID]string{}}
}

func (g *fakeGateway) CreateIdentity(ctx context.Context, email string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	g.mu.Lock()
	if g.createErr != nil {
		g.mu.Unlock()
		return uuid.Nil, g.createErr
	}
	id := uuid.New()
	g.identities[id] = email
	g.created = append(g.created, id)
	hook := g.afterCreate
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return id, nil
}

func (g *fakeGateway) SetCredential(ctx context.Context, _ uuid.UUID, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setCredErr
}

func (g *fakeGateway) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteCalls++
	if g.deleteErr != nil {
		if err := g.deleteErr(id); err != nil {
			return err
		}
	}
	if _, ok := g.identities[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, domain.ErrIdentityNotFound)
	}
	delete(g.identities, id)
	return nil
}

func (g *fakeGateway) exists(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.identities[id]
	return ok
}

func (g *fakeGateway) lastCreated() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.created) == 0 {
		return uuid.Nil
	}
	return g.created[len(g.created)-1]
}

func (g *fakeGateway) liveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.identities)
}

func (g *fakeGateway) createCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type fakeAuthenticator struct {
	tokens domain.TokenSet
	err    error
	calls  int
}

func (a *fakeAuthenticator) PasswordGrant(_ context.Context, _, _ string) (domain.TokenSet, error) {
	a.calls++
	return a.tokens, a.err
}

type fakeCache struct {
	mu      sync.Mutex
	items   map[uuid.UUID]domain.Account
	getErr  error
	setErr  error
	sets    int
	deletes int
	lastTTL time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[uuid.UUID]domain.Account{}}
}

func (c *fakeCache) Get(_ context.Context, id uuid.UUID) (domain.Account, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.Account{}, false, c.getErr
	}
	a, ok := c.items[id]
	return a, ok, nil
}

func (c *fakeCache) Set(_ context.Context, account domain.Account, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.lastTTL = ttl
	if c.setErr != nil {
		return c.setErr
	}
	c.items[account.AccountID] = account
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.items, id)
	return nil
}

type fakeObjectStore struct {
	keys         []string
	contentTypes []string
	bodies       [][]byte
	err          error
}

func (o *fakeObjectStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	o.keys = append(o.keys, key)
	o.contentTypes = append(o.contentTypes, contentType)
	o.bodies = append(o.bodies, raw)
	return "https://cdn.example.com/photos/" + key, nil
}

type fixture struct {
	clock    *fakeClock
	accounts *fakeAccountStore
	ledger   *fakeLedger
	gateway  *fakeGateway
	auth     *fakeAuthenticator
	cache    *fakeCache
	photos   *fakeObjectStore
	service  *Service
}

const fixedJitter = 7 * time.Second

func newFixture() *fixture {
	f := &fixture{
		clock:    &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
		accounts: newFakeAccountStore(),
		ledger:   newFakeLedger(),
		gateway:  newFakeGateway(),
		auth:     &fakeAuthenticator{},
		cache:    newFakeCache(),
		photos:   &fakeObjectStore{},
	}
	f.service = NewService(Dependencies{
		Config:        Config{ServiceID: "users-service-test"},
		Accounts:      f.accounts,
		Ledger:        f.ledger,
		Identities:    f.gateway,
		Authenticator: f.auth,
		Cache:         f.cache,
		Photos:        f.photos,
		Now:           f.clock.Now,
		Jitter:        func(time.Duration) time.Duration { return fixedJitter },
	})
	return f
}

func personCommand(email string) RegisterCommand {
	return RegisterCommand{
		Email:    email,
		Password: "S3cure-pass!",
		Profile: domain.PersonProfile{
			FirstName:      "Ada",
			LastName:       "Lovelace",
			ProfileDetails: domain.ProfileDetails{ProfileScore: domain.InitialProfileScore},
		},
	}
}

func unavailable(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrIdentityProviderUnavailable, msg)
}
