package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions/memory"
)

const testSigningSecret = "thisisaverylongsecretthatisnotverysecret"

var testEpoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeLedger struct {
	mu        sync.Mutex
	sessions  map[string]Session
	seq       time.Duration
	upsertErr error
	findErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{sessions: map[string]Session{}}
}

func (f *fakeLedger) Upsert(_ context.Context, session Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.seq++
	updated := testEpoch.Add(f.seq)
	if existing, ok := f.sessions[session.SessionID]; ok {
		if existing.UserID != session.UserID {
			return &meta.ErrConflict{Type: "Session", ID: session.SessionID}
		}
		session.Created = existing.Created
	} else {
		session.Created = &updated
	}
	session.Updated = &updated
	f.sessions[session.SessionID] = session
	return nil
}

func (f *fakeLedger) Rotate(
	_ context.Context,
	oldToken string,
	session Session,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.sessions[session.SessionID]
	if !ok || existing.UserID != session.UserID {
		return &meta.ErrNotFound{Type: "Session", ID: session.SessionID}
	}
	if existing.Token != oldToken {
		return &meta.ErrConflict{Type: "Session", ID: session.SessionID}
	}
	f.seq++
	updated := testEpoch.Add(f.seq)
	existing.Token = session.Token
	existing.ExpiresAt = session.ExpiresAt
	existing.Updated = &updated
	f.sessions[session.SessionID] = existing
	return nil
}

func (f *fakeLedger) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeLedger) FindBySessionID(
	_ context.Context,
	sessionID string,
) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return Session{}, f.findErr
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return session, &meta.ErrNotFound{Type: "Session", ID: sessionID}
	}
	return session, nil
}

func (f *fakeLedger) FindByUserID(
	_ context.Context,
	userID string,
) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	sessions := []Session{}
	for _, session := range f.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sortNewestFirst(sessions)
	return sessions, nil
}

func (f *fakeLedger) List(context.Context) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sessions := []Session{}
	for _, session := range f.sessions {
		sessions = append(sessions, session)
	}
	sortNewestFirst(sessions)
	return sessions, nil
}

func (f *fakeLedger) DeleteBySessionID(
	_ context.Context,
	sessionID string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return &meta.ErrNotFound{Type: "Session", ID: sessionID}
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeLedger) DeleteAllForUser(
	_ context.Context,
	userID string,
) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for sessionID, session := range f.sessions {
		if session.UserID == userID {
			delete(f.sessions, sessionID)
			count++
		}
	}
	return count, nil
}

func sortNewestFirst(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created.After(*sessions[j].Created)
	})
}

type fakePublisher struct {
	mu     sync.Mutex
	events []TokenEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event TokenEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Events() []TokenEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenEvent{}, f.events...)
}

// interruptingCodec runs interrupt once, just before minting the next pair of
// tokens, to stage whatever another request does at that moment.
type interruptingCodec struct {
	TokenCodec
	interrupt func()
}

func (i *interruptingCodec) Issue(
	userID string,
	role Role,
	sessionID string,
) (IssuedTokens, error) {
	if interrupt := i.interrupt; interrupt != nil {
		i.interrupt = nil
		interrupt()
	}
	return i.TokenCodec.Issue(userID, role, sessionID)
}

// interruptingLedger runs afterFind once, just after the next session lookup,
// and afterRotate once, just after the next rotation.
type interruptingLedger struct {
	*fakeLedger
	afterFind   func()
	afterRotate func()
}

func (i *interruptingLedger) FindBySessionID(
	ctx context.Context,
	sessionID string,
) (Session, error) {
	session, err := i.fakeLedger.FindBySessionID(ctx, sessionID)
	if interrupt := i.afterFind; interrupt != nil {
		i.afterFind = nil
		interrupt()
	}
	return session, err
}

func (i *interruptingLedger) Rotate(
	ctx context.Context,
	oldToken string,
	session Session,
) error {
	err := i.fakeLedger.Rotate(ctx, oldToken, session)
	if interrupt := i.afterRotate; interrupt != nil {
		i.afterRotate = nil
		interrupt()
	}
	return err
}

type brokenCache struct {
	err error
}

func (b *brokenCache) Put(
	context.Context,
	string,
	string,
	string,
	time.Duration,
) error {
	return b.err
}

func (b *brokenCache) Get(
	context.Context,
	string,
	string,
) (string, bool, error) {
	return "", false, b.err
}

func (b *brokenCache) Delete(context.Context, string, string) error {
	return b.err
}

type testHarness struct {
	clock     *fakeClock
	codec     *tokenCodec
	cache     *memory.CacheStore
	ledger    *fakeLedger
	publisher *fakePublisher
	service   *sessionsService
}

func newTestHarness(rotateRefreshTokens bool) *testHarness {
	h := &testHarness{
		clock:     &fakeClock{now: testEpoch},
		cache:     memory.NewCacheStore(),
		ledger:    newFakeLedger(),
		publisher: &fakePublisher{},
	}
	h.codec = newTestTokenCodec(h.clock)
	h.service = NewSessionsService(
		h.codec,
		h.cache,
		h.ledger,
		h.publisher,
		rotateRefreshTokens,
	).(*sessionsService)
	h.service.now = h.clock.Now
	return h
}

func newTestTokenCodec(clock *fakeClock) *tokenCodec {
	codec :=
		NewTokenCodec(testSigningSecret, 15*time.Minute, 168*time.Hour).(*tokenCodec)
	codec.now = clock.Now
	return codec
}
