package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadline/internal/cache"
	"github.com/leadline/internal/store"
)

type fakeCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	sets   int
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	val, ok := f.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return val, nil
}

func (f *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.sets++
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) error {
	return f.err
}

func (f *fakeCache) Del(ctx context.Context, key string) error {
	delete(f.values, key)
	delete(f.ttls, key)
	return nil
}

type fakeUsers struct {
	byPhone map[string]*store.User
	nextID  int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byPhone: map[string]*store.User{}, nextID: 1}
}

func (f *fakeUsers) FindByPhone(ctx context.Context, phone string) (*store.User, error) {
	return f.byPhone[phone], nil
}

func (f *fakeUsers) Create(ctx context.Context, phone, name string) (*store.User, error) {
	u := &store.User{ID: f.nextID, Phone: phone, Name: name, LeadStatus: store.LeadNew}
	f.nextID++
	f.byPhone[phone] = u
	return u, nil
}

func (f *fakeUsers) Touch(ctx context.Context, id int64, name string) error {
	for _, u := range f.byPhone {
		if u.ID == id {
			u.Name = name
			u.LastInteractionAt = time.Now()
		}
	}
	return nil
}

type fakeConvs struct {
	bySession map[string]*store.Conversation
	nextID    int64
	created   int
}

func newFakeConvs() *fakeConvs {
	return &fakeConvs{bySession: map[string]*store.Conversation{}, nextID: 1}
}

func (f *fakeConvs) Create(ctx context.Context, userID int64, phone, sessionID string) (*store.Conversation, error) {
	c := &store.Conversation{ID: f.nextID, UserID: userID, Phone: phone, SessionID: sessionID, Status: store.ConversationBot}
	f.nextID++
	f.created++
	f.bySession[sessionID] = c
	return c, nil
}

func (f *fakeConvs) FindOpenBySession(ctx context.Context, sessionID string) (*store.Conversation, error) {
	c, ok := f.bySession[sessionID]
	if !ok || c.Status == store.ConversationClosed {
		return nil, nil
	}
	return c, nil
}

func (f *fakeConvs) SetStatus(ctx context.Context, id int64, target store.ConversationStatus) error {
	for _, c := range f.bySession {
		if c.ID == id {
			c.Status = target
		}
	}
	return nil
}

func TestResolveCreatesUserAndConversation(t *testing.T) {
	fc := newFakeCache()
	users := newFakeUsers()
	convs := newFakeConvs()
	r := NewResolver(users, convs, fc)
	ctx := context.Background()

	user, conv, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, user.ID, conv.UserID)
	assert.NotEmpty(t, conv.SessionID)
	assert.Equal(t, conv.SessionID, fc.values["session:+919900112233"])
	assert.Equal(t, TTL, fc.ttls["session:+919900112233"])
	assert.Equal(t, 1, fc.sets)
}

func TestResolveIsIdempotentWithinSession(t *testing.T) {
	fc := newFakeCache()
	users := newFakeUsers()
	convs := newFakeConvs()
	r := NewResolver(users, convs, fc)
	ctx := context.Background()

	_, first, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	_, second, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, convs.created)
	// Exactly one cache write; the second resolve only refreshes the TTL.
	assert.Equal(t, 1, fc.sets)
}

func TestResolveRefreshesTTLOnHit(t *testing.T) {
	fc := newFakeCache()
	r := NewResolver(newFakeUsers(), newFakeConvs(), fc)
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	fc.ttls["session:+919900112233"] = time.Minute

	_, _, err = r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)
	assert.Equal(t, TTL, fc.ttls["session:+919900112233"])
}

func TestResolveClosedConversationIsMiss(t *testing.T) {
	fc := newFakeCache()
	users := newFakeUsers()
	convs := newFakeConvs()
	r := NewResolver(users, convs, fc)
	ctx := context.Background()

	_, first, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	require.NoError(t, convs.SetStatus(ctx, first.ID, store.ConversationClosed))

	_, second, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, 2, convs.created)
}

func TestResolveUpgradesPlaceholderName(t *testing.T) {
	fc := newFakeCache()
	users := newFakeUsers()
	r := NewResolver(users, newFakeConvs(), fc)
	ctx := context.Background()

	user, _, err := r.Resolve(ctx, "+919900112233", "")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", user.Name)

	user, _, err = r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
}

func TestResolveKeepsExistingName(t *testing.T) {
	fc := newFakeCache()
	users := newFakeUsers()
	r := NewResolver(users, newFakeConvs(), fc)
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	user, _, err := r.Resolve(ctx, "+919900112233", "")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
}

func TestResolveSurvivesCacheOutage(t *testing.T) {
	fc := newFakeCache()
	fc.err = errors.New("connection refused")
	users := newFakeUsers()
	convs := newFakeConvs()
	r := NewResolver(users, convs, fc)
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	// Every message becomes a fresh session, but requests still succeed.
	_, _, err = r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)
	assert.Equal(t, 2, convs.created)
}

func TestCloseDropsSessionEntry(t *testing.T) {
	fc := newFakeCache()
	users := newFakeUsers()
	convs := newFakeConvs()
	r := NewResolver(users, convs, fc)
	ctx := context.Background()

	_, conv, err := r.Resolve(ctx, "+919900112233", "Asha")
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx, conv.ID, "+919900112233"))

	assert.Empty(t, fc.values["session:+919900112233"])
	assert.Equal(t, store.ConversationClosed, conv.Status)
}
