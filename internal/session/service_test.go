package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reframe/reframe/backend-go/internal/ai"
	"github.com/reframe/reframe/backend-go/internal/analysis"
	"github.com/reframe/reframe/backend-go/internal/camera"
	"github.com/reframe/reframe/backend-go/internal/db"
	"github.com/reframe/reframe/backend-go/internal/prompt"
	"github.com/reframe/reframe/backend-go/internal/typeid"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]db.Session
	prompts  []db.Prompt
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]db.Session{}}
}

func (f *fakeStore) CreateSession(ctx context.Context, p db.CreateSessionParams) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := db.Session{
		ID: p.ID, OwnerID: p.OwnerID, AssetID: p.AssetID,
		ImageWidth: p.ImageWidth, ImageHeight: p.ImageHeight, AspectRatio: p.AspectRatio,
		ShotType: p.ShotType, Angle: p.Angle, Lens: p.Lens, Description: p.Description,
		OriginalState: p.OriginalState, LiveState: p.LiveState,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.sessions[p.ID] = s
	return s, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return db.Session{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) ListSessionsForUser(ctx context.Context, ownerID string) ([]db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Session
	for _, s := range f.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) UpdateSessionLiveState(ctx context.Context, id string, liveState json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.LiveState = liveState
	s.UpdatedAt = time.Now()
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) CreatePrompt(ctx context.Context, p db.CreatePromptParams) (db.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := db.Prompt{ID: p.ID, SessionID: p.SessionID, Kind: p.Kind, Body: p.Body, CreatedAt: time.Now()}
	f.prompts = append(f.prompts, out)
	return out, nil
}

func (f *fakeStore) ListPromptsForSession(ctx context.Context, sessionID string) ([]db.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Prompt
	for _, p := range f.prompts {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCreds struct {
	key string
	err error
}

func (f fakeCreds) APIKey(ctx context.Context, userID string) (string, error) {
	return f.key, f.err
}

type fakeAssets struct {
	data    map[string][]byte
	deleted []string
}

func newFakeAssets(ids ...string) *fakeAssets {
	f := &fakeAssets{data: map[string][]byte{}}
	for _, id := range ids {
		f.data[id] = []byte("png-bytes")
	}
	return f
}

func (f *fakeAssets) Read(assetID string) ([]byte, error) {
	d, ok := f.data[assetID]
	if !ok {
		return nil, errors.New("no such asset")
	}
	return d, nil
}

func (f *fakeAssets) Delete(assetID string) error {
	f.deleted = append(f.deleted, assetID)
	delete(f.data, assetID)
	return nil
}

type fakeAnalyzer struct {
	result analysis.Result
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (analysis.Result, error) {
	if f.err != nil {
		return analysis.Result{}, f.err
	}
	return f.result, nil
}

type fakeCaller struct {
	reply func(system, user string) (string, error)
}

func (f fakeCaller) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply(system, user)
}

func factoryFor(a Analyzer, c prompt.ModelCaller) ModelFactory {
	return func(apiKey string) (Analyzer, prompt.ModelCaller) { return a, c }
}

func okCaller() fakeCaller {
	return fakeCaller{reply: func(system, user string) (string, error) {
		return "the camera holds a medium shot", nil
	}}
}

func TestCreateSeedsSessionFromAnalysis(t *testing.T) {
	store := newFakeStore()
	assetID := typeid.NewAssetID()
	analyzer := &fakeAnalyzer{result: analysis.Result{
		Distance: 4.5, Yaw: 30, Pitch: 10,
		ShotType: "full shot", Angle: "high angle", Lens: "wide",
		Description: "subject framed from above",
	}}
	svc := NewService(store, fakeCreds{key: "sk-test"}, newFakeAssets(assetID), factoryFor(analyzer, okCaller()))

	sess, err := svc.Create(context.Background(), "user_1", assetID, 1600, 900)
	require.NoError(t, err)

	assert.Equal(t, assetID, sess.AssetID)
	assert.InDelta(t, 16.0/9.0, sess.AspectRatio, 1e-9)
	assert.Equal(t, "full shot", sess.ShotType)
	assert.Equal(t, "high angle", sess.Angle)
	assert.Equal(t, "wide", sess.Lens)

	assert.InDelta(t, 4.5, sess.OriginalState.Distance, 1e-9)
	assert.InDelta(t, 30, sess.OriginalState.OrbitH, 1e-9)
	assert.InDelta(t, 10, sess.OriginalState.OrbitV, 1e-9)
	assert.Zero(t, sess.OriginalState.Pan)
	assert.Zero(t, sess.OriginalState.Tilt)
	assert.Equal(t, sess.OriginalState, sess.LiveState)

	require.NoError(t, typeid.Validate(sess.ID, typeid.PrefixSession))
	_, ok := store.sessions[sess.ID]
	assert.True(t, ok)
}

func TestCreateWithoutAPIKey(t *testing.T) {
	assetID := typeid.NewAssetID()
	svc := NewService(newFakeStore(), fakeCreds{key: ""}, newFakeAssets(assetID),
		factoryFor(&fakeAnalyzer{}, okCaller()))

	_, err := svc.Create(context.Background(), "user_1", assetID, 100, 100)
	assert.ErrorIs(t, err, ai.ErrCredential)
}

func TestCreateAnalysisErrorPropagates(t *testing.T) {
	assetID := typeid.NewAssetID()
	analyzer := &fakeAnalyzer{err: errors.New("model unavailable")}
	svc := NewService(newFakeStore(), fakeCreds{key: "sk-test"}, newFakeAssets(assetID),
		factoryFor(analyzer, okCaller()))

	_, err := svc.Create(context.Background(), "user_1", assetID, 100, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

// firstBlockedAnalyzer blocks its first call until the context is cancelled;
// later calls return immediately.
type firstBlockedAnalyzer struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (f *firstBlockedAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (analysis.Result, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if first {
		close(f.started)
		<-ctx.Done()
		return analysis.Result{}, ctx.Err()
	}
	return analysis.DefaultResult(), nil
}

func TestCreateSupersededByNewerUpload(t *testing.T) {
	firstAsset := typeid.NewAssetID()
	secondAsset := typeid.NewAssetID()
	analyzer := &firstBlockedAnalyzer{started: make(chan struct{})}
	store := newFakeStore()

	svc := NewService(store, fakeCreds{key: "sk-test"}, newFakeAssets(firstAsset, secondAsset),
		factoryFor(analyzer, okCaller()))

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Create(context.Background(), "user_1", firstAsset, 100, 100)
		firstErr <- err
	}()

	// Wait until the first analysis is actually running before starting the
	// second, which cancels it.
	select {
	case <-analyzer.started:
	case <-time.After(time.Second):
		t.Fatal("first analysis never started")
	}

	_, err := svc.Create(context.Background(), "user_1", secondAsset, 100, 100)
	require.NoError(t, err)

	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	assert.Len(t, store.sessions, 1)
}

func TestGetEnforcesOwnership(t *testing.T) {
	store := newFakeStore()
	assetID := typeid.NewAssetID()
	svc := NewService(store, fakeCreds{key: "sk-test"}, newFakeAssets(assetID),
		factoryFor(&fakeAnalyzer{result: analysis.DefaultResult()}, okCaller()))

	sess, err := svc.Create(context.Background(), "user_1", assetID, 100, 100)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), sess.ID, "user_2")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), "sess_missing", "user_1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(context.Background(), sess.ID, "user_1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestDeleteRemovesSessionAndAsset(t *testing.T) {
	store := newFakeStore()
	assetID := typeid.NewAssetID()
	assets := newFakeAssets(assetID)
	svc := NewService(store, fakeCreds{key: "sk-test"}, assets,
		factoryFor(&fakeAnalyzer{result: analysis.DefaultResult()}, okCaller()))

	sess, err := svc.Create(context.Background(), "user_1", assetID, 100, 100)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), sess.ID, "user_1"))
	assert.Empty(t, store.sessions)
	assert.Equal(t, []string{assetID}, assets.deleted)
}

func TestSaveAndLoadRigRoundTrip(t *testing.T) {
	store := newFakeStore()
	assetID := typeid.NewAssetID()
	svc := NewService(store, fakeCreds{key: "sk-test"}, newFakeAssets(assetID),
		factoryFor(&fakeAnalyzer{result: analysis.DefaultResult()}, okCaller()))

	sess, err := svc.Create(context.Background(), "user_1", assetID, 1600, 900)
	require.NoError(t, err)

	moved := camera.State{Distance: 5, OrbitH: 45, OrbitV: 20, Pan: 10, Tilt: -5}
	require.NoError(t, svc.SaveLiveState(context.Background(), sess.ID, "user_1", moved))

	r, err := svc.LoadRig(context.Background(), sess.ID, "user_1")
	require.NoError(t, err)
	assert.Equal(t, moved, r.State().State)
	assert.Equal(t, sess.OriginalState, r.OriginalState().State)
	assert.InDelta(t, 16.0/9.0, r.Plane().AspectRatio, 1e-9)
}

func TestGeneratePromptsPersistsBothKinds(t *testing.T) {
	store := newFakeStore()
	assetID := typeid.NewAssetID()
	svc := NewService(store, fakeCreds{key: "sk-test"}, newFakeAssets(assetID),
		factoryFor(&fakeAnalyzer{result: analysis.DefaultResult()}, okCaller()))

	sess, err := svc.Create(context.Background(), "user_1", assetID, 100, 100)
	require.NoError(t, err)

	live := camera.State{Distance: 2, OrbitH: 90, OrbitV: 0}
	out, err := svc.GeneratePrompts(context.Background(), sess.ID, "user_1", &live)
	require.NoError(t, err)

	assert.NotEmpty(t, out.Position.Text)
	assert.NotEmpty(t, out.Movement.Text)
	assert.Empty(t, out.Position.Error)
	assert.Empty(t, out.Movement.Error)

	stored, err := svc.ListPrompts(context.Background(), sess.ID, "user_1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestGeneratePromptsHalvesFailIndependently(t *testing.T) {
	store := newFakeStore()
	assetID := typeid.NewAssetID()

	// Fail only the movement call, recognizable by its from/to structure.
	caller := fakeCaller{reply: func(system, user string) (string, error) {
		if strings.Contains(user, "Moves:") {
			return "", errors.New("model timeout")
		}
		return "a clean medium shot from the right", nil
	}}
	svc := NewService(store, fakeCreds{key: "sk-test"}, newFakeAssets(assetID),
		factoryFor(&fakeAnalyzer{result: analysis.DefaultResult()}, caller))

	sess, err := svc.Create(context.Background(), "user_1", assetID, 100, 100)
	require.NoError(t, err)

	out, err := svc.GeneratePrompts(context.Background(), sess.ID, "user_1", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, out.Position.Text)
	assert.Empty(t, out.Movement.Text)
	assert.Contains(t, out.Movement.Error, "model timeout")

	stored, err := svc.ListPrompts(context.Background(), sess.ID, "user_1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "position", stored[0].Kind)
}
