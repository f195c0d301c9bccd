// Package session manages editing sessions: one uploaded photo, the analysis
// that placed the virtual camera for it, the persisted rig state, and the
// prompts generated from it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reframe/reframe/backend-go/internal/ai"
	"github.com/reframe/reframe/backend-go/internal/analysis"
	"github.com/reframe/reframe/backend-go/internal/camera"
	"github.com/reframe/reframe/backend-go/internal/db"
	"github.com/reframe/reframe/backend-go/internal/prompt"
	"github.com/reframe/reframe/backend-go/internal/rig"
	"github.com/reframe/reframe/backend-go/internal/typeid"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrForbidden = errors.New("forbidden")
	// ErrSuperseded is returned when a newer upload by the same user cancels
	// an analysis that was still in flight.
	ErrSuperseded = errors.New("analysis superseded by a newer upload")
)

// Store is the slice of the query layer the service needs.
type Store interface {
	CreateSession(ctx context.Context, p db.CreateSessionParams) (db.Session, error)
	GetSession(ctx context.Context, id string) (db.Session, error)
	ListSessionsForUser(ctx context.Context, ownerID string) ([]db.Session, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateSessionLiveState(ctx context.Context, id string, liveState json.RawMessage) error
	CreatePrompt(ctx context.Context, p db.CreatePromptParams) (db.Prompt, error)
	ListPromptsForSession(ctx context.Context, sessionID string) ([]db.Prompt, error)
}

// Credentials resolves the per-user AI API key.
type Credentials interface {
	APIKey(ctx context.Context, userID string) (string, error)
}

// Assets reads and removes stored photos.
type Assets interface {
	Read(assetID string) ([]byte, error)
	Delete(assetID string) error
}

// Analyzer estimates a camera position from image bytes.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (analysis.Result, error)
}

// ModelFactory builds the analysis and prompt model callers for a given API
// key. Clients are per-call because the key belongs to the user, not the
// process.
type ModelFactory func(apiKey string) (Analyzer, prompt.ModelCaller)

// DefaultModelFactory wires the OpenAI-compatible client.
func DefaultModelFactory(baseURL, model string) ModelFactory {
	return func(apiKey string) (Analyzer, prompt.ModelCaller) {
		client := ai.NewClient(apiKey, ai.WithBaseURL(baseURL), ai.WithModel(model))
		return analysis.NewAnalyzer(client), client
	}
}

type inflight struct {
	cancel context.CancelFunc
}

type Service struct {
	store  Store
	creds  Credentials
	assets Assets
	models ModelFactory

	mu       sync.Mutex
	analyses map[string]*inflight // keyed by user ID
}

func NewService(store Store, creds Credentials, assets Assets, models ModelFactory) *Service {
	return &Service{
		store:    store,
		creds:    creds,
		assets:   assets,
		models:   models,
		analyses: make(map[string]*inflight),
	}
}

// Session is the API view of a stored session.
type Session struct {
	ID            string       `json:"id"`
	AssetID       string       `json:"assetId"`
	ImageWidth    int          `json:"imageWidth"`
	ImageHeight   int          `json:"imageHeight"`
	AspectRatio   float64      `json:"aspectRatio"`
	ShotType      string       `json:"shotType"`
	Angle         string       `json:"angle"`
	Lens          string       `json:"lens"`
	Description   string       `json:"description"`
	OriginalState camera.State `json:"originalState"`
	LiveState     camera.State `json:"liveState"`
	CreatedAt     string       `json:"createdAt"`
	UpdatedAt     string       `json:"updatedAt"`
}

// Create analyzes an uploaded photo and persists a new session seeded from
// the estimate. Starting a new analysis cancels any analysis the same user
// still has in flight; the superseded call returns ErrSuperseded.
func (s *Service) Create(ctx context.Context, userID, assetID string, width, height int) (*Session, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("image dimensions must be positive")
	}
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return nil, fmt.Errorf("invalid asset id: %w", err)
	}

	apiKey, err := s.creds.APIKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve api key: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no api key configured: %w", ai.ErrCredential)
	}

	image, err := s.assets.Read(assetID)
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}

	actx, cleanup := s.beginAnalysis(ctx, userID)
	defer cleanup()

	analyzer, _ := s.models(apiKey)
	res, err := analyzer.Analyze(actx, image, "image/png")
	if err != nil {
		if actx.Err() != nil && ctx.Err() == nil {
			return nil, ErrSuperseded
		}
		return nil, fmt.Errorf("analyze photo: %w", err)
	}

	aspect := float64(width) / float64(height)
	r := rig.New()
	r.Initialize(res)
	r.SetAspectRatio(aspect)
	r.SetPlaneSize(camera.DefaultPlane().Height*aspect, camera.DefaultPlane().Height)

	originalJSON, err := json.Marshal(r.OriginalState().State)
	if err != nil {
		return nil, fmt.Errorf("marshal original state: %w", err)
	}
	liveJSON, err := json.Marshal(r.State().State)
	if err != nil {
		return nil, fmt.Errorf("marshal live state: %w", err)
	}

	dbSess, err := s.store.CreateSession(ctx, db.CreateSessionParams{
		ID:            typeid.NewSessionID(),
		OwnerID:       userID,
		AssetID:       assetID,
		ImageWidth:    int32(width),
		ImageHeight:   int32(height),
		AspectRatio:   aspect,
		ShotType:      res.Normalized().ShotType,
		Angle:         res.Normalized().Angle,
		Lens:          res.Normalized().Lens,
		Description:   res.Description,
		OriginalState: originalJSON,
		LiveState:     liveJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return dbSessionToSession(dbSess)
}

// beginAnalysis registers a cancellable analysis for the user, cancelling any
// previous one. The returned cleanup deregisters it unless a newer analysis
// has already replaced it.
func (s *Service) beginAnalysis(ctx context.Context, userID string) (context.Context, func()) {
	actx, cancel := context.WithCancel(ctx)
	entry := &inflight{cancel: cancel}

	s.mu.Lock()
	if prev := s.analyses[userID]; prev != nil {
		prev.cancel()
	}
	s.analyses[userID] = entry
	s.mu.Unlock()

	return actx, func() {
		s.mu.Lock()
		if s.analyses[userID] == entry {
			delete(s.analyses, userID)
		}
		s.mu.Unlock()
		cancel()
	}
}

func (s *Service) Get(ctx context.Context, sessionID, userID string) (*Session, error) {
	dbSess, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return dbSessionToSession(dbSess)
}

func (s *Service) List(ctx context.Context, userID string) ([]Session, error) {
	dbSessions, err := s.store.ListSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]Session, 0, len(dbSessions))
	for _, d := range dbSessions {
		sess, err := dbSessionToSession(d)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, nil
}

// Delete removes the session row and its photo. A missing asset file is not
// fatal; the row is the source of truth.
func (s *Service) Delete(ctx context.Context, sessionID, userID string) error {
	dbSess, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	_ = s.assets.Delete(dbSess.AssetID)
	return nil
}

// SaveLiveState persists the rig's working state for a session.
func (s *Service) SaveLiveState(ctx context.Context, sessionID, userID string, state camera.State) error {
	if _, err := s.owned(ctx, sessionID, userID); err != nil {
		return err
	}
	liveJSON, err := json.Marshal(state.Clamped())
	if err != nil {
		return fmt.Errorf("marshal live state: %w", err)
	}
	if err := s.store.UpdateSessionLiveState(ctx, sessionID, liveJSON); err != nil {
		return fmt.Errorf("update live state: %w", err)
	}
	return nil
}

// LoadRig rebuilds a rig from a persisted session, for the realtime hub.
func (s *Service) LoadRig(ctx context.Context, sessionID, userID string) (*rig.Rig, error) {
	dbSess, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	var original, live camera.State
	if err := json.Unmarshal(dbSess.OriginalState, &original); err != nil {
		return nil, fmt.Errorf("unmarshal original state: %w", err)
	}
	if err := json.Unmarshal(dbSess.LiveState, &live); err != nil {
		return nil, fmt.Errorf("unmarshal live state: %w", err)
	}

	plane := camera.Plane{
		AspectRatio: dbSess.AspectRatio,
		Width:       camera.DefaultPlane().Height * dbSess.AspectRatio,
		Height:      camera.DefaultPlane().Height,
	}

	r := rig.New()
	r.Restore(camera.Snapshot{
		State:    original,
		ShotType: dbSess.ShotType,
		Angle:    dbSess.Angle,
	}, live, plane)
	return r, nil
}

// GeneratedPrompt is one generation outcome. Position and movement succeed
// or fail independently, so each carries its own error text.
type GeneratedPrompt struct {
	Kind  string `json:"kind"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Prompts is the pair returned from a generation request.
type Prompts struct {
	Position GeneratedPrompt `json:"position"`
	Movement GeneratedPrompt `json:"movement"`
}

// StoredPrompt is a previously generated prompt loaded from the database.
type StoredPrompt struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

// GeneratePrompts runs the position and movement generations for a session.
// When live is nil the persisted live state is used; a non-nil live lets the
// client generate from an unsaved rig position. Successful prompts are
// persisted; a failed half is reported in its Error field without failing
// the other half.
func (s *Service) GeneratePrompts(ctx context.Context, sessionID, userID string, live *camera.State) (*Prompts, error) {
	dbSess, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.creds.APIKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve api key: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no api key configured: %w", ai.ErrCredential)
	}

	var original, stored camera.State
	if err := json.Unmarshal(dbSess.OriginalState, &original); err != nil {
		return nil, fmt.Errorf("unmarshal original state: %w", err)
	}
	if err := json.Unmarshal(dbSess.LiveState, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal live state: %w", err)
	}
	current := stored
	if live != nil {
		current = live.Clamped()
	}

	from := snapshotFor(original, dbSess)
	to := snapshotFor(current, dbSess)

	_, caller := s.models(apiKey)
	position, movement := prompt.NewGenerator(caller).Generate(ctx, from, to)

	out := &Prompts{
		Position: GeneratedPrompt{Kind: "position"},
		Movement: GeneratedPrompt{Kind: "movement"},
	}
	if position.Err != nil {
		if errors.Is(position.Err, ai.ErrCredential) {
			return nil, position.Err
		}
		out.Position.Error = position.Err.Error()
	} else {
		out.Position.Text = position.Text
		s.persistPrompt(ctx, sessionID, "position", position.Text)
	}
	if movement.Err != nil {
		if errors.Is(movement.Err, ai.ErrCredential) {
			return nil, movement.Err
		}
		out.Movement.Error = movement.Err.Error()
	} else {
		out.Movement.Text = movement.Text
		s.persistPrompt(ctx, sessionID, "movement", movement.Text)
	}
	return out, nil
}

func (s *Service) ListPrompts(ctx context.Context, sessionID, userID string) ([]StoredPrompt, error) {
	if _, err := s.owned(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	dbPrompts, err := s.store.ListPromptsForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}

	prompts := make([]StoredPrompt, len(dbPrompts))
	for i, p := range dbPrompts {
		prompts[i] = StoredPrompt{
			ID:        p.ID,
			Kind:      p.Kind,
			Body:      p.Body,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		}
	}
	return prompts, nil
}

func (s *Service) persistPrompt(ctx context.Context, sessionID, kind, body string) {
	if _, err := s.store.CreatePrompt(ctx, db.CreatePromptParams{
		ID:        typeid.NewPromptID(),
		SessionID: sessionID,
		Kind:      kind,
		Body:      body,
	}); err != nil {
		// Generation already succeeded; losing the history row should not
		// fail the request.
		slog.Warn("persist prompt failed", "session", sessionID, "kind", kind, "error", err)
	}
}

func (s *Service) owned(ctx context.Context, sessionID, userID string) (db.Session, error) {
	dbSess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Session{}, ErrNotFound
		}
		return db.Session{}, fmt.Errorf("get session: %w", err)
	}
	if dbSess.OwnerID != userID {
		return db.Session{}, ErrForbidden
	}
	return dbSess, nil
}

func snapshotFor(state camera.State, dbSess db.Session) prompt.Snapshot {
	return prompt.Snapshot{
		Distance: state.Distance,
		OrbitH:   state.OrbitH,
		OrbitV:   state.OrbitV,
		Pan:      state.Pan,
		Tilt:     state.Tilt,
		ShotType: dbSess.ShotType,
		Angle:    dbSess.Angle,
	}
}

func dbSessionToSession(d db.Session) (*Session, error) {
	var original, live camera.State
	if err := json.Unmarshal(d.OriginalState, &original); err != nil {
		return nil, fmt.Errorf("unmarshal original state: %w", err)
	}
	if err := json.Unmarshal(d.LiveState, &live); err != nil {
		return nil, fmt.Errorf("unmarshal live state: %w", err)
	}
	return &Session{
		ID:            d.ID,
		AssetID:       d.AssetID,
		ImageWidth:    int(d.ImageWidth),
		ImageHeight:   int(d.ImageHeight),
		AspectRatio:   d.AspectRatio,
		ShotType:      d.ShotType,
		Angle:         d.Angle,
		Lens:          d.Lens,
		Description:   d.Description,
		OriginalState: original,
		LiveState:     live,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     d.UpdatedAt.Format(time.RFC3339),
	}, nil
}
