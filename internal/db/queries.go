package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries is the hand-written query layer over the pool. Methods return
// pgx.ErrNoRows unchanged so callers can map it to their own sentinels.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

type User struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	CreatedAt   time.Time
}

type CreateUserParams struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
}

func (q *Queries) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password, display_name, created_at`,
		p.ID, p.Email, p.Password, p.DisplayName)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, email, password, display_name, created_at
		FROM users WHERE email = $1`, email)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, email, password, display_name, created_at
		FROM users WHERE id = $1`, id)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	return u, err
}

type Session struct {
	ID            string
	OwnerID       string
	AssetID       string
	ImageWidth    int32
	ImageHeight   int32
	AspectRatio   float64
	ShotType      string
	Angle         string
	Lens          string
	Description   string
	OriginalState json.RawMessage
	LiveState     json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateSessionParams struct {
	ID            string
	OwnerID       string
	AssetID       string
	ImageWidth    int32
	ImageHeight   int32
	AspectRatio   float64
	ShotType      string
	Angle         string
	Lens          string
	Description   string
	OriginalState json.RawMessage
	LiveState     json.RawMessage
}

const sessionColumns = `id, owner_id, asset_id, image_width, image_height, aspect_ratio,
	shot_type, angle, lens, description, original_state, live_state, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.OwnerID, &s.AssetID, &s.ImageWidth, &s.ImageHeight,
		&s.AspectRatio, &s.ShotType, &s.Angle, &s.Lens, &s.Description,
		&s.OriginalState, &s.LiveState, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) CreateSession(ctx context.Context, p CreateSessionParams) (Session, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, owner_id, asset_id, image_width, image_height,
			aspect_ratio, shot_type, angle, lens, description, original_state, live_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+sessionColumns,
		p.ID, p.OwnerID, p.AssetID, p.ImageWidth, p.ImageHeight, p.AspectRatio,
		p.ShotType, p.Angle, p.Lens, p.Description, p.OriginalState, p.LiveState)
	return scanSession(row)
}

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (q *Queries) ListSessionsForUser(ctx context.Context, ownerID string) ([]Session, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// UpdateSessionLiveState persists the rig's working state so a reopened
// session resumes where the user left it.
func (q *Queries) UpdateSessionLiveState(ctx context.Context, id string, liveState json.RawMessage) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE sessions SET live_state = $2, updated_at = now() WHERE id = $1`,
		id, liveState)
	return err
}

func (q *Queries) GetSetting(ctx context.Context, userID, name string) (string, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT value FROM settings WHERE user_id = $1 AND name = $2`, userID, name)
	var value string
	err := row.Scan(&value)
	return value, err
}

func (q *Queries) UpsertSetting(ctx context.Context, userID, name, value string) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO settings (user_id, name, value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO UPDATE SET value = $3, updated_at = now()`,
		userID, name, value)
	return err
}

func (q *Queries) DeleteSetting(ctx context.Context, userID, name string) error {
	_, err := q.pool.Exec(ctx, `
		DELETE FROM settings WHERE user_id = $1 AND name = $2`, userID, name)
	return err
}

type Prompt struct {
	ID        string
	SessionID string
	Kind      string
	Body      string
	CreatedAt time.Time
}

type CreatePromptParams struct {
	ID        string
	SessionID string
	Kind      string
	Body      string
}

func (q *Queries) CreatePrompt(ctx context.Context, p CreatePromptParams) (Prompt, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO prompts (id, session_id, kind, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, kind, body, created_at`,
		p.ID, p.SessionID, p.Kind, p.Body)
	var out Prompt
	err := row.Scan(&out.ID, &out.SessionID, &out.Kind, &out.Body, &out.CreatedAt)
	return out, err
}

func (q *Queries) ListPromptsForSession(ctx context.Context, sessionID string) ([]Prompt, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, session_id, kind, body, created_at FROM prompts
		WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Kind, &p.Body, &p.CreatedAt); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}
