package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

// ErrNotSignedIn is returned when a remote operation is attempted without an
// authenticated owner. Retrying cannot fix it, so callers must not route it
// through the retry path.
var ErrNotSignedIn = errors.New("remote: not signed in")

// DefaultCallTimeout bounds each remote call. A timeout is treated the same
// as any network failure: retryable, never fatal.
const DefaultCallTimeout = 15 * time.Second

// MessageFailure identifies one message that failed to upsert.
type MessageFailure struct {
	ID  string
	Err error
}

// MessageResult is the partial-success outcome of UpsertMessages. The
// caller decides whether to requeue only the failed sub-operations.
type MessageResult struct {
	Applied int
	Failed  []MessageFailure
}

// Ok reports whether every message was applied.
func (r MessageResult) Ok() bool {
	return len(r.Failed) == 0
}

// Adapter performs owner-scoped, idempotent writes against the remote
// store. Calling the same operation twice with the same id leaves the
// remote state identical to calling it once.
type Adapter struct {
	db      *DB
	userID  string
	timeout time.Duration
	logger  *log.Logger
}

// NewAdapter creates an adapter scoped to the authenticated user.
// An empty userID is allowed at construction; every operation then fails
// fast with ErrNotSignedIn.
func NewAdapter(db *DB, userID string, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Adapter{
		db:      db,
		userID:  userID,
		timeout: DefaultCallTimeout,
		logger:  logger,
	}
}

// SetCallTimeout overrides the per-call timeout bound.
func (a *Adapter) SetCallTimeout(d time.Duration) {
	if d > 0 {
		a.timeout = d
	}
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Adapter) requireAuth() error {
	if a.userID == "" {
		return ErrNotSignedIn
	}
	return nil
}

// UpsertSession writes a session row keyed on id, scoped to the owner.
// Messages and cards are synced through their own operations.
func (a *Adapter) UpsertSession(ctx context.Context, sess *model.Session) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	outlineJSON, err := json.Marshal(sess.Outline)
	if err != nil {
		return fmt.Errorf("failed to marshal outline: %w", err)
	}

	query := `
	INSERT INTO sessions (
		id, user_id, title, document_content, document_type, learning_level,
		status, outline, current_chapter, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		document_content = excluded.document_content,
		document_type = excluded.document_type,
		learning_level = excluded.learning_level,
		status = excluded.status,
		outline = excluded.outline,
		current_chapter = excluded.current_chapter,
		updated_at = excluded.updated_at
	`

	_, err = a.db.conn.ExecContext(ctx, query,
		sess.ID,
		a.userID,
		sess.Title,
		sess.DocumentContent,
		sess.DocumentType,
		sess.LearningLevel,
		string(sess.Status),
		string(outlineJSON),
		sess.CurrentChapter,
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", sess.ID, err)
	}
	return nil
}

// UpsertMessages writes message rows keyed on id. Individual failures do
// not stop the batch; they are collected into the partial-success result.
func (a *Adapter) UpsertMessages(ctx context.Context, sessionID string, msgs []model.Message) (MessageResult, error) {
	var result MessageResult
	if err := a.requireAuth(); err != nil {
		return result, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	query := `
	INSERT INTO messages (
		id, session_id, role, content, chapter_id, is_bookmarked, card_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		chapter_id = excluded.chapter_id,
		is_bookmarked = excluded.is_bookmarked,
		card_id = excluded.card_id
	`

	for _, msg := range msgs {
		_, err := a.db.conn.ExecContext(ctx, query,
			msg.ID,
			sessionID,
			string(msg.Role),
			msg.Content,
			msg.ChapterID,
			boolToInt(msg.Bookmarked),
			msg.CardID,
			msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			result.Failed = append(result.Failed, MessageFailure{ID: msg.ID, Err: err})
			a.logger.Printf("WARNING: failed to upsert message %s: %v", msg.ID, err)
			continue
		}
		result.Applied++
	}
	return result, nil
}

// UpsertCard writes a card row keyed on id, scoped to the owner.
func (a *Adapter) UpsertCard(ctx context.Context, card *model.Card) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	tagsJSON, err := json.Marshal(card.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO cards (
		id, user_id, session_id, message_id, title, content, user_note,
		type, tags, difficulty, review_count, last_reviewed_at,
		next_review_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		user_note = excluded.user_note,
		tags = excluded.tags,
		difficulty = excluded.difficulty,
		review_count = excluded.review_count,
		last_reviewed_at = excluded.last_reviewed_at,
		next_review_at = excluded.next_review_at
	`

	nextReview := card.NextReviewAt
	_, err = a.db.conn.ExecContext(ctx, query,
		card.ID,
		a.userID,
		card.SessionID,
		card.MessageID,
		card.Title,
		card.Content,
		card.UserNote,
		string(card.Type),
		string(tagsJSON),
		card.Difficulty,
		card.ReviewCount,
		timeToNullString(card.LastReviewedAt),
		timeToNullString(&nextReview),
		card.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard reads a card row back, normalizing timestamps to UTC.
// Returns sql.ErrNoRows if the card does not exist for this owner.
func (a *Adapter) GetCard(ctx context.Context, cardID string) (*model.Card, error) {
	if err := a.requireAuth(); err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	query := `
	SELECT id, session_id, message_id, title, content, user_note,
	       type, tags, difficulty, review_count, last_reviewed_at,
	       next_review_at, created_at
	FROM cards
	WHERE id = ? AND user_id = ?
	`
	row := a.db.conn.QueryRowContext(ctx, query, cardID, a.userID)

	var (
		card                     model.Card
		messageID, userNote      sql.NullString
		tagsJSON                 sql.NullString
		lastReviewed, nextReview sql.NullString
		cardType, createdAt      string
	)
	err := row.Scan(&card.ID, &card.SessionID, &messageID, &card.Title, &card.Content,
		&userNote, &cardType, &tagsJSON, &card.Difficulty, &card.ReviewCount,
		&lastReviewed, &nextReview, &createdAt)
	if err != nil {
		return nil, err
	}

	card.MessageID = messageID.String
	card.UserNote = userNote.String
	card.Type = model.CardType(cardType)
	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &card.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	card.LastReviewedAt = nullStringToTime(lastReviewed)
	if t := nullStringToTime(nextReview); t != nil {
		card.NextReviewAt = *t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		card.CreatedAt = t.UTC()
	}
	return &card, nil
}

// DeleteSession removes a session and cascades to its messages and cards.
// Deleting a missing session is not an error (idempotent).
func (a *Adapter) DeleteSession(ctx context.Context, sessionID string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	tx, err := a.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Explicit cascade: hosted endpoints don't always enforce foreign keys.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cards WHERE session_id = ? AND user_id = ?`, sessionID, a.userID); err != nil {
		return fmt.Errorf("failed to delete cards for session %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages for session %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, sessionID, a.userID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// UpsertPreferences mirrors the owner's preferences into the users table.
func (a *Adapter) UpsertPreferences(ctx context.Context, prefs model.UserPreferences) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
	INSERT INTO users (id, preferences, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		preferences = excluded.preferences,
		updated_at = excluded.updated_at
	`
	if _, err := a.db.conn.ExecContext(ctx, query, a.userID, string(prefsJSON), now, now); err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

// GetSession reads a session row back, normalizing timestamps to UTC.
// Returns sql.ErrNoRows if the session does not exist for this owner.
func (a *Adapter) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if err := a.requireAuth(); err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	query := `
	SELECT id, title, document_content, document_type, learning_level,
	       status, outline, current_chapter, created_at, updated_at
	FROM sessions
	WHERE id = ? AND user_id = ?
	`
	row := a.db.conn.QueryRowContext(ctx, query, sessionID, a.userID)

	var (
		sess                 model.Session
		outlineJSON          sql.NullString
		createdAt, updatedAt string
		docContent, docType  sql.NullString
		level, chapter       sql.NullString
		status               string
	)
	err := row.Scan(&sess.ID, &sess.Title, &docContent, &docType, &level,
		&status, &outlineJSON, &chapter, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sess.DocumentContent = docContent.String
	sess.DocumentType = docType.String
	sess.LearningLevel = level.String
	sess.Status = model.SessionStatus(status)
	sess.CurrentChapter = chapter.String
	if outlineJSON.Valid && outlineJSON.String != "" && outlineJSON.String != "null" {
		if err := json.Unmarshal([]byte(outlineJSON.String), &sess.Outline); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outline: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		sess.CreatedAt = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		sess.UpdatedAt = t.UTC()
	}
	return &sess, nil
}

// SessionCount returns the number of sessions stored for this owner.
func (a *Adapter) SessionCount(ctx context.Context) (int, error) {
	if err := a.requireAuth(); err != nil {
		return 0, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var count int
	err := a.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE user_id = ?", a.userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Ping verifies connectivity to the remote store. Used as the online probe.
func (a *Adapter) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.db.conn.PingContext(ctx)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
