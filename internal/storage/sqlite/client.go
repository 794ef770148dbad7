package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/storage/models"
	"github.com/examproctor/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exam_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		video_path TEXT,
		audio_path TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON exam_sessions(user_id);

	CREATE TABLE IF NOT EXISTS flagged_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		event TEXT NOT NULL,
		timestamp REAL NOT NULL,
		FOREIGN KEY (session_id) REFERENCES exam_sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON flagged_events(session_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertSession(session *models.ExamSession) error {
	query := `
		INSERT INTO exam_sessions (id, user_id, video_path, audio_path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_path = excluded.video_path,
			audio_path = excluded.audio_path
	`

	_, err := c.db.Exec(query, session.ID, session.UserID, session.VideoPath, session.AudioPath)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	logger.Debug("Session persisted", zap.String("session_id", session.ID))
	return nil
}

func (c *Client) InsertEvent(event *models.FlaggedEvent) error {
	query := `INSERT INTO flagged_events (session_id, event, timestamp) VALUES (?, ?, ?)`

	_, err := c.db.Exec(query, event.SessionID, event.Event, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert flagged event: %w", err)
	}

	return nil
}

func (c *Client) GetSession(id string) (*models.ExamSession, error) {
	query := `SELECT id, user_id, video_path, audio_path FROM exam_sessions WHERE id = ?`

	var session models.ExamSession
	err := c.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.VideoPath,
		&session.AudioPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (c *Client) GetEvents(sessionID string) ([]models.FlaggedEvent, error) {
	query := `
		SELECT session_id, event, timestamp
		FROM flagged_events
		WHERE session_id = ?
		ORDER BY timestamp, id
	`

	rows, err := c.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flagged events: %w", err)
	}
	defer rows.Close()

	var events []models.FlaggedEvent
	for rows.Next() {
		var e models.FlaggedEvent
		err := rows.Scan(&e.SessionID, &e.Event, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		events = append(events, e)
	}

	return events, nil
}
