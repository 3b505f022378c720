package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"optionsViewer/internal/dashboard"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Close() error
}

type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(db DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions(
		chat_id INTEGER PRIMARY KEY, selection TEXT NOT NULL, state TEXT NOT NULL, updated_at INTEGER
	)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS usage(
		chat_id INTEGER, user_id INTEGER, command TEXT, ts INTEGER
	)`)
	return err
}

func NewStore(db DB) *Store { return &Store{db: db} }

// Session is one chat's selection and display state. Sessions live only as
// long as the process: ResetSessions clears them at startup.
type Session struct {
	ChatID    int64
	Selection dashboard.Selection
	State     dashboard.State
	UpdatedAt time.Time
}

// NewSession is the state of a chat that has not chosen anything yet.
func NewSession(chatID int64) Session {
	return Session{ChatID: chatID, State: dashboard.InitialState()}
}

// ResetSessions deletes every stored session.
func (s *Store) ResetSessions() error {
	_, err := s.db.Exec(`DELETE FROM sessions`)
	return err
}

// LoadSession returns the chat's session, or a fresh one if none is stored.
func (s *Store) LoadSession(chatID int64) (Session, error) {
	var selJSON, stJSON string
	var ts int64
	err := s.db.QueryRow(`SELECT selection, state, updated_at FROM sessions WHERE chat_id=?`, chatID).
		Scan(&selJSON, &stJSON, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return NewSession(chatID), nil
	}
	if err != nil {
		return Session{}, err
	}
	sess := Session{ChatID: chatID, UpdatedAt: time.Unix(ts, 0)}
	if err := json.Unmarshal([]byte(selJSON), &sess.Selection); err != nil {
		return Session{}, fmt.Errorf("decoding selection for chat %d: %w", chatID, err)
	}
	if err := json.Unmarshal([]byte(stJSON), &sess.State); err != nil {
		return Session{}, fmt.Errorf("decoding state for chat %d: %w", chatID, err)
	}
	sess.State = sess.State.Normalize()
	return sess, nil
}

func (s *Store) SaveSession(sess Session) error {
	selJSON, err := json.Marshal(sess.Selection)
	if err != nil {
		return err
	}
	stJSON, err := json.Marshal(sess.State)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions(chat_id,selection,state,updated_at) VALUES(?,?,?,?)
		ON CONFLICT(chat_id) DO UPDATE SET selection=excluded.selection, state=excluded.state, updated_at=excluded.updated_at`,
		sess.ChatID, string(selJSON), string(stJSON), time.Now().Unix())
	return err
}

func (s *Store) RecordUsage(chatID, userID int64, command string, ts int64) error {
	_, err := s.db.Exec(`INSERT INTO usage(chat_id,user_id,command,ts) VALUES(?,?,?,?)`,
		chatID, userID, command, ts)
	return err
}

// UsageCounts returns how often each command ran since the given time.
func (s *Store) UsageCounts(since int64) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT command, COUNT(*) FROM usage WHERE ts>=? GROUP BY command`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var cmd string
		var n int
		if err := rows.Scan(&cmd, &n); err == nil && cmd != "" {
			out[cmd] = n
		}
	}
	return out, rows.Err()
}
