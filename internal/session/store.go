package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is the distinct "not yet written" outcome spec.md §4.1
// requires Project to return, separate from an empty-but-present state.
var ErrNotFound = errors.New("session: not found")

// sessionEventRecord is the append-only event table.
type sessionEventRecord struct {
	ID          uint `gorm:"primaryKey"`
	SessionID   string `gorm:"index:idx_event_session_time,priority:1;uniqueIndex:idx_event_session_ts,priority:1"`
	TimestampNS int64  `gorm:"uniqueIndex:idx_event_session_ts,priority:2"`
	Phase       string
	Message     string
	LogLine     string
	Outcome     string
	ErrorText   string
	PayloadJSON string
}

func (sessionEventRecord) TableName() string { return "session_events" }

// sessionLatestRecord is the latest-wins read model, updated in the same
// transaction as every event append so Project is an O(1) lookup instead of
// a scan of the full event log.
type sessionLatestRecord struct {
	SessionID   string `gorm:"primaryKey"`
	Kind        string
	RepoURL     string
	Branch      string
	SubPath     string
	CreatedAt   time.Time
	Phase       string `gorm:"index:idx_latest_phase_time,priority:1"`
	Outcome     string
	Message     string
	ErrorText   string
	PayloadJSON string
	LastUpdated time.Time `gorm:"index:idx_latest_phase_time,priority:2"`
}

func (sessionLatestRecord) TableName() string { return "session_latest" }

// Store is the Session Store: append(session-id, event) + project(session-id).
type Store struct {
	db *gorm.DB
}

// Open runs the schema migration and returns a ready Store.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&sessionEventRecord{}, &sessionLatestRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewSessionID mints a session id with the kind's prefix plus a 36-character
// uniqueness token (spec.md §6).
func NewSessionID(kind Kind) string {
	return kind.Prefix() + uuid.NewString()
}

// CreateParams seeds the fields that are fixed for a session's whole
// lifetime (spec.md §3: kind, repo URL, branch, sub-path, creation time).
type CreateParams struct {
	ID      string
	Kind    Kind
	RepoURL string
	Branch  string
	SubPath string
}

// Create appends the session's initial "pending" event and seeds the
// latest-state row. It is the only write path that sets
// Kind/RepoURL/Branch/SubPath/CreatedAt - Append never updates those columns,
// so the projection keeps the values Create recorded.
func (s *Store) Create(ctx context.Context, p CreateParams, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := sessionEventRecord{
			SessionID:   p.ID,
			TimestampNS: now.UnixNano(),
			Phase:       "pending",
			Message:     "session created",
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event).Error; err != nil {
			return err
		}
		latest := sessionLatestRecord{
			SessionID:   p.ID,
			Kind:        string(p.Kind),
			RepoURL:     p.RepoURL,
			Branch:      p.Branch,
			SubPath:     p.SubPath,
			CreatedAt:   now,
			Phase:       "pending",
			LastUpdated: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).Create(&latest).Error
	})
}

// Append writes one event to the log and folds it into the latest-wins
// projection, inside one transaction (spec.md §4.1, §5 "blind appends").
// Idempotent on (session-id, timestamp): a duplicate append across worker
// retries is silently absorbed.
func (s *Store) Append(ctx context.Context, sessionID string, event Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := sessionEventRecord{
			SessionID:   sessionID,
			TimestampNS: event.Timestamp.UnixNano(),
			Phase:       string(event.Phase),
			Message:     event.Message,
			LogLine:     event.LogLine,
			Outcome:     string(event.Outcome),
			ErrorText:   event.ErrorText,
			PayloadJSON: event.PayloadJSON,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Duplicate append (same session-id, timestamp) - tolerated, last wins
			// on whichever copy landed first; nothing further to fold in.
			return nil
		}

		updates := map[string]interface{}{"last_updated": event.Timestamp}
		if event.Phase != "" {
			updates["phase"] = string(event.Phase)
		}
		if event.Message != "" {
			updates["message"] = event.Message
		}
		if event.Outcome != "" {
			updates["outcome"] = string(event.Outcome)
		}
		if event.ErrorText != "" {
			updates["error_text"] = event.ErrorText
		}
		if event.PayloadJSON != "" {
			updates["payload_json"] = event.PayloadJSON
		}
		return tx.Model(&sessionLatestRecord{}).
			Where("session_id = ?", sessionID).
			Updates(updates).Error
	})
}

// Project returns the latest state for sessionID, or ErrNotFound if the
// session has never been created.
func (s *Store) Project(ctx context.Context, sessionID string) (State, error) {
	var latest sessionLatestRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}

	var events []sessionEventRecord
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp_ns asc").
		Find(&events).Error; err != nil {
		return State{}, err
	}

	log := make([]LogLine, 0, len(events))
	for _, e := range events {
		if e.LogLine == "" {
			continue
		}
		log = append(log, LogLine{Timestamp: time.Unix(0, e.TimestampNS), Text: e.LogLine})
	}

	return State{
		ID:          sessionID,
		Kind:        Kind(latest.Kind),
		RepoURL:     latest.RepoURL,
		Branch:      latest.Branch,
		SubPath:     latest.SubPath,
		CreatedAt:   latest.CreatedAt,
		Phase:       Phase(latest.Phase),
		Outcome:     Outcome(latest.Outcome),
		Message:     latest.Message,
		ErrorText:   latest.ErrorText,
		PayloadJSON: latest.PayloadJSON,
		Log:         log,
		LastUpdated: latest.LastUpdated,
	}, nil
}

// ListByPhase backs the /deployments listing interface (spec.md §6):
// sessions currently in the given phase, most-recently-updated first.
func (s *Store) ListByPhase(ctx context.Context, phase Phase, limit int) ([]State, error) {
	q := s.db.WithContext(ctx).Order("last_updated desc")
	if phase != "" {
		q = q.Where("phase = ?", string(phase))
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []sessionLatestRecord
	if err := q.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]State, 0, len(rows))
	for _, r := range rows {
		out = append(out, State{
			ID:          r.SessionID,
			Kind:        Kind(r.Kind),
			RepoURL:     r.RepoURL,
			Branch:      r.Branch,
			SubPath:     r.SubPath,
			CreatedAt:   r.CreatedAt,
			Phase:       Phase(r.Phase),
			Outcome:     Outcome(r.Outcome),
			Message:     r.Message,
			ErrorText:   r.ErrorText,
			PayloadJSON: r.PayloadJSON,
			LastUpdated: r.LastUpdated,
		})
	}
	return out, nil
}
