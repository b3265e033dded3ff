package models

import "time"

// Session is the active conversation of one client scope.
type Session struct {
	SessionID string    `json:"session_id"`
	Started   bool      `json:"started"`
	Messages  []Message `json:"messages"`
}

// Empty reports whether no session id has been allocated yet.
func (s Session) Empty() bool {
	return s.SessionID == ""
}

// StartedAt is the timestamp of the first message, zero when the log is empty.
func (s Session) StartedAt() time.Time {
	if len(s.Messages) == 0 {
		return time.Time{}
	}
	return s.Messages[0].OriginalTimestamp
}

// Clone returns a copy that does not share the message slice.
func (s *Session) Clone() Session {
	if s == nil {
		return Session{}
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// ChatHistoryEntry summarizes a past session.
type ChatHistoryEntry struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
