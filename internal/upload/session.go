package upload

import (
	"fmt"

	"geminikit/internal/core"
)

// State is the lifecycle position of a resumable upload session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is the bookkeeping for one resumable upload handshake.
// It is a value: every transition returns the next Session and leaves the receiver untouched.
// BytesSent only grows and never exceeds TotalSize.
type Session struct {
	URL       string
	TotalSize int64
	BytesSent int64
	State     State
}

// NewSession starts an active session for the upload URL the server handed out.
func NewSession(uploadURL string, totalSize int64) (Session, error) {
	if uploadURL == "" {
		return Session{}, fmt.Errorf("upload session url is empty")
	}
	if totalSize < 0 {
		return Session{}, fmt.Errorf("upload session size %d is negative", totalSize)
	}
	return Session{
		URL:       uploadURL,
		TotalSize: totalSize,
		State:     StateActive,
	}, nil
}

// IsComplete reports whether every declared byte has been acknowledged.
func (s Session) IsComplete() bool {
	return s.BytesSent == s.TotalSize
}

// Remaining is the number of bytes still to be acknowledged.
func (s Session) Remaining() int64 {
	return s.TotalSize - s.BytesSent
}

// Advance records n acknowledged bytes.
func (s Session) Advance(n int64) (Session, error) {
	if s.State != StateActive {
		return s, fmt.Errorf("cannot advance a session in state %s", s.State)
	}
	if n < 0 || s.BytesSent+n > s.TotalSize {
		return s, core.NewOffsetOverflowError(s.BytesSent, n, s.TotalSize)
	}
	s.BytesSent += n
	return s, nil
}

// Finalize closes a complete session.
func (s Session) Finalize() (Session, error) {
	if s.State != StateActive {
		return s, fmt.Errorf("cannot finalize a session in state %s", s.State)
	}
	if !s.IsComplete() {
		return s, fmt.Errorf("cannot finalize session at %d of %d bytes", s.BytesSent, s.TotalSize)
	}
	s.State = StateFinalized
	return s, nil
}

// Fail abandons the session. A failed session is never resumed.
func (s Session) Fail() Session {
	if s.State != StateFinalized {
		s.State = StateFailed
	}
	return s
}
