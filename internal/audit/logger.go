// Package audit records admin mutations as structured log events.
package audit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Actions recorded by the API.
const (
	ActionEventCreate        = "event.create"
	ActionEventUpdate        = "event.update"
	ActionEventDelete        = "event.delete"
	ActionEventSyncCount     = "event.sync_registration_count"
	ActionEventSyncAllCounts = "event.sync_all_registration_counts"
	ActionAnnouncementCreate = "announcement.create"
	ActionAnnouncementUpdate = "announcement.update"
	ActionAnnouncementDelete = "announcement.delete"
)

type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      int64             `json:"actor_id"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "audit").Logger()}
}

// Log writes entry under the "audit" key. A nil Logger discards entries.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	l.logger.Info().Interface("audit", entry).Msg("audit")
}

// LogFromRequest fills the client address from r.
func (l *Logger) LogFromRequest(r *http.Request, actorID int64, action, resourceType string, resourceID int64, details map[string]string) {
	entry := Entry{
		Action:       action,
		ActorID:      actorID,
		ResourceType: resourceType,
		IPAddress:    remoteIP(r),
		Details:      details,
	}
	if resourceID > 0 {
		entry.ResourceID = strconv.FormatInt(resourceID, 10)
	}
	l.Log(entry)
}

func remoteIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
