package auditlog

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Session measures one command run and writes a single audit entry when it
// finishes. Audit persistence is best effort: failures are logged and never
// change the command's outcome.
type Session struct {
	repo   Repository
	logger zerolog.Logger
	entry  AuditEntry
	start  time.Time
}

// Begin starts an audit session for command. args are sanitized before
// they are stored. A nil repo yields a session that records nothing.
func Begin(repo Repository, logger zerolog.Logger, command string, args []string) *Session {
	return &Session{
		repo:   repo,
		logger: logger,
		entry: AuditEntry{
			Command: command,
			Args:    strings.Join(SanitizeArgs(args), " "),
		},
		start: time.Now(),
	}
}

// SetRun attaches the run ID and provider to the pending entry.
func (s *Session) SetRun(runID, provider string) {
	s.entry.RunID = runID
	s.entry.Provider = provider
}

// SetResource attaches the target resource to the pending entry.
func (s *Session) SetResource(id, name string) {
	s.entry.ResourceID = id
	s.entry.ResourceName = name
}

// Finish records the outcome derived from err and returns the saved entry.
func (s *Session) Finish(err error) AuditEntry {
	s.entry.Timestamp = time.Now().UTC()
	s.entry.DurationMs = time.Since(s.start).Milliseconds()
	s.entry.Outcome = OutcomeSuccess
	if err != nil {
		s.entry.Outcome = OutcomeError
		s.entry.Detail = err.Error()
	}

	if s.repo != nil {
		if saveErr := s.repo.Save(&s.entry); saveErr != nil {
			s.logger.Warn().Err(saveErr).Msg("failed to write audit entry")
		}
	}
	return s.entry
}
