// Package session holds the authenticated user context. The session is an
// explicit value threaded into the backend client rather than ambient
// process state: it is loaded once at startup and cleared on logout.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Session identifies the logged-in user for backend calls. The zero value
// is the anonymous session: no Authorization header is sent.
type Session struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// Anonymous reports whether no user is logged in.
func (s Session) Anonymous() bool {
	return s.Token == ""
}

// AuthorizationHeader returns the bearer header value, or "" for the
// anonymous session.
func (s Session) AuthorizationHeader() string {
	if s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

// Load reads a stored session from path. A missing file yields the
// anonymous session, not an error. The AGRIAGENT_TOKEN environment
// variable, when set, overrides the stored token.
func Load(path string) (Session, error) {
	var s Session

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env override
	case err != nil:
		return Session{}, eris.Wrap(err, "session: read file")
	default:
		if err := json.Unmarshal(data, &s); err != nil {
			return Session{}, eris.Wrap(err, "session: parse file")
		}
	}

	if tok := os.Getenv("AGRIAGENT_TOKEN"); tok != "" {
		s.Token = tok
	}
	return s, nil
}

// Save persists the session to path with owner-only permissions.
func Save(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "session: create dir")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "session: marshal")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return eris.Wrap(err, "session: write file")
	}
	return nil
}

// Clear removes the stored session. Clearing an absent session is not an
// error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "session: remove file")
	}
	return nil
}
