package ports

import "github.com/layer-3/tokengate/core"

// SessionTokenizer converts between granted sessions and bearer tokens
type SessionTokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
