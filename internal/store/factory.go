package store

import (
	"beacon.app/feedback/core/db"
)

type Stores struct {
	conn db.DBTX
}

// NewStores binds every store to conn, which may be the pool or a transaction.
func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Apps() AppStore {
	return newAppStore(s.conn)
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.conn)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.conn)
}

func (s *Stores) Feedback() FeedbackStore {
	return newFeedbackStore(s.conn)
}
