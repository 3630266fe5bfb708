// Package session keeps the signed in feature service session across
// restarts.
package session

import (
	"errors"
	"time"

	"github.com/tidwall/buntdb"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Key is the store key the session is kept under.
const Key = "__ARCGIS_REST_USER_SESSION__"

// ErrNoSession is returned when nobody is signed in or the token expired.
var ErrNoSession = errors.New("not signed in")

// Session is an authenticated feature service session.
type Session struct {
	Username string    `json:"username"`
	Token    string    `json:"token"`
	Expires  time.Time `json:"expires"`
	Portal   string    `json:"portal"`
	ClientID string    `json:"client_id"`
}

// Valid returns true when the session has a token that has not expired.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.Expires)
}

func (s *Session) marshal() (string, error) {
	json := `{}`
	var err error
	for _, kv := range []struct {
		key string
		val interface{}
	}{
		{"username", s.Username},
		{"token", s.Token},
		{"expires", s.Expires.UnixMilli()},
		{"portal", s.Portal},
		{"client_id", s.ClientID},
	} {
		if json, err = sjson.Set(json, kv.key, kv.val); err != nil {
			return "", err
		}
	}
	return json, nil
}

func unmarshal(json string) (*Session, error) {
	if !gjson.Valid(json) {
		return nil, errors.New("corrupt session")
	}
	res := gjson.Parse(json)
	return &Session{
		Username: res.Get("username").String(),
		Token:    res.Get("token").String(),
		Expires:  time.UnixMilli(res.Get("expires").Int()),
		Portal:   res.Get("portal").String(),
		ClientID: res.Get("client_id").String(),
	}, nil
}

// Store persists a single session in a buntdb file.
type Store struct {
	db  *buntdb.DB
	now func() time.Time
}

// Open opens the store at path. Use ":memory:" for a store that is not
// persisted.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored session, or ErrNoSession when there is none or it
// has expired.
func (s *Store) Load() (*Session, error) {
	var sess *Session
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(Key)
		if err != nil {
			if err == buntdb.ErrNotFound {
				return ErrNoSession
			}
			return err
		}
		sess, err = unmarshal(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sess.Valid(s.now()) {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Save stores sess. The entry expires with the token.
func (s *Store) Save(sess *Session) error {
	ttl := sess.Expires.Sub(s.now())
	if sess.Token == "" || ttl <= 0 {
		return ErrNoSession
	}
	val, err := sess.marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(Key, val, &buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
}

// Clear removes the stored session. Clearing an empty store is not an
// error.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(Key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// Token returns the token of the stored session.
func (s *Store) Token() (string, error) {
	sess, err := s.Load()
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}
