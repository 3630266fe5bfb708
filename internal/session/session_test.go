package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidwall/assert"
)

func memStore(t *testing.T) *Store {
	s, err := Open(":memory:")
	assert.Assert(err == nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestValid(t *testing.T) {
	now := time.Now()
	var nilSession *Session
	assert.Assert(!nilSession.Valid(now))
	assert.Assert(!(&Session{Expires: now.Add(time.Hour)}).Valid(now))
	assert.Assert(!(&Session{Token: "x", Expires: now.Add(-time.Second)}).Valid(now))
	assert.Assert((&Session{Token: "x", Expires: now.Add(time.Hour)}).Valid(now))
}

func TestStoreRoundTrip(t *testing.T) {
	s := memStore(t)
	_, err := s.Load()
	assert.Assert(errors.Is(err, ErrNoSession))

	in := &Session{
		Username: "parks_editor",
		Token:    "abc.def",
		Expires:  time.Now().Add(time.Hour).Truncate(time.Millisecond),
		Portal:   "https://www.arcgis.com",
		ClientID: "2sTSmcY1sy7bTbRt",
	}
	assert.Assert(s.Save(in) == nil)
	out, err := s.Load()
	assert.Assert(err == nil)
	assert.Assert(out.Username == in.Username && out.Token == in.Token)
	assert.Assert(out.Portal == in.Portal && out.ClientID == in.ClientID)
	assert.Assert(out.Expires.Equal(in.Expires))
	tok, err := s.Token()
	assert.Assert(err == nil && tok == "abc.def")

	assert.Assert(s.Clear() == nil)
	_, err = s.Load()
	assert.Assert(errors.Is(err, ErrNoSession))
	assert.Assert(s.Clear() == nil)
}

func TestStoreExpired(t *testing.T) {
	s := memStore(t)
	assert.Assert(errors.Is(s.Save(&Session{Token: "x", Expires: time.Now().Add(-time.Minute)}), ErrNoSession))

	assert.Assert(s.Save(&Session{Token: "x", Expires: time.Now().Add(time.Hour)}) == nil)
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := s.Load()
	assert.Assert(errors.Is(err, ErrNoSession))
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := Open(path)
	assert.Assert(err == nil)
	assert.Assert(s.Save(&Session{Username: "u", Token: "t", Expires: time.Now().Add(time.Hour)}) == nil)
	assert.Assert(s.Close() == nil)

	s, err = Open(path)
	assert.Assert(err == nil)
	defer s.Close()
	sess, err := s.Load()
	assert.Assert(err == nil && sess.Username == "u")
}

func TestSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Assert(r.URL.Path == "/sharing/rest/oauth2/token")
		r.ParseForm()
		if r.PostForm.Get("client_secret") != "shh" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		assert.Assert(r.PostForm.Get("grant_type") == "client_credentials")
		assert.Assert(r.PostForm.Get("client_id") == "app")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":7200}`))
	}))
	defer srv.Close()

	a := &Authenticator{Portal: srv.URL + "/", ClientID: "app", ClientSecret: "shh", HTTP: srv.Client()}
	sess, err := a.SignIn(context.Background())
	assert.Assert(err == nil)
	assert.Assert(sess.Token == "tok-1")
	assert.Assert(sess.Username == "app")
	assert.Assert(sess.Valid(time.Now()))
	assert.Assert(sess.Expires.After(time.Now().Add(time.Hour)))

	a.ClientSecret = "wrong"
	_, err = a.SignIn(context.Background())
	assert.Assert(err != nil)

	_, err = (&Authenticator{Portal: srv.URL}).SignIn(context.Background())
	assert.Assert(err != nil)
}
