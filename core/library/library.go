// Package library holds the in-memory metadata document for a session and
// every operation that mutates it. Each mutation is saved before it returns.
package library

import (
	"context"
	"strings"
	"sync"
	"time"

	"LocalFM/core/apperr"
	"LocalFM/core/auth"
	"LocalFM/core/upload"
	"LocalFM/logger"
	"LocalFM/model"
	"LocalFM/repository"
	"LocalFM/storage"
)

// Session is the signed-in user. It lives in memory only.
type Session struct {
	UserID   int64
	Username string
	Token    string
}

// Library serialises access to the document. Mutate-then-save runs under one
// lock, so handlers never interleave their updates.
type Library struct {
	store     *repository.MetadataStore
	blobs     storage.BlobStore
	auth      *auth.Authenticator
	processor *upload.Processor
	now       func() time.Time

	mu      sync.Mutex
	doc     *model.Document
	session *Session
}

// New wraps an already loaded document.
func New(doc *model.Document, store *repository.MetadataStore, blobs storage.BlobStore, authn *auth.Authenticator, processor *upload.Processor) *Library {
	doc.Normalize()
	return &Library{
		store:     store,
		blobs:     blobs,
		auth:      authn,
		processor: processor,
		now:       time.Now,
		doc:       doc,
	}
}

// saveLocked persists the document. Callers hold l.mu.
func (l *Library) saveLocked(ctx context.Context) error {
	if err := l.store.Save(ctx, l.doc); err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "failed to save library")
	}
	return nil
}

// requireUserLocked returns the signed-in user or NOT_SIGNED_IN.
func (l *Library) requireUserLocked() (*model.User, error) {
	if l.session == nil {
		return nil, apperr.New(apperr.CodeNotSignedIn, "sign in first")
	}
	u := l.doc.UserByUsername(l.session.Username)
	if u == nil {
		return nil, apperr.New(apperr.CodeNotSignedIn, "signed-in user no longer exists")
	}
	return u, nil
}

// Register creates a user. An existing username fails with USERNAME_EXISTS and
// leaves the users untouched.
func (l *Library) Register(ctx context.Context, username, password, displayName string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "username and password are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.doc.UserByUsername(username) != nil {
		return nil, apperr.New(apperr.CodeUsernameExists, "username %q is taken", username)
	}
	hash, err := l.auth.Hash(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, err, "password rejected")
	}
	if displayName == "" {
		displayName = username
	}
	u := &model.User{
		ID:           l.doc.AllocateID(model.KindUser),
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    l.now().UTC(),
	}
	l.doc.Users = append(l.doc.Users, u)
	if err := l.saveLocked(ctx); err != nil {
		return nil, err
	}
	logger.Info("用户注册成功", logger.String("username", username), logger.Int64("userId", u.ID))
	cp := *u
	return &cp, nil
}

// Login signs username in. Any mismatch, including letter case, fails with
// INVALID_CREDENTIALS.
func (l *Library) Login(ctx context.Context, username, password string) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.doc.UserByUsername(username)
	if u == nil || !l.auth.Check(password, u.PasswordHash) {
		logger.Debug("登录被拒绝", logger.String("username", username))
		return Session{}, apperr.New(apperr.CodeInvalidCredentials, "invalid username or password")
	}
	token, err := l.auth.Issue(u.ID, u.Username)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.CodeStorage, err, "cannot issue session token")
	}
	l.session = &Session{UserID: u.ID, Username: u.Username, Token: token}
	logger.Info("用户登录成功", logger.String("username", u.Username))
	return *l.session, nil
}

// Logout ends the session. It is a no-op when nobody is signed in.
func (l *Library) Logout() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = nil
}

// CurrentUser returns a copy of the signed-in user.
func (l *Library) CurrentUser() (model.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.requireUserLocked()
	if err != nil {
		return model.User{}, false
	}
	return *u, true
}

// Session returns the active session.
func (l *Library) Session() (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return Session{}, false
	}
	return *l.session, true
}

// Song returns a copy of the song with id.
func (l *Library) Song(id int64) (model.Song, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.doc.SongByID(id)
	if s == nil {
		return model.Song{}, false
	}
	return *s, true
}

// RecordPlay moves songID to the front of the recently played list and saves.
func (l *Library) RecordPlay(ctx context.Context, songID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc.PushRecentlyPlayed(songID)
	return l.saveLocked(ctx)
}

// RecentlyPlayed returns the most-recent-first play history.
func (l *Library) RecentlyPlayed() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64{}, l.doc.RecentlyPlayed...)
}

// View runs fn with the document under the library lock. fn must not keep
// references past its return or modify the document.
func (l *Library) View(fn func(doc *model.Document)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.doc)
}
