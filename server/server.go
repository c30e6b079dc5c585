// Package server exposes the session over HTTP for local consumers: live
// asset handles, a small JSON API and a websocket of player state.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"LocalFM/core/app"
	"LocalFM/logger"

	"github.com/gorilla/mux"
)

// Server routes requests into one App.
type Server struct {
	app    *app.App
	hub    *StateHub
	router *mux.Router

	cancelRelay func()
	relayDone   chan struct{}
}

// New builds the router and starts relaying engine state to websocket clients.
// Call Close when done.
func New(a *app.App) *Server {
	s := &Server{
		app:       a,
		hub:       NewStateHub(),
		router:    mux.NewRouter(),
		relayDone: make(chan struct{}),
	}
	s.routes()
	go s.hub.Run()

	states, cancel := a.Engine.Subscribe()
	s.cancelRelay = cancel
	go func() {
		defer close(s.relayDone)
		for st := range states {
			if err := s.hub.BroadcastState(st); err != nil {
				logger.Warn("广播播放状态失败", logger.ErrorField(err))
			}
		}
	}()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/handles/{id}", s.handleHandle).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/handles/{id}", s.authMiddleware(s.handleReleaseHandle)).Methods(http.MethodDelete)
	r.HandleFunc("/ws/state", s.handleStateWS).Methods(http.MethodGet)

	// 用户认证相关的API端点
	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.authMiddleware(s.handleLogout)).Methods(http.MethodPost)

	r.HandleFunc("/api/songs", s.handleSongs).Methods(http.MethodGet)
	r.HandleFunc("/api/songs/{id}/cover", s.handleSongCover).Methods(http.MethodGet)
	r.HandleFunc("/api/songs/{id}/like", s.authMiddleware(s.handleLike)).Methods(http.MethodPost, http.MethodDelete)
	r.HandleFunc("/api/users/{username}/follow", s.authMiddleware(s.handleFollow)).Methods(http.MethodPost, http.MethodDelete)
	r.HandleFunc("/api/playlists", s.authMiddleware(s.handlePlaylists)).Methods(http.MethodGet, http.MethodPost)

	// 播放控制
	r.HandleFunc("/api/player", s.handlePlayerState).Methods(http.MethodGet)
	r.HandleFunc("/api/player/play", s.authMiddleware(s.handlePlay)).Methods(http.MethodPost)
	r.HandleFunc("/api/player/{action}", s.authMiddleware(s.handlePlayerAction)).Methods(http.MethodPost)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("服务器已停止")
	return nil
}

// Close stops the relay and disconnects every websocket client.
func (s *Server) Close() {
	s.cancelRelay()
	<-s.relayDone
	s.hub.Stop()
}
