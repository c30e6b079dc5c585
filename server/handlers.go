package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"LocalFM/core/apperr"
	"LocalFM/core/assets"
	"LocalFM/logger"
	"LocalFM/model"

	"github.com/gorilla/mux"
)

type userView struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	SuperAdmin  bool   `json:"superAdmin"`
}

type songView struct {
	model.Song
	Likes int `json:"likes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"handles": s.app.Resolver.Live(),
	})
}

// handleHandle streams a live handle. Released or unknown handles are 404.
func (s *Server) handleHandle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(mux.Vars(r)["id"], assets.URLPrefix)
	body, h, ok := s.app.Resolver.Open(id)
	if !ok {
		http.Error(w, "Handle not found", http.StatusNotFound)
		return
	}
	if h.ContentType != "" {
		w.Header().Set("Content-Type", h.ContentType)
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", h.CreatedAt, body)
}

func (s *Server) handleReleaseHandle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(mux.Vars(r)["id"], assets.URLPrefix)
	if !s.app.Resolver.ReleaseID(id) {
		http.Error(w, "Handle not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := s.app.Library.Register(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userView{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := s.app.Library.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	u, _ := s.app.Library.CurrentUser()
	writeJSON(w, http.StatusOK, map[string]any{
		"token": session.Token,
		"user":  userView{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, SuperAdmin: u.SuperAdmin},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		logger.Info("用户已登出", logger.String("user", claims.Username))
	}
	s.app.Library.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	var out []songView
	s.app.Library.View(func(doc *model.Document) {
		out = make([]songView, 0, len(doc.Songs))
		for _, song := range doc.Songs {
			out = append(out, songView{Song: *song, Likes: len(doc.Likes[song.ID])})
		}
	})
	writeJSON(w, http.StatusOK, out)
}

// handleSongCover resolves a cover handle. A missing cover is an empty url,
// which clients draw as the placeholder. The caller releases the handle with
// DELETE /handles/{id}.
func (s *Server) handleSongCover(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "bad song id"))
		return
	}
	song, ok := s.app.Library.Song(id)
	if !ok {
		writeError(w, apperr.New(apperr.CodeSongNotFound, "song %d not found", id))
		return
	}
	h, url, err := s.app.Resolver.ResolveURL(r.Context(), song.CoverAssetID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]string{"url": url}
	if h != nil {
		resp["href"] = "/handles/" + h.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "bad song id"))
		return
	}
	if r.Method == http.MethodDelete {
		err = s.app.Library.Unlike(r.Context(), id)
	} else {
		err = s.app.Library.Like(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"liked": s.app.Library.IsLiked(id),
		"likes": s.app.Library.LikeCount(id),
	})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["username"]
	var err error
	if r.Method == http.MethodDelete {
		err = s.app.Library.Unfollow(r.Context(), target)
	} else {
		err = s.app.Library.Follow(r.Context(), target)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"following": s.app.Library.IsFollowing(target),
		"followers": s.app.Library.FollowerCount(target),
	})
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.app.Library.VisiblePlaylists())
		return
	}
	var req struct {
		Name    string `json:"name"`
		Owner   string `json:"owner"`
		Private bool   `json:"private"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.app.Library.CreatePlaylist(r.Context(), req.Name, req.Owner, req.Private)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Engine.State())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	cmd.Type = CmdPlay
	s.respondControl(w, r.Context(), cmd)
}

func (s *Server) handlePlayerAction(w http.ResponseWriter, r *http.Request) {
	cmd := Command{Type: CommandType(mux.Vars(r)["action"])}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &cmd); err != nil {
			writeError(w, err)
			return
		}
		cmd.Type = CommandType(mux.Vars(r)["action"])
	}
	s.respondControl(w, r.Context(), cmd)
}

func (s *Server) respondControl(w http.ResponseWriter, ctx context.Context, cmd Command) {
	if err := s.control(ctx, cmd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Engine.State())
}

// CommandType names a player control.
type CommandType string

const (
	CmdPlay   CommandType = "play"
	CmdToggle CommandType = "toggle"
	CmdNext   CommandType = "next"
	CmdPrev   CommandType = "prev"
	CmdSeek   CommandType = "seek"
	CmdVolume CommandType = "volume"
	CmdPing   CommandType = "ping"
)

// Command is a player control request, over HTTP or the state websocket.
type Command struct {
	Type   CommandType `json:"type"`
	SongID int64       `json:"songId,omitempty"`
	Queue  []int64     `json:"queue,omitempty"`
	Value  float64     `json:"value,omitempty"`
}

// control routes a command to the engine, the only owner of the output.
func (s *Server) control(ctx context.Context, cmd Command) error {
	e := s.app.Engine
	switch cmd.Type {
	case CmdPlay:
		return e.Play(ctx, cmd.SongID, cmd.Queue)
	case CmdToggle:
		return e.Toggle()
	case CmdNext:
		return e.Next(ctx)
	case CmdPrev:
		return e.Prev(ctx)
	case CmdSeek:
		return e.Seek(cmd.Value)
	case CmdVolume:
		return e.SetVolume(cmd.Value)
	default:
		return apperr.New(apperr.CodeInvalidArgument, "unknown command %q", cmd.Type)
	}
}
