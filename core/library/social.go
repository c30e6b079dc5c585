package library

import (
	"context"

	"LocalFM/core/apperr"
	"LocalFM/model"
)

// Follow adds the signed-in user to target's followers. Following twice
// changes nothing.
func (l *Library) Follow(ctx context.Context, target string) error {
	return l.toggleFollow(ctx, target, true)
}

// Unfollow removes the signed-in user from target's followers. Not following
// is a no-op.
func (l *Library) Unfollow(ctx context.Context, target string) error {
	return l.toggleFollow(ctx, target, false)
}

func (l *Library) toggleFollow(ctx context.Context, target string, follow bool) error {
	if target == "" {
		return apperr.New(apperr.CodeInvalidArgument, "no user to follow")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.requireUserLocked()
	if err != nil {
		return err
	}

	var changed bool
	set := l.doc.Followers[target]
	if follow {
		set, changed = model.AddString(set, u.Username)
	} else {
		set, changed = model.RemoveString(set, u.Username)
	}
	if !changed {
		return nil
	}
	l.doc.Followers[target] = set
	return l.saveLocked(ctx)
}

// Like records that the signed-in user likes songID. Liking twice changes nothing.
func (l *Library) Like(ctx context.Context, songID int64) error {
	return l.toggleLike(ctx, songID, true)
}

// Unlike removes the like. Not liking is a no-op.
func (l *Library) Unlike(ctx context.Context, songID int64) error {
	return l.toggleLike(ctx, songID, false)
}

func (l *Library) toggleLike(ctx context.Context, songID int64, like bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.requireUserLocked()
	if err != nil {
		return err
	}
	if l.doc.SongByID(songID) == nil {
		return apperr.New(apperr.CodeSongNotFound, "song %d not found", songID)
	}

	var changed bool
	set := l.doc.Likes[songID]
	if like {
		set, changed = model.AddString(set, u.Username)
	} else {
		set, changed = model.RemoveString(set, u.Username)
	}
	if !changed {
		return nil
	}
	l.doc.Likes[songID] = set
	return l.saveLocked(ctx)
}

// IsFollowing reports whether the signed-in user follows target.
func (l *Library) IsFollowing(target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return false
	}
	return model.ContainsString(l.doc.Followers[target], l.session.Username)
}

// Followers returns target's followers.
func (l *Library) Followers(target string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.doc.Followers[target]...)
}

func (l *Library) FollowerCount(target string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.doc.Followers[target])
}

// IsLiked reports whether the signed-in user likes songID.
func (l *Library) IsLiked(songID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return false
	}
	return model.ContainsString(l.doc.Likes[songID], l.session.Username)
}

func (l *Library) LikeCount(songID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.doc.Likes[songID])
}
