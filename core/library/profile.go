package library

import (
	"context"

	"LocalFM/core/apperr"
	"LocalFM/model"
)

// UpdateProfile changes the signed-in user's display name and bio. An empty
// display name keeps the current one.
func (l *Library) UpdateProfile(ctx context.Context, displayName, bio string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.requireUserLocked()
	if err != nil {
		return err
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	u.Bio = bio
	return l.saveLocked(ctx)
}

// SetProfileImage stores image as the signed-in user's picture.
func (l *Library) SetProfileImage(ctx context.Context, image []byte) error {
	blob, err := l.processor.PrepareAvatar(image)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.requireUserLocked()
	if err != nil {
		return err
	}
	id := model.UserImageAsset(u.ID)
	if err := l.blobs.Put(ctx, id, blob); err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "failed to store profile image")
	}
	u.ImageAssetID = id
	return l.saveLocked(ctx)
}

// User returns a copy of the user with username.
func (l *Library) User(username string) (model.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.doc.UserByUsername(username)
	if u == nil {
		return model.User{}, false
	}
	return *u, true
}
