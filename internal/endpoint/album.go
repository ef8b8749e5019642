package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/outbox"
	"github.com/groundupworks/wings/internal/store"
)

// Album endpoint constants.
const (
	AlbumEndpointID = 0

	// AlbumDestinationDefault is the linked account's photo album.
	AlbumDestinationDefault = 0

	albumSettingsPrefix = "album."
	albumKeyAccountName = albumSettingsPrefix + "account_name"
	albumKeyAlbumName   = albumSettingsPrefix + "album_name"
	albumKeyUploadURL   = albumSettingsPrefix + "upload_url"
	albumKeyShareURL    = albumSettingsPrefix + "share_url"
	albumKeyAccessToken = albumSettingsPrefix + "access_token"
)

// Album shares files to a social photo album service. The album's upload URL
// is obtained during linking and stored with the credentials.
type Album struct {
	queue    *outbox.Queue
	settings store.SettingsRepo
	client   *http.Client
}

var _ Endpoint = (*Album)(nil)

// NewAlbum creates the Album endpoint.
func NewAlbum(queue *outbox.Queue, settings store.SettingsRepo) *Album {
	return &Album{
		queue:    queue,
		settings: settings,
		client:   &http.Client{Timeout: defaultUploadTimeout},
	}
}

func (a *Album) EndpointID() int {
	return AlbumEndpointID
}

func (a *Album) Destinations() []models.Destination {
	return []models.Destination{{ID: AlbumDestinationDefault, EndpointID: AlbumEndpointID}}
}

func (a *Album) IsLinked() bool {
	token, err := a.settings.Setting(albumKeyAccessToken)
	if err != nil || token == "" {
		return false
	}
	uploadURL, err := a.settings.Setting(albumKeyUploadURL)
	return err == nil && uploadURL != ""
}

// Link stores validated account params: account_name, album_name, upload_url,
// share_url, access_token.
func (a *Album) Link(params map[string]string) error {
	for _, key := range []string{"account_name", "album_name", "upload_url", "share_url", "access_token"} {
		if params[key] == "" {
			return fmt.Errorf("album link missing %s: %w", key, models.ErrValidation)
		}
	}
	settings := map[string]string{
		albumKeyAccountName: params["account_name"],
		albumKeyAlbumName:   params["album_name"],
		albumKeyUploadURL:   params["upload_url"],
		albumKeyShareURL:    params["share_url"],
		albumKeyAccessToken: params["access_token"],
	}
	for key, value := range settings {
		if err := a.settings.PutSetting(key, value); err != nil {
			return err
		}
	}
	slog.Info("Album.Link: account linked", "account", params["account_name"], "album", params["album_name"])
	return nil
}

func (a *Album) Unlink() error {
	if err := a.settings.DeleteSettings(albumSettingsPrefix); err != nil {
		return err
	}
	for _, dest := range a.Destinations() {
		if err := a.queue.DeleteForDestination(dest); err != nil {
			return err
		}
	}
	slog.Info("Album.Unlink: account unlinked")
	return nil
}

func (a *Album) ProcessShareRequests(ctx context.Context) ([]models.Notification, error) {
	token, err := a.settings.Setting(albumKeyAccessToken)
	if err != nil {
		return nil, err
	}
	uploadURL, err := a.settings.Setting(albumKeyUploadURL)
	if err != nil {
		return nil, err
	}
	if token == "" || uploadURL == "" {
		return nil, nil
	}
	albumName, err := a.settings.Setting(albumKeyAlbumName)
	if err != nil {
		return nil, err
	}
	shareURL, err := a.settings.Setting(albumKeyShareURL)
	if err != nil {
		return nil, err
	}

	dest := models.Destination{ID: AlbumDestinationDefault, EndpointID: AlbumEndpointID}
	shared, revoked, err := drainDestination(ctx, a.queue, dest, func(ctx context.Context, req models.ShareRequest) error {
		return uploadFile(ctx, a.client, uploadURL, token, "source", req.FilePath, nil)
	})
	if err != nil {
		return nil, err
	}

	if revoked {
		slog.Warn("Album.ProcessShareRequests: credentials revoked, unlinking")
		if err := a.Unlink(); err != nil {
			slog.Error("Album.ProcessShareRequests: unlink failed", "error", err)
		}
	}

	var notifications []models.Notification
	if shared > 0 {
		notifications = append(notifications, models.Notification{
			EndpointID: AlbumEndpointID,
			Title:      albumName,
			Message:    fmt.Sprintf("%d photo(s) shared to %s", shared, albumName),
			ShareURL:   shareURL,
			Shared:     shared,
		})
	}
	return notifications, nil
}
