package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/outbox"
	"github.com/groundupworks/wings/internal/store"
)

// Dropbox endpoint constants.
const (
	DropboxEndpointID = 1

	// DropboxDestinationAppFolder is the single Dropbox destination: the
	// app's own folder.
	DropboxDestinationAppFolder = 0

	dropboxSettingsPrefix = "dropbox."
	dropboxKeyAccountName = dropboxSettingsPrefix + "account_name"
	dropboxKeyShareURL    = dropboxSettingsPrefix + "share_url"
	dropboxKeyAccessToken = dropboxSettingsPrefix + "access_token"
)

// defaultUploadTimeout bounds a single file upload so one hung transfer
// cannot stall the drain cycle forever.
const defaultUploadTimeout = 5 * time.Minute

// Dropbox shares files to a Dropbox-style folder service over HTTP.
type Dropbox struct {
	queue    *outbox.Queue
	settings store.SettingsRepo
	client   *http.Client
	baseURL  string
}

var _ Endpoint = (*Dropbox)(nil)

// NewDropbox creates the Dropbox endpoint. baseURL is the service API root.
func NewDropbox(queue *outbox.Queue, settings store.SettingsRepo, baseURL string) *Dropbox {
	return &Dropbox{
		queue:    queue,
		settings: settings,
		client:   &http.Client{Timeout: defaultUploadTimeout},
		baseURL:  baseURL,
	}
}

func (d *Dropbox) EndpointID() int {
	return DropboxEndpointID
}

func (d *Dropbox) Destinations() []models.Destination {
	return []models.Destination{{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}}
}

// IsLinked reports whether a usable access token and share URL are stored.
// Settings read errors are treated as unlinked.
func (d *Dropbox) IsLinked() bool {
	token, err := d.settings.Setting(dropboxKeyAccessToken)
	if err != nil || token == "" {
		return false
	}
	shareURL, err := d.settings.Setting(dropboxKeyShareURL)
	return err == nil && shareURL != ""
}

// Link stores validated account params: account_name, share_url, access_token.
func (d *Dropbox) Link(params map[string]string) error {
	for _, key := range []string{"account_name", "share_url", "access_token"} {
		if params[key] == "" {
			return fmt.Errorf("dropbox link missing %s: %w", key, models.ErrValidation)
		}
	}
	if err := d.settings.PutSetting(dropboxKeyAccountName, params["account_name"]); err != nil {
		return err
	}
	if err := d.settings.PutSetting(dropboxKeyShareURL, params["share_url"]); err != nil {
		return err
	}
	if err := d.settings.PutSetting(dropboxKeyAccessToken, params["access_token"]); err != nil {
		return err
	}
	slog.Info("Dropbox.Link: account linked", "account", params["account_name"])
	return nil
}

// Unlink clears stored credentials and deletes this endpoint's queued
// records, so the next cycle does not keep trying against dead credentials.
func (d *Dropbox) Unlink() error {
	if err := d.settings.DeleteSettings(dropboxSettingsPrefix); err != nil {
		return err
	}
	for _, dest := range d.Destinations() {
		if err := d.queue.DeleteForDestination(dest); err != nil {
			return err
		}
	}
	slog.Info("Dropbox.Unlink: account unlinked")
	return nil
}

func (d *Dropbox) ProcessShareRequests(ctx context.Context) ([]models.Notification, error) {
	token, err := d.settings.Setting(dropboxKeyAccessToken)
	if err != nil {
		return nil, err
	}
	shareURL, err := d.settings.Setting(dropboxKeyShareURL)
	if err != nil {
		return nil, err
	}
	if token == "" || shareURL == "" {
		return nil, nil
	}

	dest := models.Destination{ID: DropboxDestinationAppFolder, EndpointID: DropboxEndpointID}
	shared, revoked, err := drainDestination(ctx, d.queue, dest, func(ctx context.Context, req models.ShareRequest) error {
		return uploadFile(ctx, d.client, d.baseURL+"/files/upload", token, "file", req.FilePath, nil)
	})
	if err != nil {
		return nil, err
	}

	if revoked {
		slog.Warn("Dropbox.ProcessShareRequests: credentials revoked, unlinking")
		if err := d.Unlink(); err != nil {
			slog.Error("Dropbox.ProcessShareRequests: unlink failed", "error", err)
		}
	}

	var notifications []models.Notification
	if shared > 0 {
		notifications = append(notifications, models.Notification{
			EndpointID: DropboxEndpointID,
			Title:      "Dropbox",
			Message:    fmt.Sprintf("%d photo(s) shared to Dropbox", shared),
			ShareURL:   shareURL,
			Shared:     shared,
		})
	}
	return notifications, nil
}
