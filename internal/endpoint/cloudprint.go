package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/groundupworks/wings/internal/models"
	"github.com/groundupworks/wings/internal/outbox"
	"github.com/groundupworks/wings/internal/store"
)

// CloudPrint endpoint constants.
const (
	CloudPrintEndpointID = 2

	// maxPrinters bounds the destination id range scanned for configured
	// printers.
	maxPrinters = 8

	cloudPrintSettingsPrefix = "cloudprint."
	cloudPrintKeyAccessToken = cloudPrintSettingsPrefix + "access_token"
	cloudPrintKeyAccountName = cloudPrintSettingsPrefix + "account_name"
	cloudPrintKeyPrinter     = cloudPrintSettingsPrefix + "printer." // + destination id
)

// CloudPrint submits files as print jobs to a cloud print queue. Each
// configured printer is a distinct destination within the endpoint.
type CloudPrint struct {
	queue    *outbox.Queue
	settings store.SettingsRepo
	client   *http.Client
	baseURL  string
}

var _ Endpoint = (*CloudPrint)(nil)

// NewCloudPrint creates the CloudPrint endpoint. baseURL is the print service
// API root.
func NewCloudPrint(queue *outbox.Queue, settings store.SettingsRepo, baseURL string) *CloudPrint {
	return &CloudPrint{
		queue:    queue,
		settings: settings,
		client:   &http.Client{Timeout: defaultUploadTimeout},
		baseURL:  baseURL,
	}
}

func (c *CloudPrint) EndpointID() int {
	return CloudPrintEndpointID
}

// Destinations returns one destination per configured printer, ordered by
// destination id.
func (c *CloudPrint) Destinations() []models.Destination {
	var dests []models.Destination
	for id := 0; id < maxPrinters; id++ {
		printer, err := c.settings.Setting(cloudPrintKeyPrinter + strconv.Itoa(id))
		if err != nil || printer == "" {
			continue
		}
		dests = append(dests, models.Destination{ID: id, EndpointID: CloudPrintEndpointID})
	}
	return dests
}

func (c *CloudPrint) IsLinked() bool {
	token, err := c.settings.Setting(cloudPrintKeyAccessToken)
	if err != nil || token == "" {
		return false
	}
	return len(c.Destinations()) > 0
}

// Link stores validated account params: account_name, access_token,
// printer_id, and an optional destination_id (defaults to 0). Linking a
// second printer under a new destination id adds a destination rather than
// replacing the account.
func (c *CloudPrint) Link(params map[string]string) error {
	for _, key := range []string{"account_name", "access_token", "printer_id"} {
		if params[key] == "" {
			return fmt.Errorf("cloudprint link missing %s: %w", key, models.ErrValidation)
		}
	}
	destID := 0
	if v := params["destination_id"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= maxPrinters {
			return fmt.Errorf("cloudprint link destination_id %q out of range: %w", v, models.ErrValidation)
		}
		destID = n
	}
	if err := c.settings.PutSetting(cloudPrintKeyAccountName, params["account_name"]); err != nil {
		return err
	}
	if err := c.settings.PutSetting(cloudPrintKeyAccessToken, params["access_token"]); err != nil {
		return err
	}
	if err := c.settings.PutSetting(cloudPrintKeyPrinter+strconv.Itoa(destID), params["printer_id"]); err != nil {
		return err
	}
	slog.Info("CloudPrint.Link: printer linked", "account", params["account_name"], "destination", destID)
	return nil
}

func (c *CloudPrint) Unlink() error {
	// Capture destinations before the settings that define them are gone.
	dests := c.Destinations()
	if err := c.settings.DeleteSettings(cloudPrintSettingsPrefix); err != nil {
		return err
	}
	for _, dest := range dests {
		if err := c.queue.DeleteForDestination(dest); err != nil {
			return err
		}
	}
	slog.Info("CloudPrint.Unlink: account unlinked")
	return nil
}

func (c *CloudPrint) ProcessShareRequests(ctx context.Context) ([]models.Notification, error) {
	token, err := c.settings.Setting(cloudPrintKeyAccessToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	var notifications []models.Notification
	revokedAny := false
	for _, dest := range c.Destinations() {
		printer, err := c.settings.Setting(cloudPrintKeyPrinter + strconv.Itoa(dest.ID))
		if err != nil {
			return notifications, err
		}

		shared, revoked, err := drainDestination(ctx, c.queue, dest, func(ctx context.Context, req models.ShareRequest) error {
			fields := map[string]string{
				"printerid": printer,
				"title":     "Wings photo",
			}
			return uploadFile(ctx, c.client, c.baseURL+"/submit", token, "content", req.FilePath, fields)
		})
		if err != nil {
			return notifications, err
		}
		revokedAny = revokedAny || revoked

		if shared > 0 {
			notifications = append(notifications, models.Notification{
				EndpointID: CloudPrintEndpointID,
				Title:      "Cloud Print",
				Message:    fmt.Sprintf("%d photo(s) sent to printer", shared),
				Shared:     shared,
			})
		}
		if revoked {
			break
		}
	}

	if revokedAny {
		slog.Warn("CloudPrint.ProcessShareRequests: credentials revoked, unlinking")
		if err := c.Unlink(); err != nil {
			slog.Error("CloudPrint.ProcessShareRequests: unlink failed", "error", err)
		}
	}
	return notifications, nil
}
