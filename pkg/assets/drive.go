// Package assets fetches referenced audio by id from Google Drive, S3 or a
// local directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type DriveStore struct {
	service *drive.Service
}

func NewDriveService(ctx context.Context, opts ...option.ClientOption) (*drive.Service, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return service, nil
}

func NewDriveStore(service *drive.Service) (*DriveStore, error) {
	if service == nil {
		return nil, utils.WrapIfNotNil(errors.New("drive service is required"))
	}
	return &DriveStore{service: service}, nil
}

func (d *DriveStore) FetchBytes(ctx context.Context, assetID string) ([]byte, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, utils.WrapIfNotNil(errors.New("asset id is required"))
	}
	logging.NewLogger(ctx).Infof("drive_download file_id=%q", assetID)

	resp, err := d.service.Files.Get(assetID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, utils.WrapIfNotNil(classifyDriveError(err), assetID)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, assetID)
	}
	return data, nil
}

func classifyDriveError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", model.ErrAssetNotFound, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", model.ErrAssetAuth, err)
	}
	return err
}

var _ model.AssetStore = (*DriveStore)(nil)
