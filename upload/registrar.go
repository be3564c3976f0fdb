// Package upload records media once a client reports its direct upload finished.
package upload

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/database"
)

type Catalog interface {
	GetFolder(ctx context.Context, id string) (*database.Folder, error)
	CreateMedia(ctx context.Context, media *database.Media) error
}

type ReadSigner interface {
	MediaReadURL(ctx context.Context, filename string) (string, error)
}

type RegistrarParams struct {
	Catalog Catalog
	Links   ReadSigner
	Logger  zerolog.Logger
}

type Registrar struct {
	catalog Catalog
	links   ReadSigner
	logger  zerolog.Logger
}

func NewRegistrar(p RegistrarParams) *Registrar {
	return &Registrar{
		catalog: p.Catalog,
		links:   p.Links,
		logger:  p.Logger,
	}
}

type ConfirmRequest struct {
	FolderID   string
	Type       string
	UploadedBy string
	// Filename is the final name handed out with the upload link.
	Filename string
}

// ConfirmUpload mints the media row for a blob the client says it uploaded.
// The blob itself is not checked.
func (r *Registrar) ConfirmUpload(ctx context.Context, req ConfirmRequest) (*database.Media, error) {
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", apperr.ErrInvalidArgument)
	}
	if req.FolderID == "" {
		return nil, fmt.Errorf("%w: folder id is required", apperr.ErrInvalidArgument)
	}
	mediaType, err := database.ParseMediaType(req.Type)
	if err != nil {
		return nil, err
	}

	if _, err := r.catalog.GetFolder(ctx, req.FolderID); err != nil {
		return nil, err
	}

	link, err := r.links.MediaReadURL(ctx, req.Filename)
	if err != nil {
		return nil, err
	}

	media := &database.Media{
		FolderID:         req.FolderID,
		URL:              link,
		Type:             mediaType,
		UploadedBy:       req.UploadedBy,
		OriginalFilename: req.Filename,
	}
	if err := r.catalog.CreateMedia(ctx, media); err != nil {
		return nil, err
	}

	r.logger.Info().Object("media", media).Msg("upload confirmed")
	return media, nil
}
