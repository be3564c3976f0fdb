// Package folders exposes folder browsing and the folder password gate.
package folders

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/signedurl"
)

type Catalog interface {
	CreateFolder(ctx context.Context, folder *database.Folder) error
	GetFolder(ctx context.Context, id string) (*database.Folder, error)
	ListFolders(ctx context.Context) ([]database.FolderSummary, error)
	ListMedia(ctx context.Context, folderID string, opts ...database.ListMediaOption) ([]database.Media, error)
	CountMedia(ctx context.Context, folderID string) (int64, error)
}

type WriteSigner interface {
	IssueWriteCapability(ctx context.Context, desiredName, contentType string) (signedurl.WriteCapability, error)
}

type ServiceParams struct {
	Catalog Catalog
	Links   WriteSigner
	Logger  zerolog.Logger
}

type Service struct {
	catalog Catalog
	links   WriteSigner
	logger  zerolog.Logger
}

func NewService(p ServiceParams) *Service {
	return &Service{
		catalog: p.Catalog,
		links:   p.Links,
		logger:  p.Logger,
	}
}

type CreateRequest struct {
	Name      string
	CreatedBy string
	Password  string
}

func (s *Service) CreateFolder(ctx context.Context, req CreateRequest) (*database.Folder, error) {
	if req.Name == "" || req.CreatedBy == "" {
		return nil, fmt.Errorf("%w: folder name and creator are required", apperr.ErrInvalidArgument)
	}

	folder := &database.Folder{
		Name:      req.Name,
		CreatedBy: req.CreatedBy,
		Password:  req.Password,
	}
	if err := s.catalog.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	s.logger.Info().Object("folder", folder).Msg("folder created")
	return folder, nil
}

func (s *Service) ListFolders(ctx context.Context) ([]database.FolderSummary, error) {
	return s.catalog.ListFolders(ctx)
}

// GetFolder returns a live folder and its live media count. Contents stay
// behind the password gate.
func (s *Service) GetFolder(ctx context.Context, id string) (database.FolderSummary, error) {
	folder, err := s.catalog.GetFolder(ctx, id)
	if err != nil {
		return database.FolderSummary{}, err
	}
	count, err := s.catalog.CountMedia(ctx, id)
	if err != nil {
		return database.FolderSummary{}, err
	}
	return database.FolderSummary{Folder: *folder, MediaCount: count}, nil
}

// VerifyPassword reports whether password opens the folder. Unknown folders
// never verify.
func (s *Service) VerifyPassword(ctx context.Context, id, password string) (bool, error) {
	folder, err := s.catalog.GetFolder(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn().Str("folder", id).Msg("password check for unknown folder")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return folder.PasswordMatches(password), nil
}

// ListMedia returns the live media of a folder, newest first.
func (s *Service) ListMedia(ctx context.Context, folderID, password string) ([]database.Media, error) {
	if _, err := s.Unlock(ctx, folderID, password); err != nil {
		return nil, err
	}
	return s.catalog.ListMedia(ctx, folderID, database.WithNewestFirst())
}

type UploadRequest struct {
	Filename    string
	ContentType string
	Type        string
}

type UploadLink struct {
	URL         string
	Filename    string
	ContentType string
	Type        database.MediaType
}

// UploadLinks issues one upload link per request. Every request is validated
// before any link is issued.
func (s *Service) UploadLinks(ctx context.Context, folderID, password string, reqs []UploadRequest) ([]UploadLink, error) {
	if _, err := s.Unlock(ctx, folderID, password); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no files requested", apperr.ErrInvalidArgument)
	}

	types := make([]database.MediaType, len(reqs))
	for i, req := range reqs {
		if req.Filename == "" || req.ContentType == "" {
			return nil, fmt.Errorf("%w: filename and content type are required (item %d)", apperr.ErrInvalidArgument, i)
		}
		mediaType, err := database.ParseMediaType(req.Type)
		if err != nil {
			return nil, err
		}
		types[i] = mediaType
	}

	links := make([]UploadLink, 0, len(reqs))
	for i, req := range reqs {
		capability, err := s.links.IssueWriteCapability(ctx, req.Filename, req.ContentType)
		if err != nil {
			return nil, err
		}
		links = append(links, UploadLink{
			URL:         capability.URL,
			Filename:    capability.Filename,
			ContentType: req.ContentType,
			Type:        types[i],
		})
	}

	s.logger.Debug().Str("folder", folderID).Int("count", len(links)).Msg("issued upload links")
	return links, nil
}

// Unlock returns the folder if password opens it.
func (s *Service) Unlock(ctx context.Context, folderID, password string) (*database.Folder, error) {
	folder, err := s.catalog.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !folder.PasswordMatches(password) {
		return nil, fmt.Errorf("%w: wrong password for folder %s", apperr.ErrUnauthorized, folderID)
	}
	return folder, nil
}
