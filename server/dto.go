package server

import (
	"time"

	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/folders"
)

// Passwords never leave the server, only whether one is set.
type folderResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedBy   string    `json:"createdBy"`
	HasPassword bool      `json:"hasPassword"`
	MediaCount  int64     `json:"mediaCount"`
	ZipURL      string    `json:"zipUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newFolderResponse(f *database.Folder, mediaCount int64) folderResponse {
	return folderResponse{
		ID:          f.ID,
		Name:        f.Name,
		CreatedBy:   f.CreatedBy,
		HasPassword: f.HasPassword(),
		MediaCount:  mediaCount,
		ZipURL:      f.ZipURL,
		CreatedAt:   f.CreatedAt,
	}
}

type mediaResponse struct {
	ID               string    `json:"id"`
	FolderID         string    `json:"folderId"`
	URL              string    `json:"url"`
	Type             string    `json:"type"`
	UploadedBy       string    `json:"uploadedBy,omitempty"`
	OriginalFilename string    `json:"originalFilename"`
	ThumbnailURL     string    `json:"thumbnailUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func newMediaResponse(m *database.Media) mediaResponse {
	return mediaResponse{
		ID:               m.ID,
		FolderID:         m.FolderID,
		URL:              m.URL,
		Type:             string(m.Type),
		UploadedBy:       m.UploadedBy,
		OriginalFilename: m.OriginalFilename,
		ThumbnailURL:     m.ThumbnailURL,
		CreatedAt:        m.CreatedAt,
	}
}

type createFolderRequest struct {
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	Password  string `json:"password"`
}

type verifyRequest struct {
	Password string `json:"password"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

type archiveResponse struct {
	URL  string `json:"zipUrl"`
	Hash string `json:"zipHash"`
}

type uploadLinkRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Type        string `json:"type"`
}

type uploadLinkResponse struct {
	SignedURL   string `json:"signedUrl"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Type        string `json:"type"`
}

func newUploadLinkResponse(l folders.UploadLink) uploadLinkResponse {
	return uploadLinkResponse{
		SignedURL:   l.URL,
		Filename:    l.Filename,
		ContentType: l.ContentType,
		Type:        string(l.Type),
	}
}

type uploadCompleteRequest struct {
	Filename   string `json:"filename"`
	Type       string `json:"type"`
	UploadedBy string `json:"uploadedBy"`
}

type thumbnailRequest struct {
	FileName     string `json:"fileName"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type deleteFolderResponse struct {
	ID           string `json:"id"`
	MediaDeleted int    `json:"mediaDeleted"`
}
