package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
)

type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

func ParseMediaType(s string) (MediaType, error) {
	switch t := MediaType(s); t {
	case MediaTypePhoto, MediaTypeVideo:
		return t, nil
	default:
		return "", fmt.Errorf("%w: media type must be photo or video, got %q", apperr.ErrInvalidArgument, s)
	}
}

type Folder struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedBy string
	Password  string
	Deleted   bool `gorm:"not null;default:false;index"`
	ZipURL    string
	ZipHash   string
	ZipKey    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (f *Folder) HasPassword() bool {
	return f.Password != ""
}

// PasswordMatches reports whether provided opens the folder. A folder without
// password accepts anything.
func (f *Folder) PasswordMatches(provided string) bool {
	return f.Password == "" || f.Password == provided
}

func (f *Folder) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", f.ID)
	e.Str("name", f.Name)
	e.Bool("deleted", f.Deleted)
	if f.ZipHash != "" {
		e.Str("zip_hash", f.ZipHash)
	}
}

type Media struct {
	ID               string `gorm:"primaryKey"`
	FolderID         string `gorm:"not null;index"`
	URL              string
	Type             MediaType `gorm:"not null"`
	UploadedBy       string
	OriginalFilename string `gorm:"index"`
	ThumbnailURL     string
	Deleted          bool `gorm:"not null;default:false;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (m *Media) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", m.ID)
	e.Str("folder", m.FolderID)
	e.Str("filename", m.OriginalFilename)
	e.Str("type", string(m.Type))
	e.Bool("deleted", m.Deleted)
	e.Bool("thumbnail", m.ThumbnailURL != "")
}

// FolderSummary is a live folder with its live media count.
type FolderSummary struct {
	Folder     `gorm:"embedded"`
	MediaCount int64
}

// Models lists every table the catalog migrates.
func Models() []any {
	return []any{&Folder{}, &Media{}}
}
