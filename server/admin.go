package server

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) deleteFolder(c *gin.Context) {
	id := c.Param("id")
	deleted, err := s.deleter.DeleteFolder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info().Str("folder", id).Int("media", deleted).Msg("admin deleted folder")
	c.JSON(http.StatusOK, deleteFolderResponse{ID: id, MediaDeleted: deleted})
}

// downloadFolder streams a zip of the live media of a folder straight to the
// client, bypassing the archive cache.
func (s *Server) downloadFolder(c *gin.Context) {
	ctx := c.Request.Context()

	folder, err := s.catalog.GetFolder(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	media, err := s.catalog.ListMedia(ctx, folder.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	filenames := make([]string, 0, len(media))
	for _, m := range media {
		filenames = append(filenames, m.OriginalFilename)
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": fmt.Sprintf("%s.zip", folder.Name)})
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", disposition)
	c.Status(http.StatusOK)

	stats, err := s.downloader.WriteTo(ctx, c.Writer, filenames)
	if err != nil {
		// Headers are gone already, the client sees a truncated archive.
		s.logger.Error().Err(err).Object("folder", folder).Msg("folder download failed")
		return
	}
	s.logger.Info().Object("folder", folder).Object("stats", stats).Msg("folder downloaded")
}
