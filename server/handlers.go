package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/folders"
	"github.com/stupid-simple/foldershare/upload"
)

func (s *Server) listFolders(c *gin.Context) {
	summaries, err := s.folders.ListFolders(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := make([]folderResponse, 0, len(summaries))
	for i := range summaries {
		resp = append(resp, newFolderResponse(&summaries[i].Folder, summaries[i].MediaCount))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createFolder(c *gin.Context) {
	req := createFolderRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	folder, err := s.folders.CreateFolder(c.Request.Context(), folders.CreateRequest{
		Name:      req.Name,
		CreatedBy: req.CreatedBy,
		Password:  req.Password,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFolderResponse(folder, 0))
}

func (s *Server) getFolder(c *gin.Context) {
	summary, err := s.folders.GetFolder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newFolderResponse(&summary.Folder, summary.MediaCount))
}

func (s *Server) verifyPassword(c *gin.Context) {
	req := verifyRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	verified, err := s.folders.VerifyPassword(c.Request.Context(), c.Param("id"), req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyResponse{Verified: verified})
}

func (s *Server) getArchive(c *gin.Context) {
	loc, err := s.archives.GetArchive(c.Request.Context(), c.Param("id"), c.GetHeader(HeaderFolderPassword))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, archiveResponse{URL: loc.URL, Hash: loc.Hash})
}

func (s *Server) listMedia(c *gin.Context) {
	media, err := s.folders.ListMedia(c.Request.Context(), c.Param("id"), c.GetHeader(HeaderFolderPassword))
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := make([]mediaResponse, 0, len(media))
	for i := range media {
		resp = append(resp, newMediaResponse(&media[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) generateUploadLinks(c *gin.Context) {
	var body []uploadLinkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	reqs := make([]folders.UploadRequest, 0, len(body))
	for _, r := range body {
		reqs = append(reqs, folders.UploadRequest{Filename: r.Filename, ContentType: r.ContentType, Type: r.Type})
	}

	links, err := s.folders.UploadLinks(c.Request.Context(), c.Param("id"), c.GetHeader(HeaderFolderPassword), reqs)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := make([]uploadLinkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, newUploadLinkResponse(l))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) uploadComplete(c *gin.Context) {
	req := uploadCompleteRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	folderID := c.Param("id")

	if _, err := s.folders.Unlock(ctx, folderID, c.GetHeader(HeaderFolderPassword)); err != nil {
		s.fail(c, err)
		return
	}
	media, err := s.uploads.ConfirmUpload(ctx, upload.ConfirmRequest{
		FolderID:   folderID,
		Type:       req.Type,
		UploadedBy: req.UploadedBy,
		Filename:   req.Filename,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMediaResponse(media))
}

// deleteFolderMedia deletes media through its folder, behind the folder password.
func (s *Server) deleteFolderMedia(c *gin.Context) {
	ctx := c.Request.Context()
	folderID := c.Param("id")
	mediaID := c.Param("mediaId")

	if _, err := s.folders.Unlock(ctx, folderID, c.GetHeader(HeaderFolderPassword)); err != nil {
		s.fail(c, err)
		return
	}
	media, err := s.catalog.GetMedia(ctx, mediaID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if media.FolderID != folderID {
		s.fail(c, fmt.Errorf("%w: media %s in folder %s", apperr.ErrNotFound, mediaID, folderID))
		return
	}
	s.deleteMedia(c)
}

func (s *Server) deleteMedia(c *gin.Context) {
	media, err := s.deleter.DeleteMedia(c.Request.Context(), c.Param("mediaId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newMediaResponse(media))
}

// addThumbnail receives the thumbnail worker callback.
func (s *Server) addThumbnail(c *gin.Context) {
	req := thumbnailRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.notifier.OnWorkerCallback(c.Request.Context(), req.FileName, req.ThumbnailURL); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
