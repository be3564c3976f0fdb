// Package server binds the coordinator components to HTTP and websocket routes.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/archive"
	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/folders"
	"github.com/stupid-simple/foldershare/notify"
	"github.com/stupid-simple/foldershare/upload"
	"github.com/stupid-simple/foldershare/ziparchiver"
)

const (
	HeaderFolderPassword = "x-folder-password"
	HeaderAdminToken     = "x-admin-token"

	shutdownTimeout = 10 * time.Second
)

type Folders interface {
	CreateFolder(ctx context.Context, req folders.CreateRequest) (*database.Folder, error)
	ListFolders(ctx context.Context) ([]database.FolderSummary, error)
	GetFolder(ctx context.Context, id string) (database.FolderSummary, error)
	VerifyPassword(ctx context.Context, id, password string) (bool, error)
	ListMedia(ctx context.Context, folderID, password string) ([]database.Media, error)
	UploadLinks(ctx context.Context, folderID, password string, reqs []folders.UploadRequest) ([]folders.UploadLink, error)
	Unlock(ctx context.Context, folderID, password string) (*database.Folder, error)
}

type Uploads interface {
	ConfirmUpload(ctx context.Context, req upload.ConfirmRequest) (*database.Media, error)
}

type Deleter interface {
	DeleteMedia(ctx context.Context, id string) (*database.Media, error)
	DeleteFolder(ctx context.Context, id string) (int, error)
}

type Archives interface {
	GetArchive(ctx context.Context, folderID, password string) (archive.Location, error)
}

type Notifier interface {
	Open(ctx context.Context, sub notify.Subscriber) error
	Close(ctx context.Context, sub notify.Subscriber) error
	Subscribe(ctx context.Context, sub notify.Subscriber, filename string) error
	OnWorkerCallback(ctx context.Context, filename, thumbnailURL string) error
}

// Catalog covers the lookups made outside the password gate.
type Catalog interface {
	GetFolder(ctx context.Context, id string) (*database.Folder, error)
	GetMedia(ctx context.Context, id string) (*database.Media, error)
	ListMedia(ctx context.Context, folderID string, opts ...database.ListMediaOption) ([]database.Media, error)
}

type Downloader interface {
	WriteTo(ctx context.Context, w io.Writer, filenames []string) (ziparchiver.Stats, error)
}

type ServerParams struct {
	Folders    Folders
	Uploads    Uploads
	Deleter    Deleter
	Archives   Archives
	Notifier   Notifier
	Catalog    Catalog
	Downloader Downloader
	// Gatherer backs /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer

	AdminToken     string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

type Server struct {
	folders    Folders
	uploads    Uploads
	deleter    Deleter
	archives   Archives
	notifier   Notifier
	catalog    Catalog
	downloader Downloader

	adminToken string
	upgrader   websocket.Upgrader
	engine     *gin.Engine
	logger     zerolog.Logger
}

func New(p ServerParams) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		folders:    p.Folders,
		uploads:    p.Uploads,
		deleter:    p.Deleter,
		archives:   p.Archives,
		notifier:   p.Notifier,
		catalog:    p.Catalog,
		downloader: p.Downloader,
		adminToken: p.AdminToken,
		logger:     p.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(p.AllowedOrigins),
		},
	}

	engine := gin.New()
	engine.Use(gin.CustomRecovery(s.recovered))
	engine.Use(requestLogger(p.Logger))
	engine.Use(cors.New(corsConfig(p.AllowedOrigins)))
	s.engine = engine
	s.routes(p.Gatherer)
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", HeaderFolderPassword, HeaderAdminToken}
	cfg.AllowWebSockets = true
	return cfg
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	api := s.engine.Group("/api")

	foldersGroup := api.Group("/folders")
	{
		foldersGroup.GET("", s.listFolders)
		foldersGroup.POST("", s.createFolder)
		foldersGroup.GET("/:id", s.getFolder)
		foldersGroup.POST("/:id/verify", s.verifyPassword)
		foldersGroup.POST("/:id/zip", s.getArchive)

		foldersGroup.GET("/:id/media", s.listMedia)
		foldersGroup.POST("/:id/media/generateSignedUrls", s.generateUploadLinks)
		foldersGroup.POST("/:id/media/uploadComplete", s.uploadComplete)
		foldersGroup.DELETE("/:id/media/:mediaId", s.deleteFolderMedia)
	}

	media := api.Group("/media")
	{
		media.POST("/addThumbnail", s.addThumbnail)
		media.DELETE("/:mediaId", s.requireAdmin, s.deleteMedia)
	}

	admin := api.Group("/admin", s.requireAdmin)
	{
		admin.DELETE("/folders/:id", s.deleteFolder)
		admin.GET("/folders/:id/download", s.downloadFolder)
	}

	s.engine.GET("/ws", s.serveWebsocket)

	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) recovered(c *gin.Context, recovered any) {
	s.logger.Error().Interface("panic", recovered).Str("path", c.FullPath()).Msg("request panicked")
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
