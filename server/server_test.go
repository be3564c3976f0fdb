package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/foldershare/archive"
	"github.com/stupid-simple/foldershare/cascade"
	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/database/dbtest"
	"github.com/stupid-simple/foldershare/folders"
	"github.com/stupid-simple/foldershare/metrics"
	"github.com/stupid-simple/foldershare/notify"
	"github.com/stupid-simple/foldershare/server"
	"github.com/stupid-simple/foldershare/signedurl"
	"github.com/stupid-simple/foldershare/upload"
	"github.com/stupid-simple/foldershare/ziparchiver"
)

const adminToken = "let-me-in"

type stubSigner struct{}

func (stubSigner) SignWrite(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	return "https://put/" + bucket + "/" + key, nil
}

func (stubSigner) SignRead(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://get/" + bucket + "/" + key, nil
}

type renames struct {
	mu   sync.Mutex
	keys []string
}

func (r *renames) Rename(ctx context.Context, bucket, oldKey, newKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, oldKey)
	return nil
}

type stubArchiver struct {
	builds int
}

func (a *stubArchiver) Build(ctx context.Context, folderName string, filenames []string) (string, error) {
	a.builds++
	return "zip_" + folderName + ".zip", nil
}

type stubDownloader struct{}

func (stubDownloader) WriteTo(ctx context.Context, w io.Writer, filenames []string) (ziparchiver.Stats, error) {
	n, err := io.WriteString(w, strings.Join(filenames, ","))
	return ziparchiver.Stats{Entries: len(filenames), Bytes: int64(n)}, err
}

type testServer struct {
	handler  http.Handler
	db       *database.Database
	renames  *renames
	archiver *stubArchiver
}

func newTestServer(t *testing.T) *testServer {
	db := dbtest.New(t)
	logger := zerolog.New(zerolog.NewTestWriter(t))

	registry := prometheus.NewRegistry()
	observer, err := metrics.NewPrometheusObserver("", registry)
	require.NoError(t, err)

	buckets := signedurl.Buckets{Media: "media", Thumbnail: "thumbs", Archive: "zips"}
	links := signedurl.NewBroker(signedurl.BrokerParams{
		Signer:   stubSigner{},
		Names:    db,
		Buckets:  buckets,
		WriteTTL: time.Minute,
		ReadTTL:  time.Hour,
		Logger:   logger,
	})
	notifier := notify.NewBroker(notify.BrokerParams{Catalog: db, Observer: observer, Logger: logger})
	t.Cleanup(notifier.Stop)

	ts := &testServer{db: db, renames: &renames{}, archiver: &stubArchiver{}}
	srv := server.New(server.ServerParams{
		Folders:  folders.NewService(folders.ServiceParams{Catalog: db, Links: links, Logger: logger}),
		Uploads:  upload.NewRegistrar(upload.RegistrarParams{Catalog: db, Links: links, Logger: logger}),
		Deleter:  cascade.NewManager(cascade.ManagerParams{Catalog: db, Blobs: ts.renames, Buckets: buckets, Logger: logger}),
		Archives: archive.NewCache(archive.CacheParams{Catalog: db, Archiver: ts.archiver, Links: links, Observer: observer, Logger: logger}),
		Notifier: notifier,
		Catalog:  db,

		Downloader: stubDownloader{},
		Gatherer:   registry,
		AdminToken: adminToken,
		Logger:     logger,
	})
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestFolders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/folders", map[string]string{"name": "holidays", "createdBy": "alice", "password": "secret"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := created["id"].(string)
	assert.Equal(t, true, created["hasPassword"])
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = ts.do(t, http.MethodGet, "/api/folders", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "holidays", list[0]["name"])
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = ts.do(t, http.MethodGet, "/api/folders/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/folders/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/folders/"+id+"/verify", map[string]string{"password": "secret"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verified":true}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/folders/"+id+"/verify", map[string]string{"password": "nope"}, nil)
	assert.JSONEq(t, `{"verified":false}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/folders", map[string]string{"name": "no creator"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFlow(t *testing.T) {
	ts := newTestServer(t)
	folder := dbtest.Folder(t, ts.db, "holidays")
	dbtest.Media(t, ts.db, folder.ID, "trip.jpg")

	rec := ts.do(t, http.MethodPost, "/api/folders/"+folder.ID+"/media/generateSignedUrls", []map[string]string{
		{"filename": "trip.jpg", "contentType": "image/jpeg", "type": "photo"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	links := decode[[]map[string]string](t, rec)
	require.Len(t, links, 1)
	assert.Equal(t, "trip-1.jpg", links[0]["filename"])
	assert.Equal(t, "https://put/media/trip-1.jpg", links[0]["signedUrl"])

	rec = ts.do(t, http.MethodPost, "/api/folders/"+folder.ID+"/media/uploadComplete", map[string]string{
		"filename": "trip-1.jpg", "type": "photo", "uploadedBy": "bob",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	media := decode[map[string]any](t, rec)
	assert.Equal(t, "https://get/media/trip-1.jpg", media["url"])

	rec = ts.do(t, http.MethodGet, "/api/folders/"+folder.ID+"/media", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)
}

func TestPasswordGate(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	folder := &database.Folder{Name: "locked", CreatedBy: "alice", Password: "secret"}
	require.NoError(t, ts.db.CreateFolder(ctx, folder))
	dbtest.Media(t, ts.db, folder.ID, "a.jpg")

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/folders/" + folder.ID + "/media", nil},
		{http.MethodPost, "/api/folders/" + folder.ID + "/media/generateSignedUrls", []map[string]string{{"filename": "b.jpg", "contentType": "image/jpeg", "type": "photo"}}},
		{http.MethodPost, "/api/folders/" + folder.ID + "/media/uploadComplete", map[string]string{"filename": "b.jpg", "type": "photo"}},
		{http.MethodPost, "/api/folders/" + folder.ID + "/zip", nil},
	}
	for _, p := range paths {
		rec := ts.do(t, p.method, p.path, p.body, map[string]string{server.HeaderFolderPassword: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, p.path)
	}

	rec := ts.do(t, http.MethodGet, "/api/folders/"+folder.ID+"/media", nil, map[string]string{server.HeaderFolderPassword: "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArchive(t *testing.T) {
	ts := newTestServer(t)
	folder := dbtest.Folder(t, ts.db, "holidays")
	dbtest.Media(t, ts.db, folder.ID, "a.jpg")

	rec := ts.do(t, http.MethodPost, "/api/folders/"+folder.ID+"/zip", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[map[string]string](t, rec)
	assert.Equal(t, "https://get/zips/zip_holidays.zip", first["zipUrl"])

	rec = ts.do(t, http.MethodPost, "/api/folders/"+folder.ID+"/zip", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode[map[string]string](t, rec))
	assert.Equal(t, 1, ts.archiver.builds)
}

func TestDeleteFolderMedia(t *testing.T) {
	ts := newTestServer(t)
	folder := dbtest.Folder(t, ts.db, "holidays")
	other := dbtest.Folder(t, ts.db, "other")
	trip := dbtest.Media(t, ts.db, folder.ID, "trip.jpg")
	dbtest.Media(t, ts.db, folder.ID, "beach.jpg")
	foreign := dbtest.Media(t, ts.db, other.ID, "foreign.jpg")

	rec := ts.do(t, http.MethodDelete, "/api/folders/"+folder.ID+"/media/"+foreign.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/folders/"+folder.ID+"/media/"+trip.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"trip.jpg"}, ts.renames.keys)

	rec = ts.do(t, http.MethodDelete, "/api/folders/"+folder.ID+"/media/"+trip.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	folder := dbtest.Folder(t, ts.db, "holidays")
	a := dbtest.Media(t, ts.db, folder.ID, "a.jpg")
	dbtest.Media(t, ts.db, folder.ID, "b.jpg")

	rec := ts.do(t, http.MethodDelete, "/api/media/"+a.ID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/admin/folders/"+folder.ID, nil, map[string]string{server.HeaderAdminToken: "guess"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := map[string]string{server.HeaderAdminToken: adminToken}

	rec = ts.do(t, http.MethodGet, "/api/admin/folders/"+folder.ID+"/download", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "holidays.zip")
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, strings.Split(rec.Body.String(), ","))

	rec = ts.do(t, http.MethodDelete, "/api/media/"+a.ID, nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/api/admin/folders/"+folder.ID, nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"`+folder.ID+`","mediaDeleted":1}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/folders/"+folder.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesDisabledWithoutToken(t *testing.T) {
	db := dbtest.New(t)
	srv := server.New(server.ServerParams{Catalog: db, Logger: zerolog.Nop()})
	folder := dbtest.Folder(t, db, "holidays")

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/folders/"+folder.ID, nil)
	req.Header.Set(server.HeaderAdminToken, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddThumbnail(t *testing.T) {
	ts := newTestServer(t)
	folder := dbtest.Folder(t, ts.db, "holidays")
	trip := dbtest.Media(t, ts.db, folder.ID, "trip.jpg")

	rec := ts.do(t, http.MethodPost, "/api/media/addThumbnail", map[string]string{"fileName": "trip.jpg", "thumbnailUrl": "https://thumbs/trip.jpg"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	got, err := ts.db.GetMedia(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://thumbs/trip.jpg", got.ThumbnailURL)

	rec = ts.do(t, http.MethodPost, "/api/media/addThumbnail", map[string]string{"fileName": "trip.jpg"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	folder := dbtest.Folder(t, ts.db, "holidays")
	dbtest.Media(t, ts.db, folder.ID, "a.jpg")

	rec := ts.do(t, http.MethodPost, "/api/folders/"+folder.ID+"/zip", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "foldershare_archive_requests_total")
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/folders", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
