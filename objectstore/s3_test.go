package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/config"
)

type recordedRequest struct {
	Method     string
	Path       string
	CopySource string
}

type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:     r.Method,
		Path:       r.URL.Path,
		CopySource: r.Header.Get("X-Amz-Copy-Source"),
	})
	f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)
	f.handle(w, r)
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{
			Region:      lo.Region,
			Credentials: credentials.NewStaticCredentialsProvider("access", "secret", ""),
		}, nil
	}

	cli, err := New(context.Background(), config.StorageConfig{
		Region:       "us-east-1",
		Endpoint:     endpoint,
		AccessKey:    "access",
		SecretKey:    "secret",
		UsePathStyle: true,
	}, zerolog.Nop())
	require.NoError(t, err)
	return cli
}

func TestSignWrite(t *testing.T) {
	cli := newTestClient(t, "http://127.0.0.1:9000")

	link, err := cli.SignWrite(context.Background(), "media", "trip.jpg", "image/jpeg", 15*time.Minute)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(link, "http://127.0.0.1:9000/media/trip.jpg?"), link)
	assert.Contains(t, link, "X-Amz-Expires=900")
	assert.Contains(t, link, "X-Amz-Signature=")
}

func TestSignRead(t *testing.T) {
	cli := newTestClient(t, "http://127.0.0.1:9000")

	link, err := cli.SignRead(context.Background(), "thumbs", "thumbnail-trip.jpg", 7*24*time.Hour)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(link, "http://127.0.0.1:9000/thumbs/thumbnail-trip.jpg?"), link)
	assert.Contains(t, link, "X-Amz-Expires=604800")
}

func TestRename(t *testing.T) {
	fake := &fakeS3{handle: func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<CopyObjectResult><ETag>"abc"</ETag><LastModified>2024-01-01T00:00:00.000Z</LastModified></CopyObjectResult>`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cli := newTestClient(t, srv.URL)
	err := cli.Rename(context.Background(), "media", "trip.jpg", "deleted_1_trip.jpg")
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodPut, fake.requests[0].Method)
	assert.Equal(t, "/media/deleted_1_trip.jpg", fake.requests[0].Path)
	assert.Equal(t, "media/trip.jpg", fake.requests[0].CopySource)
	assert.Equal(t, http.MethodDelete, fake.requests[1].Method)
	assert.Equal(t, "/media/trip.jpg", fake.requests[1].Path)
}

func TestRename_MissingSource(t *testing.T) {
	fake := &fakeS3{handle: func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cli := newTestClient(t, srv.URL)
	err := cli.Rename(context.Background(), "media", "trip.jpg", "deleted_1_trip.jpg")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	for _, req := range fake.requests {
		assert.NotEqual(t, http.MethodDelete, req.Method, "source must not be removed when copy fails")
	}
}

func TestOpen(t *testing.T) {
	fake := &fakeS3{handle: func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "5")
		_, _ = io.WriteString(w, "bytes")
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cli := newTestClient(t, srv.URL)
	body, size, err := cli.Open(context.Background(), "media", "trip.jpg")
	require.NoError(t, err)
	defer body.Close()

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(content))
	assert.Equal(t, int64(5), size)
	assert.Equal(t, "/media/trip.jpg", fake.requests[0].Path)
}
