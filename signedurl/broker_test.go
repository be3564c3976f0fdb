package signedurl_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/signedurl"
)

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) SignWrite(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	args := m.Called(bucket, key, contentType, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) SignRead(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	args := m.Called(bucket, key, ttl)
	return args.String(0), args.Error(1)
}

// nameSet is a NameIndex over a fixed set of live filenames.
type nameSet []string

func (s nameSet) CountMediaWithPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	for _, name := range s {
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n, nil
}

func (s nameSet) MediaFilenameExists(ctx context.Context, filename string) (bool, error) {
	for _, name := range s {
		if name == filename {
			return true, nil
		}
	}
	return false, nil
}

type failingIndex struct{}

func (failingIndex) CountMediaWithPrefix(context.Context, string) (int64, error) {
	return 0, apperr.ErrInternal
}

func (failingIndex) MediaFilenameExists(context.Context, string) (bool, error) {
	return false, apperr.ErrInternal
}

func newBroker(signer signedurl.Signer, names signedurl.NameIndex) *signedurl.Broker {
	return signedurl.NewBroker(signedurl.BrokerParams{
		Signer: signer,
		Names:  names,
		Buckets: signedurl.Buckets{
			Media:     "media",
			Thumbnail: "thumbs",
			Archive:   "zips",
		},
		WriteTTL: 15 * time.Minute,
		ReadTTL:  7 * 24 * time.Hour,
		Logger:   zerolog.Nop(),
	})
}

func TestIssueWriteCapability_FreeName(t *testing.T) {
	signer := &mockSigner{}
	signer.On("SignWrite", "media", "trip.jpg", "image/jpeg", 15*time.Minute).Return("https://put/trip.jpg", nil)

	broker := newBroker(signer, nameSet{"holiday.jpg"})
	capability, err := broker.IssueWriteCapability(context.Background(), "trip.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "trip.jpg", capability.Filename)
	assert.Equal(t, "https://put/trip.jpg", capability.URL)
	signer.AssertExpectations(t)
}

func TestIssueWriteCapability_Dedup(t *testing.T) {
	tests := []struct {
		name     string
		existing nameSet
		desired  string
		expected string
	}{
		{
			name:     "same name",
			existing: nameSet{"trip.jpg"},
			desired:  "trip.jpg",
			expected: "trip-1.jpg",
		},
		{
			name:     "second duplicate",
			existing: nameSet{"trip.jpg", "trip-1.jpg"},
			desired:  "trip.jpg",
			expected: "trip-2.jpg",
		},
		{
			name:     "unrelated name sharing the stem",
			existing: nameSet{"trip.jpg", "trip-photo.jpg", "trip-2.jpg"},
			desired:  "trip.jpg",
			expected: "trip-3.jpg",
		},
		{
			name:     "suffix already taken",
			existing: nameSet{"trip.jpg", "trip-2.jpg"},
			desired:  "trip.jpg",
			expected: "trip-3.jpg",
		},
		{
			name:     "no extension",
			existing: nameSet{"notes"},
			desired:  "notes",
			expected: "notes-1",
		},
		{
			name:     "multiple dots",
			existing: nameSet{"archive.tar.gz"},
			desired:  "archive.tar.gz",
			expected: "archive.tar-1.gz",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			signer := &mockSigner{}
			signer.On("SignWrite", "media", tc.expected, "image/jpeg", 15*time.Minute).Return("https://put/"+tc.expected, nil)

			broker := newBroker(signer, tc.existing)
			capability, err := broker.IssueWriteCapability(context.Background(), tc.desired, "image/jpeg")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, capability.Filename)
			signer.AssertExpectations(t)
		})
	}
}

func TestIssueWriteCapability_InvalidArgument(t *testing.T) {
	broker := newBroker(&mockSigner{}, nameSet{})

	_, err := broker.IssueWriteCapability(context.Background(), "", "image/jpeg")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = broker.IssueWriteCapability(context.Background(), "trip.jpg", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestIssueWriteCapability_Failures(t *testing.T) {
	broker := newBroker(&mockSigner{}, failingIndex{})
	_, err := broker.IssueWriteCapability(context.Background(), "trip.jpg", "image/jpeg")
	assert.ErrorIs(t, err, apperr.ErrInternal)

	signer := &mockSigner{}
	signer.On("SignWrite", "media", "trip.jpg", "image/jpeg", 15*time.Minute).
		Return("", errors.Join(apperr.ErrInternal, errors.New("boom")))
	broker = newBroker(signer, nameSet{})
	_, err = broker.IssueWriteCapability(context.Background(), "trip.jpg", "image/jpeg")
	assert.ErrorIs(t, err, apperr.ErrInternal)
}

func TestReadCapabilities(t *testing.T) {
	readTTL := 7 * 24 * time.Hour
	signer := &mockSigner{}
	signer.On("SignRead", "media", "trip.jpg", readTTL).Return("https://get/trip.jpg", nil)
	signer.On("SignRead", "thumbs", "thumbnail-trip.jpg", readTTL).Return("https://get/thumbnail-trip.jpg", nil)
	signer.On("SignRead", "zips", "zip_holidays.zip", readTTL).Return("https://get/zip_holidays.zip", nil)

	broker := newBroker(signer, nameSet{})
	ctx := context.Background()

	link, err := broker.MediaReadURL(ctx, "trip.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://get/trip.jpg", link)

	link, err = broker.ThumbnailReadURL(ctx, "trip.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://get/thumbnail-trip.jpg", link)

	link, err = broker.ArchiveReadURL(ctx, "zip_holidays.zip")
	require.NoError(t, err)
	assert.Equal(t, "https://get/zip_holidays.zip", link)

	_, err = broker.IssueReadCapability(ctx, "media", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	signer.AssertExpectations(t)
}
