package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
)

const DefaultRemoteTimeout = 10 * time.Minute

type remoteRequest struct {
	Filenames  []string `json:"filenames"`
	FolderName string   `json:"folderName"`
}

type remoteResponse struct {
	ArchiveKey string `json:"archiveKey"`
}

// RemoteArchiver delegates archive builds to an external archiving service.
type RemoteArchiver struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewRemoteArchiver returns an archiver posting to url. A nil client uses one
// with DefaultRemoteTimeout.
func NewRemoteArchiver(url string, client *http.Client, logger zerolog.Logger) *RemoteArchiver {
	if client == nil {
		client = &http.Client{Timeout: DefaultRemoteTimeout}
	}
	return &RemoteArchiver{url: url, client: client, logger: logger}
}

func (r *RemoteArchiver) Build(ctx context.Context, folderName string, filenames []string) (string, error) {
	body, err := json.Marshal(remoteRequest{Filenames: filenames, FolderName: folderName})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	r.logger.Debug().Str("url", r.url).Str("folder", folderName).Int("files", len(filenames)).Msg("requesting archive")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("archiving service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("archiving service returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("invalid archiving service response: %w", err)
	}
	if out.ArchiveKey == "" {
		return "", fmt.Errorf("%w: archiving service returned no archive key", apperr.ErrInternal)
	}
	return out.ArchiveKey, nil
}
