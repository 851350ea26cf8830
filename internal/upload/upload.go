// Package upload copies run artifacts and combined datasets to Azure Blob
// Storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/raphaelgruber/statsports/internal/config"
)

// ErrMissingCredentials is returned when no storage account or key is set.
var ErrMissingCredentials = errors.New("azure storage account and key are required")

// BlobClient is the part of *azblob.Client used for uploads.
type BlobClient interface {
	UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// Uploader sends files into one container.
type Uploader struct {
	client    BlobClient
	container string
	logger    *slog.Logger
}

// New wraps an existing blob client.
func New(client BlobClient, container string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{client: client, container: container, logger: logger}
}

// NewAzure builds an uploader authenticated with the account's shared key.
func NewAzure(cfg config.Config, logger *slog.Logger) (*Uploader, error) {
	if cfg.AzureAccount == "" || cfg.AzureKey == "" {
		return nil, ErrMissingCredentials
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccount, cfg.AzureKey)
	if err != nil {
		return nil, fmt.Errorf("azure credentials: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccount)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return New(client, cfg.AzureContainer, logger), nil
}

// UploadFile uploads path as blobName.
func (u *Uploader) UploadFile(ctx context.Context, path, blobName string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := u.client.UploadFile(ctx, u.container, blobName, file, &azblob.UploadFileOptions{}); err != nil {
		return fmt.Errorf("upload %s: %w", blobName, err)
	}
	u.logger.Info("uploaded file", "local_path", path, "container", u.container, "blob_name", blobName)
	return nil
}

// UploadRun uploads the final artifacts and checkpoint of a run directory
// under "<run dir name>/". Progress logs and temp files are skipped. It
// returns the blob names written; individual failures are joined.
func (u *Uploader) UploadRun(ctx context.Context, runDir string) ([]string, error) {
	prefix := filepath.Base(filepath.Clean(runDir))
	var uploaded []string
	var errs []error

	err := filepath.WalkDir(runDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsArtifact(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(runDir, path)
		if err != nil {
			return nil
		}
		blobName := prefix + "/" + filepath.ToSlash(rel)
		if err := u.UploadFile(ctx, path, blobName); err != nil {
			u.logger.Error("failed to upload blob", "blob_name", blobName, "error", err)
			errs = append(errs, err)
			return nil
		}
		uploaded = append(uploaded, blobName)
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("walk %s: %w", runDir, err))
	}
	return uploaded, errors.Join(errs...)
}

// IsArtifact reports whether name is a final run file worth uploading.
func IsArtifact(name string) bool {
	if strings.HasSuffix(name, ".tmp") || strings.HasPrefix(name, "progress_") {
		return false
	}
	if name == "checkpoint.json" {
		return true
	}
	for _, prefix := range []string{"sessions_", "players_", "statsports_"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
