package evidence

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AzureStore keeps evidence in an Azure Blob Storage container.
type AzureStore struct {
	client        *azblob.Client
	containerName string
	logger        *zerolog.Logger
}

func NewAzureStore(connectionString, containerName string, logger *zerolog.Logger) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	_, err = client.CreateContainer(context.Background(), containerName, nil)
	if err != nil && !strings.Contains(err.Error(), "ContainerAlreadyExists") {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	logger.Info().Str("container", containerName).Msg("azure evidence storage initialized")
	return &AzureStore{client: client, containerName: containerName, logger: logger}, nil
}

func (s *AzureStore) Upload(ctx context.Context, filename, contentType string, data io.Reader) (string, int64, error) {
	blobName := uuid.New().String() + strings.ToLower(filepath.Ext(filename))
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	reader := &countingReader{r: data}
	if _, err := s.client.UploadStream(ctx, s.containerName, blobName, reader, opts); err != nil {
		return "", 0, fmt.Errorf("failed to upload blob: %w", err)
	}

	s.logger.Info().
		Str("blob", blobName).
		Str("content_type", contentType).
		Int64("size", reader.count).
		Msg("evidence uploaded")
	return blobName, reader.count, nil
}

func (s *AzureStore) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.containerName, storagePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	return resp.Body, nil
}

func (s *AzureStore) Delete(ctx context.Context, storagePath string) error {
	if _, err := s.client.DeleteBlob(ctx, s.containerName, storagePath, nil); err != nil {
		if strings.Contains(err.Error(), "BlobNotFound") {
			s.logger.Debug().Str("blob", storagePath).Msg("blob already deleted")
			return nil
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *AzureStore) URL(storagePath string) string {
	return strings.TrimRight(s.client.URL(), "/") + "/" + s.containerName + "/" + storagePath
}
