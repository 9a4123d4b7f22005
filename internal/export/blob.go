package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// blobClient is the part of *azblob.Client the uploader needs
type blobClient interface {
	UploadFile(ctx context.Context, containerName string, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// BlobUploader copies exported files to an Azure Blob Storage container
type BlobUploader struct {
	client    blobClient
	container string
}

// NewBlobUploader creates an uploader authenticated with a shared account key
func NewBlobUploader(account, key, container string) (*BlobUploader, error) {
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure credentials: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &BlobUploader{client: client, container: container}, nil
}

// Upload stores the local file under prefix/<file name> and returns the blob name
func (u *BlobUploader) Upload(ctx context.Context, localPath, prefix string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for upload: %w", localPath, err)
	}
	defer file.Close()

	blobName := path.Join(prefix, filepath.Base(localPath))
	if _, err := u.client.UploadFile(ctx, u.container, blobName, file, &azblob.UploadFileOptions{}); err != nil {
		return "", fmt.Errorf("failed to upload blob %s: %w", blobName, err)
	}
	return blobName, nil
}
