package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/google/uuid"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
	"gamechar/internal/storage"
)

// AzureOptions configures an Azure Blob Storage drive.
type AzureOptions struct {
	ConnectionString string
	Folder           string
	Spool            *storage.Spool
	Logger           *infra.Logger
}

// AzureDrive uploads portraits to a container with anonymous blob read access.
type AzureDrive struct {
	client    *azblob.Client
	container string
	spool     *storage.Spool
	logger    *infra.Logger

	mu    sync.Mutex
	ready bool
}

func NewAzureDrive(opts AzureOptions) (*AzureDrive, error) {
	if strings.TrimSpace(opts.ConnectionString) == "" {
		return nil, errors.New("azure: connection string is required")
	}
	if opts.Spool == nil {
		return nil, errors.New("azure: spool is required")
	}
	client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: create client: %w", err)
	}
	name := strings.TrimSpace(opts.Folder)
	if name == "" {
		name = "game-characters"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &AzureDrive{client: client, container: name, spool: opts.Spool, logger: logger}, nil
}

// Upload spools the portrait to disk, uploads it as a block blob and returns
// the blob name and its public URL. The spool file is removed on every path.
func (d *AzureDrive) Upload(ctx context.Context, image []byte) (Upload, error) {
	if len(image) == 0 {
		return Upload{}, fmt.Errorf("%w: %w", domain.ErrDelivery, domain.ErrEmptyImage)
	}
	if err := d.ensureContainer(ctx); err != nil {
		return Upload{}, fmt.Errorf("%w: azure: %w", domain.ErrDelivery, err)
	}

	path, release, err := d.spool.Write(ctx, "portrait-*.png", image)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	defer func() {
		if err := release(); err != nil {
			d.logger.Warn().Err(err).Msg("azure: spool cleanup failed")
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: azure: open spool file: %w", domain.ErrDelivery, err)
	}
	defer f.Close()

	key := uuid.NewString() + ".png"
	_, err = d.client.UploadFile(ctx, d.container, key, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("image/png")},
	})
	if err != nil {
		return Upload{}, fmt.Errorf("%w: azure: upload blob %s: %w", domain.ErrDelivery, key, err)
	}
	link := BlobURL(d.client.URL(), d.container, key)
	d.logger.Info().Str("container", d.container).Str("key", key).Msg("azure: portrait uploaded")
	return Upload{FileID: key, ShareLink: link}, nil
}

// ensureContainer creates the folder container with blob-level public access,
// or grants that access on an existing one.
func (d *AzureDrive) ensureContainer(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	access := to.Ptr(container.PublicAccessTypeBlob)
	_, err := d.client.CreateContainer(ctx, d.container, &azblob.CreateContainerOptions{Access: access})
	if err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("create container: %w", err)
		}
		cc := d.client.ServiceClient().NewContainerClient(d.container)
		if _, err := cc.SetAccessPolicy(ctx, &container.SetAccessPolicyOptions{Access: access}); err != nil {
			return fmt.Errorf("set access policy: %w", err)
		}
	}
	d.ready = true
	return nil
}

// BlobURL joins a service URL, container and blob name.
func BlobURL(serviceURL, containerName, key string) string {
	base := serviceURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimRight(base, "/") + "/" + containerName + "/" + key
}

var _ Drive = (*AzureDrive)(nil)
