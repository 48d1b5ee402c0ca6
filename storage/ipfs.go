package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ipfs/boxo/files"
	shell "github.com/ipfs/go-ipfs-api"

	"github.com/docvault/docvault/interfaces"
)

// DefaultIPFSGateway is used to derive public URLs when no gateway is
// configured for the backend.
const DefaultIPFSGateway = "https://ipfs.io"

// IPFSBackend implements a storage backend using the InterPlanetary File
// System. The locator returned by Put is the CID assigned by the node.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	gateway     string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates an IPFS storage backend connected to the node
// API at host:port. The gateway is only used to build display URLs.
func NewIPFSBackend(host, port, gateway string, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	if gateway == "" {
		gateway = DefaultIPFSGateway
	}

	return &IPFSBackend{
		shell:       shell.NewShell(apiURL),
		host:        host,
		port:        port,
		gateway:     strings.TrimSuffix(gateway, "/"),
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/", apiURL),
	}, nil
}

// Put adds content to IPFS and returns the CID as locator. IPFS carries
// no server-side tags; they are ignored. The request is issued through
// the API client directly so the caller's context bounds it; a hung
// node surfaces as ErrBackendUnavailable instead of blocking.
func (b *IPFSBackend) Put(ctx context.Context, data []byte, tags map[string]string) (string, error) {
	start := time.Now()

	reader := files.NewReaderFile(bytes.NewReader(data))
	dir := files.NewSliceDirectory([]files.DirEntry{files.FileEntry("", reader)})

	var out struct {
		Hash string
	}
	err := b.shell.Request("add").Body(files.NewMultiFileReader(dir, true, false)).Exec(ctx, &out)
	if err != nil {
		b.log.Error("Failed to add data to IPFS",
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("cid", out.Hash),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return out.Hash, nil
}

// Get retrieves content from IPFS by CID locator.
// Returns ErrContentNotFound if the CID cannot be resolved,
// ErrBackendUnavailable if the node is not accessible.
func (b *IPFSBackend) Get(ctx context.Context, locator string) ([]byte, error) {
	start := time.Now()

	resp, err := b.shell.Request("cat", ipfsPath(locator)).Send(ctx)
	if err != nil {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Close()

	if resp.Error != nil {
		msg := resp.Error.Error()
		if strings.Contains(msg, "no link named") || strings.Contains(msg, "invalid path") {
			b.log.Debug("Content not found in IPFS",
				slog.String("locator", locator),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to fetch data from IPFS",
			slog.String("locator", locator),
			"err", resp.Error,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", resp.Error)
	}

	data, err := io.ReadAll(resp.Output)
	if err != nil {
		b.log.Error("Failed to read data from IPFS",
			slog.String("locator", locator),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("locator", locator),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// PublicURL derives a gateway URL for a CID locator. No network call.
func (b *IPFSBackend) PublicURL(locator string) string {
	return fmt.Sprintf("%s/ipfs/%s", b.gateway, locator)
}

// Available checks if the IPFS node is accessible within the context's
// deadline.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.Request("version").Exec(ctx, nil) == nil
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// Scheme returns the locator scheme this backend serves.
func (b *IPFSBackend) Scheme() string {
	return "ipfs"
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func ipfsPath(locator string) string {
	if strings.HasPrefix(locator, "/ipfs/") {
		return locator
	}
	return "/ipfs/" + locator
}
