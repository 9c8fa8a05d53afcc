package whitelist

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/basemint/whitelist-backend/interfaces"
)

// StoreFor creates a link store from a location URI.
//
// Supported schemes:
//   - file:///path/to/whitelist.json - single-node JSON file store
//   - redis://host:port/db - redis-backed store with WATCH transactions
func StoreFor(ctx context.Context, locationURI string, log *slog.Logger) (interfaces.LinkStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid store URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return createFileStore(u, log)
	case "redis", "rediss":
		opt, err := redis.ParseURL(locationURI)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URI: %w", err)
		}
		return NewRedisStore(ctx, opt, log)
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s", u.Scheme)
	}
}

func createFileStore(u *url.URL, log *slog.Logger) (interfaces.LinkStore, error) {
	path := u.Path
	if u.Host != "" {
		// file://relative/path parses the first segment as host
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", u.String())
	}

	// A directory path gets a default document name.
	if strings.HasSuffix(path, "/") || filepath.Ext(path) == "" {
		path = filepath.Join(path, "whitelist.json")
	}

	return NewFileStore(path, log)
}
