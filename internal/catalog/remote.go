package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/upcat-dev/upcat/internal/fetch"
)

// ErrSourceUnreachable reports a shared catalog source that could not be
// read, as distinct from one whose content is malformed.
var ErrSourceUnreachable = errors.New("catalog source unreachable")

// FetchShared loads a shared catalog from source, which is either an
// http(s) URL or a filesystem path. Transport failures wrap
// ErrSourceUnreachable; malformed content wraps ErrParse.
func FetchShared(ctx context.Context, client *fetch.Client, source string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = client.GetBytes(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreachable, source, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("shared catalog %s: %w", source, err)
	}
	return doc, nil
}
