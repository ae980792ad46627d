package report

import (
	"context"
	"fmt"
	"path"
)

// Store is where rendered reports are uploaded.
type Store interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	PublicURL(key string) string
}

// Publish renders r in each format and uploads it under prefix/<run id>/.
// It returns the public URLs in format order.
func Publish(ctx context.Context, store Store, prefix string, r *Run, formats ...Format) ([]string, error) {
	urls := make([]string, 0, len(formats))
	for _, f := range formats {
		body, err := r.Render(f)
		if err != nil {
			return urls, err
		}
		key := path.Join(prefix, r.ID, "report."+f.Ext())
		if err := store.PutObject(ctx, key, body, f.ContentType()); err != nil {
			return urls, fmt.Errorf("report: upload %s: %w", key, err)
		}
		urls = append(urls, store.PublicURL(key))
	}
	return urls, nil
}
