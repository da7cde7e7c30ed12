package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/reloop/marketplace/internal/models"
)

// IndexPost mirrors a listing into the search index. Failures are the
// caller's to log: search staleness must not fail the write path.
func IndexPost(ctx context.Context, es *elasticsearch.Client, index string, post *models.Post) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(post); err != nil {
		return fmt.Errorf("index: encode post: %w", err)
	}

	res, err := es.Index(
		index,
		&buf,
		es.Index.WithDocumentID(strconv.FormatUint(uint64(post.ID), 10)),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index: %s", res.Status())
	}
	return nil
}

func DeletePost(ctx context.Context, es *elasticsearch.Client, index string, postID uint) error {
	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(postID), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete: %s", res.Status())
	}
	return nil
}
