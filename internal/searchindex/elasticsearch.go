package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
)

// Elasticsearch implements Provider on an Elasticsearch cluster.
type Elasticsearch struct {
	client *es.Client
	logger logger.Logger
}

// Config holds Elasticsearch client configuration.
type Config struct {
	URL        string
	Username   string
	Password   string
	APIKey     string
	MaxRetries int
}

// NewElasticsearch creates the provider and its underlying client.
func NewElasticsearch(cfg Config, log logger.Logger) (*Elasticsearch, error) {
	clientConfig := es.Config{
		Addresses:  []string{cfg.URL},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Elasticsearch{client: client, logger: log}, nil
}

// NewElasticsearchFromClient wraps an existing client. Used in tests.
func NewElasticsearchFromClient(client *es.Client, log logger.Logger) *Elasticsearch {
	return &Elasticsearch{client: client, logger: log}
}

// ListIndexes returns the names of all indexes in the cluster.
func (p *Elasticsearch) ListIndexes(ctx context.Context) ([]string, error) {
	res, err := p.client.Cat.Indices(
		p.client.Cat.Indices.WithContext(ctx),
		p.client.Cat.Indices.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list indexes: %w", domain.ErrIndex, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: list indexes: %s", domain.ErrIndex, res.String())
	}

	var indexes []struct {
		Index string `json:"index"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&indexes); decodeErr != nil {
		return nil, fmt.Errorf("%w: decode index list: %w", domain.ErrIndex, decodeErr)
	}

	names := make([]string, len(indexes))
	for i, idx := range indexes {
		names[i] = idx.Index
	}
	return names, nil
}

// upsertBody is the _update request body for a merge-or-insert write.
type upsertBody struct {
	Doc         Document `json:"doc"`
	DocAsUpsert bool     `json:"doc_as_upsert"`
}

// Upsert merges doc into index under doc.ID, creating the document when it
// does not exist. Uses the update API with doc_as_upsert so fields outside
// the document model survive.
func (p *Elasticsearch) Upsert(ctx context.Context, index string, doc Document) error {
	body, err := json.Marshal(upsertBody{Doc: doc, DocAsUpsert: true})
	if err != nil {
		return fmt.Errorf("marshal upsert for %q: %w", doc.ID, err)
	}

	res, err := p.client.Update(
		index,
		doc.ID,
		bytes.NewReader(body),
		p.client.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %q into %q: %w", domain.ErrIndex, doc.ID, index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: upsert %q into %q: %s", domain.ErrIndex, doc.ID, index, res.String())
	}

	p.logger.Debug("Document upserted",
		logger.String("index", index),
		logger.String("doc_id", doc.ID),
		logger.String("url", doc.URL))
	return nil
}

// Delete removes docID from index. A 404 response counts as success.
func (p *Elasticsearch) Delete(ctx context.Context, index, docID string) error {
	res, err := p.client.Delete(
		index,
		docID,
		p.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: delete %q from %q: %w", domain.ErrIndex, docID, index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		p.logger.Debug("Delete of absent document treated as success",
			logger.String("index", index),
			logger.String("doc_id", docID))
		return nil
	}

	if res.IsError() {
		return fmt.Errorf("%w: delete %q from %q: %s", domain.ErrIndex, docID, index, res.String())
	}

	p.logger.Debug("Document deleted",
		logger.String("index", index),
		logger.String("doc_id", docID))
	return nil
}
