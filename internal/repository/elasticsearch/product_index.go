// Package elasticsearch holds the optional full-text product index, enabled
// by setting ELASTICSEARCH_URL. Postgres stays the source of truth; the index
// only resolves free-text queries to product ids.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
)

// DefaultIndexName is used when Config.Index is empty.
const DefaultIndexName = "anasityshop_products"

const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "text", "analyzer": "english", "fields": { "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "slug":        { "type": "keyword" },
      "description": { "type": "text", "analyzer": "english" },
      "category_id": { "type": "keyword" },
      "status":      { "type": "keyword" },
      "updated_at":  { "type": "date" }
    }
  }
}`

type productDocument struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDocument(p *domain.Product) productDocument {
	return productDocument{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Status:      p.Status,
		UpdatedAt:   p.UpdatedAt,
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// Config holds the connection settings.
type Config struct {
	URL   string
	Index string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// ProductIndex implements repository.ProductSearchIndex on Elasticsearch.
type ProductIndex struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

var _ repository.ProductSearchIndex = (*ProductIndex)(nil)

// NewProductIndex creates the client. It does not contact the cluster; call
// EnsureIndex before first use.
func NewProductIndex(cfg Config, logger *slog.Logger) (*ProductIndex, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return &ProductIndex{client: client, index: cfg.Index, logger: logger}, nil
}

// Ping checks whether the cluster is reachable.
func (e *ProductIndex) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the products index with its mapping unless it exists.
func (e *ProductIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: check index: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res.Status(), res.Body)
	}
	e.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", e.index))
	return nil
}

// Index adds or replaces one product document.
func (e *ProductIndex) Index(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(toDocument(product))
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}

	res, err := e.client.Index(e.index, bytes.NewReader(data),
		e.client.Index.WithDocumentID(product.ID),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("index", res.Status(), res.Body)
	}
	return nil
}

// BulkIndex adds or replaces many product documents in one request.
func (e *ProductIndex) BulkIndex(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		action := map[string]any{"index": map[string]any{"_index": e.index, "_id": products[i].ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(toDocument(&products[i])); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.index),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("bulk", res.Status(), res.Body)
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if bulk.Errors {
		var msgs []string
		for _, item := range bulk.Items {
			if item.Index.Error.Type != "" {
				msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk: partial errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Delete removes a product document. A missing document is not an error.
func (e *ProductIndex) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(e.index, id, e.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res.Status(), res.Body)
	}
	return nil
}

// Search returns up to limit product ids matching text, best match first.
func (e *ProductIndex) Search(ctx context.Context, text string, limit int) ([]string, error) {
	query := map[string]any{
		"_source": false,
		"size":    limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":         text,
				"fields":        []string{"name^3", "name.autocomplete^2", "description"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		},
	}
	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("search", res.Status(), res.Body)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	ids := make([]string, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func responseError(op, status string, body io.Reader) error {
	var er errorResponse
	if err := json.NewDecoder(body).Decode(&er); err == nil && er.Error.Type != "" {
		return fmt.Errorf("elasticsearch %s: %s: %s", op, er.Error.Type, er.Error.Reason)
	}
	return fmt.Errorf("elasticsearch %s: unexpected status %s", op, status)
}
