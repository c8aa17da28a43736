// Package metadata resolves and fetches ERC-721 token metadata documents,
// rewriting ipfs:// URIs through an HTTP gateway.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/lru"
)

const (
	ipfsScheme   = "ipfs://"
	maxDocument  = 1 << 20
	defaultCache = 256
)

var ErrEmptyURI = errors.New("metadata: token uri is empty")

// Attribute is one entry of the attributes array.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Document is the subset of the ERC-721 metadata JSON schema we display.
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Trait returns the string form of the named attribute.
func (d Document) Trait(name string) (string, bool) {
	for _, attr := range d.Attributes {
		if attr.TraitType != name || attr.Value == nil {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(attr.Value))
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}

// Fetcher retrieves metadata documents. Documents are content-addressed in
// practice, so successful fetches are cached by URI.
type Fetcher struct {
	gateway string
	client  *http.Client
	cache   *lru.Cache[string, Document]
}

// NewFetcher builds a Fetcher. A nil client gets a ten second timeout.
func NewFetcher(gateway string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	gateway = strings.TrimSpace(gateway)
	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &Fetcher{
		gateway: gateway,
		client:  client,
		cache:   lru.NewCache[string, Document](defaultCache),
	}
}

// Resolve rewrites ipfs:// URIs onto the gateway. Other URIs pass through.
func (f *Fetcher) Resolve(uri string) string {
	uri = strings.TrimSpace(uri)
	if f.gateway == "" || !strings.HasPrefix(uri, ipfsScheme) {
		return uri
	}
	return f.gateway + strings.TrimPrefix(uri, ipfsScheme)
}

// Fetch downloads and decodes the document at uri. The returned image URL is
// already resolved.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (Document, error) {
	resolved := f.Resolve(uri)
	if resolved == "" {
		return Document{}, ErrEmptyURI
	}
	if doc, ok := f.cache.Get(resolved); ok {
		return doc, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return Document{}, fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("metadata: fetch %s: %w", resolved, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("metadata: fetch %s: status %d", resolved, resp.StatusCode)
	}
	var doc Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocument)).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("metadata: decode %s: %w", resolved, err)
	}
	doc.Image = f.Resolve(doc.Image)
	f.cache.Add(resolved, doc)
	return doc, nil
}
