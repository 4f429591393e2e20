package resources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"geminikit/internal/core"
	"geminikit/internal/pkg/apiclient"
)

// CachedContents manages context caches.
type CachedContents struct {
	api Doer
}

// NewCachedContents creates a CachedContents resource.
func NewCachedContents(api Doer) *CachedContents {
	return &CachedContents{api: api}
}

// Create creates a cached content entry. Model may be given with or without the "models/" prefix.
func (c *CachedContents) Create(ctx context.Context, cc *core.CachedContent) (*core.CachedContent, error) {
	if cc == nil {
		return nil, core.NewInvalidRequestError("cached content is required", nil)
	}
	body := *cc
	if body.Model == "" {
		return nil, core.NewInvalidRequestError("cached content model is required", nil)
	}
	if !strings.HasPrefix(body.Model, "models/") {
		body.Model = "models/" + body.Model
	}

	var created core.CachedContent
	err := c.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "cachedContents",
		Body:     &body,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Get reads a cached content entry.
func (c *CachedContents) Get(ctx context.Context, name string) (*core.CachedContent, error) {
	name, err := resourceName("cachedContents", name)
	if err != nil {
		return nil, err
	}

	var cc core.CachedContent
	if err := c.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Endpoint: name}, &cc); err != nil {
		return nil, err
	}
	return &cc, nil
}

// List returns one page of cached contents.
func (c *CachedContents) List(ctx context.Context, opts ListOptions) (*core.ListCachedContentsResponse, error) {
	var resp core.ListCachedContentsResponse
	err := c.api.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Endpoint: "cachedContents",
		Query:    opts.query(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Patch updates the fields of name listed in updateMask (e.g. "ttl" or "expireTime").
// Only the expiration of a cached content can be changed.
func (c *CachedContents) Patch(ctx context.Context, name, updateMask string, cc *core.CachedContent) (*core.CachedContent, error) {
	name, err := resourceName("cachedContents", name)
	if err != nil {
		return nil, err
	}
	if cc == nil {
		return nil, core.NewInvalidRequestError("cached content is required", nil)
	}

	req := apiclient.Request{
		Method:   http.MethodPatch,
		Endpoint: name,
		Body:     cc,
	}
	if updateMask != "" {
		req.Query = url.Values{"updateMask": {updateMask}}
	}

	var updated core.CachedContent
	if err := c.api.Do(ctx, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete deletes a cached content entry.
func (c *CachedContents) Delete(ctx context.Context, name string) error {
	name, err := resourceName("cachedContents", name)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, apiclient.Request{Method: http.MethodDelete, Endpoint: name}, nil)
}
