// Package resources wraps the Gemini REST resources that are managed with
// plain CRUD calls: uploaded files and cached contents.
//
// Every call is a single request through apiclient; nothing is retried and
// list calls return one page.
package resources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"geminikit/internal/core"
	"geminikit/internal/pkg/apiclient"
)

// Doer performs one JSON API request.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, result interface{}) error
}

// ListOptions selects one page of a list call.
type ListOptions struct {
	// PageSize is the maximum number of items; 0 uses the server default
	PageSize int
	// PageToken is the nextPageToken of the previous page
	PageToken string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(o.PageSize))
	}
	if o.PageToken != "" {
		q.Set("pageToken", o.PageToken)
	}
	return q
}

// resourceName accepts either "collection/id" or a bare id and returns "collection/id".
func resourceName(collection, name string) (string, error) {
	id := strings.TrimSpace(name)
	id = strings.TrimPrefix(id, collection+"/")
	if id == "" {
		return "", core.NewInvalidRequestError(collection+" name is required", nil)
	}
	if strings.ContainsAny(id, "/?#") {
		return "", core.NewInvalidRequestError("invalid "+collection+" name: "+name, nil)
	}
	return collection + "/" + id, nil
}
