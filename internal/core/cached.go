package core

import "encoding/json"

// CachedContent is preprocessed content that later generation requests can reference by name.
// Only the expiration (ttl or expireTime) can be changed after creation.
type CachedContent struct {
	Name              string          `json:"name,omitempty"`
	DisplayName       string          `json:"displayName,omitempty"`
	Model             string          `json:"model,omitempty"`
	SystemInstruction *Content        `json:"systemInstruction,omitempty"`
	Contents          []Content       `json:"contents,omitempty"`
	Tools             json.RawMessage `json:"tools,omitempty"`
	ToolConfig        json.RawMessage `json:"toolConfig,omitempty"`
	CreateTime        string          `json:"createTime,omitempty"`
	UpdateTime        string          `json:"updateTime,omitempty"`
	ExpireTime        string          `json:"expireTime,omitempty"`
	TTL               string          `json:"ttl,omitempty"`
	UsageMetadata     *CacheUsage     `json:"usageMetadata,omitempty"`
}

// CacheUsage reports the token footprint of a cached content entry.
type CacheUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

// ListCachedContentsResponse is returned by GET cachedContents.
type ListCachedContentsResponse struct {
	CachedContents []CachedContent `json:"cachedContents"`
	NextPageToken  string          `json:"nextPageToken,omitempty"`
}
