package core

import (
	"encoding/base64"
	"strings"
)

// Content is one turn of a conversation: a role and its ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single piece of content. At least one field is set.
type Part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *Blob     `json:"inline_data,omitempty"`
	FileData   *FileData `json:"file_data,omitempty"`
}

// Blob is inline media; Data is base64 encoded.
type Blob struct {
	MimeType MimeType `json:"mime_type"`
	Data     string   `json:"data"`
}

// FileData references a previously uploaded file by URI.
type FileData struct {
	MimeType MimeType `json:"mime_type,omitempty"`
	FileURI  string   `json:"file_uri"`
}

// NewTextPart returns a text-only part.
func NewTextPart(text string) Part {
	return Part{Text: text}
}

// NewBlobPart returns an inline data part. data is raw bytes and is base64 encoded here.
func NewBlobPart(mimeType string, data []byte) (Part, error) {
	return NewTextWithBlobPart("", mimeType, data)
}

// NewTextWithBlobPart returns a part carrying text and inline data.
func NewTextWithBlobPart(text, mimeType string, data []byte) (Part, error) {
	mt, err := ParseMimeType(mimeType)
	if err != nil {
		return Part{}, err
	}
	return Part{
		Text: text,
		InlineData: &Blob{
			MimeType: mt,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}, nil
}

// NewFilePart returns a part referencing an uploaded file. mimeType may be empty.
func NewFilePart(fileURI, mimeType string) (Part, error) {
	return NewTextWithFilePart("", fileURI, mimeType)
}

// NewTextWithFilePart returns a part carrying text and a file reference.
func NewTextWithFilePart(text, fileURI, mimeType string) (Part, error) {
	if strings.TrimSpace(fileURI) == "" {
		return Part{}, NewInvalidRequestError("file uri is required", nil)
	}
	var mt MimeType
	if mimeType != "" {
		var err error
		if mt, err = ParseMimeType(mimeType); err != nil {
			return Part{}, err
		}
	}
	return Part{
		Text:     text,
		FileData: &FileData{MimeType: mt, FileURI: fileURI},
	}, nil
}

// FilePartFrom builds a file reference part from an uploaded File.
func FilePartFrom(f *File) (Part, error) {
	if f == nil {
		return Part{}, NewInvalidRequestError("file is required", nil)
	}
	return NewFilePart(f.URI, f.MimeType)
}
