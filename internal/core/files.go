package core

// FileState is the processing state of an uploaded file.
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// File is the remote descriptor of an uploaded file.
// Name and URI are assigned by the server and stay empty until the upload is finalized.
type File struct {
	Name           string         `json:"name,omitempty"`
	DisplayName    string         `json:"displayName,omitempty"`
	MimeType       string         `json:"mimeType,omitempty"`
	SizeBytes      int64          `json:"sizeBytes,string,omitempty"`
	CreateTime     string         `json:"createTime,omitempty"`
	UpdateTime     string         `json:"updateTime,omitempty"`
	ExpirationTime string         `json:"expirationTime,omitempty"`
	SHA256Hash     string         `json:"sha256Hash,omitempty"`
	URI            string         `json:"uri,omitempty"`
	State          FileState      `json:"state,omitempty"`
	Source         string         `json:"source,omitempty"`
	Error          *Status        `json:"error,omitempty"`
	VideoMetadata  *VideoMetadata `json:"videoMetadata,omitempty"`
}

// Status is the error detail attached to a file whose processing failed.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// VideoMetadata is returned for video files once processed.
type VideoMetadata struct {
	VideoDuration string `json:"videoDuration,omitempty"`
}

// ListFilesResponse is returned by GET files.
type ListFilesResponse struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// FileEnvelope wraps a File the way the upload endpoint returns it.
type FileEnvelope struct {
	File File `json:"file"`
}
