package upload

import "time"

// Hooks observe an upload without influencing it.
// Implementations must be safe for concurrent use; one Client may serve concurrent uploads.
type Hooks interface {
	UploadStarted(info Info)
	ChunkSent(bytes int64, final bool, elapsed time.Duration)
	UploadFinished(err error, elapsed time.Duration)
}

type noopHooks struct{}

func (noopHooks) UploadStarted(Info) {}

func (noopHooks) ChunkSent(int64, bool, time.Duration) {}

func (noopHooks) UploadFinished(error, time.Duration) {}
