package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"geminikit/internal/pkg/apiclient"
)

var errDiskFailure = errors.New("simulated disk failure")

// countingFS wraps a MapFS and records every handle it hands out.
type countingFS struct {
	files fstest.MapFS

	// failAfter makes reads fail once this many bytes were read from a handle; negative disables it.
	failAfter int64

	mu      sync.Mutex
	handles []*countingFile
}

func newCountingFS(files fstest.MapFS) *countingFS {
	return &countingFS{files: files, failAfter: -1}
}

func (c *countingFS) Open(name string) (fs.File, error) {
	f, err := c.files.Open(name)
	if err != nil {
		return nil, err
	}
	h := &countingFile{File: f, failAfter: c.failAfter}
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
	return h, nil
}

func (c *countingFS) opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// closedOnce reports whether every handle was closed exactly one time.
func (c *countingFS) closedOnce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handles {
		if h.closeCount() != 1 {
			return false
		}
	}
	return true
}

type countingFile struct {
	fs.File
	failAfter int64

	mu     sync.Mutex
	read   int64
	closes int
}

func (f *countingFile) Read(p []byte) (int, error) {
	if f.failAfter >= 0 {
		left := f.failAfter - f.read
		if left <= 0 {
			return 0, errDiskFailure
		}
		if int64(len(p)) > left {
			p = p[:left]
		}
	}
	n, err := f.File.Read(p)
	f.read += int64(n)
	return n, err
}

func (f *countingFile) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return f.File.Close()
}

func (f *countingFile) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type stubInspector struct {
	info Info
	err  error
}

func (s stubInspector) Inspect(string) (Info, error) {
	return s.info, s.err
}

type recordedChunk struct {
	session string
	command string
	offset  string
	length  int64
	body    []byte
}

type recordedInitiation struct {
	header http.Header
	query  string
	body   string
}

// fakeUploadServer speaks the resumable upload protocol.
type fakeUploadServer struct {
	*httptest.Server

	omitUploadURL bool
	initStatus    int
	failChunk     int // 1-based index of the chunk to reject, 0 for none
	failStatus    int
	finalizeBody  string
	chunkDelay    time.Duration

	mu          sync.Mutex
	sessions    int
	initiations []recordedInitiation
	chunks      []recordedChunk
	received    map[string]int64
}

func newFakeUploadServer(t *testing.T) *fakeUploadServer {
	t.Helper()
	s := &fakeUploadServer{received: map[string]int64{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeUploadServer) initiationURL() string {
	return s.URL + "/upload/v1beta/files"
}

func (s *fakeUploadServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.URL.Path == "/upload/v1beta/files":
		s.mu.Lock()
		s.initiations = append(s.initiations, recordedInitiation{header: r.Header.Clone(), query: r.URL.RawQuery, body: string(body)})
		s.sessions++
		id := "s" + strconv.Itoa(s.sessions)
		s.mu.Unlock()

		if s.initStatus != 0 {
			w.WriteHeader(s.initStatus)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
			return
		}
		if !s.omitUploadURL {
			w.Header().Set(HeaderUploadURL, s.URL+"/session/"+id+"?upload_id="+id)
		}
		w.WriteHeader(http.StatusOK)

	case strings.HasPrefix(r.URL.Path, "/session/"):
		if s.chunkDelay > 0 {
			time.Sleep(s.chunkDelay)
		}
		id := strings.TrimPrefix(r.URL.Path, "/session/")
		command := r.Header.Get(HeaderCommand)

		s.mu.Lock()
		s.chunks = append(s.chunks, recordedChunk{
			session: id,
			command: command,
			offset:  r.Header.Get(HeaderOffset),
			length:  r.ContentLength,
			body:    body,
		})
		index := len(s.chunks)
		s.received[id] += int64(len(body))
		total := s.received[id]
		s.mu.Unlock()

		if s.failChunk == index {
			w.WriteHeader(s.failStatus)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend unavailable","status":"UNAVAILABLE"}}`))
			return
		}
		if command != CommandFinalize {
			w.Header().Set("X-Goog-Upload-Status", "active")
			w.WriteHeader(http.StatusOK)
			return
		}

		w.Header().Set("X-Goog-Upload-Status", "final")
		w.Header().Set("Content-Type", "application/json")
		if s.finalizeBody != "" {
			_, _ = w.Write([]byte(s.finalizeBody))
			return
		}
		_, _ = fmt.Fprintf(w, `{"file":{"name":"files/%s","mimeType":"video/mp4","sizeBytes":"%d","createTime":"2024-05-01T10:00:00.000000Z","expirationTime":"2024-05-03T10:00:00.000000Z","uri":"https://generativelanguage.googleapis.com/v1beta/files/%s","state":"PROCESSING","source":"UPLOADED"}}`, id, total, id)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *fakeUploadServer) recordedChunks() []recordedChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedChunk(nil), s.chunks...)
}

func (s *fakeUploadServer) recordedInitiations() []recordedInitiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedInitiation(nil), s.initiations...)
}

func (s *fakeUploadServer) transport() *apiclient.Client {
	return apiclient.New(apiclient.DefaultConfig(s.URL, "test-key"), nil)
}

// recordingHooks captures hook calls.
type recordingHooks struct {
	mu       sync.Mutex
	started  []Info
	chunks   []int64
	finals   int
	finished []error
}

func (h *recordingHooks) UploadStarted(info Info) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, info)
}

func (h *recordingHooks) ChunkSent(n int64, final bool, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, n)
	if final {
		h.finals++
	}
}

func (h *recordingHooks) UploadFinished(err error, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, err)
}
