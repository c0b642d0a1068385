package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/services/detect"
	"github.com/princekumarofficial/plate-console/internal/storage/memory"
	"github.com/princekumarofficial/plate-console/internal/types"
	"github.com/princekumarofficial/plate-console/internal/types/media"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRprocessed")

type fakeEvent struct{ prevented int }

func (e *fakeEvent) PreventDefault() { e.prevented++ }

type fakeInput struct {
	upload *media.Upload
}

func (i *fakeInput) File() (*media.Upload, bool) {
	if i.upload == nil {
		return nil, false
	}
	return i.upload, true
}

type fakeContainer struct {
	mu       sync.Mutex
	elements []Element
}

func (c *fakeContainer) Replace(el Element) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements = []Element{el}
}

type fakeAlerter struct {
	messages []string
}

func (a *fakeAlerter) Alert(message string) {
	a.messages = append(a.messages, message)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []types.EventType
}

func (p *fakePublisher) PublishSubmission(eventType types.EventType, _ *types.SubmissionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

type detectorFunc func(ctx context.Context, upload *media.Upload) (media.Result, error)

func (f detectorFunc) Detect(ctx context.Context, upload *media.Upload) (media.Result, error) {
	return f(ctx, upload)
}

type fixture struct {
	input     *fakeInput
	container *fakeContainer
	alerter   *fakeAlerter
	store     *objecturl.MemoryStore
	registry  *objecturl.Registry
}

func newFixture() *fixture {
	store := objecturl.NewMemoryStore()
	return &fixture{
		input:     &fakeInput{},
		container: &fakeContainer{},
		alerter:   &fakeAlerter{},
		store:     store,
		registry:  objecturl.NewRegistry(store),
	}
}

func (f *fixture) handler(detector Detector, opts ...Option) *Handler {
	return New(Deps{
		Input:     f.input,
		Container: f.container,
		Alerter:   f.alerter,
		Detector:  detector,
		Registry:  f.registry,
	}, opts...)
}

// newDetectionService fakes the external detection service
func newDetectionService(t *testing.T, paths *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*paths = append(*paths, r.URL.Path)
		switch r.URL.Path {
		case "/detect-image/":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(media.ErrorBody{Error: "decode failed"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmit_ImageScenario(t *testing.T) {
	var paths []string
	srv := newDetectionService(t, &paths)
	f := newFixture()
	f.input.upload = &media.Upload{Filename: "plate.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg")}

	h := f.handler(detect.New(srv.URL, srv.Client()))
	ev := &fakeEvent{}

	if err := h.Submit(context.Background(), ev); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if ev.prevented != 1 {
		t.Fatalf("Expected PreventDefault once, got %d", ev.prevented)
	}
	if len(paths) != 1 || paths[0] != "/detect-image/" {
		t.Fatalf("Expected one POST to /detect-image/, got %v", paths)
	}
	if len(f.container.elements) != 1 {
		t.Fatalf("Expected exactly one element, got %d", len(f.container.elements))
	}

	el := f.container.elements[0]
	if el.Tag != "img" {
		t.Fatalf("Expected img element, got %s", el.Tag)
	}

	id, ok := objecturl.ID(el.Src)
	if !ok {
		t.Fatalf("Expected element source to be an object URL, got %s", el.Src)
	}
	blob, err := f.registry.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Expected object URL to resolve, got %v", err)
	}
	if !bytes.Equal(blob.Body, pngBytes) {
		t.Fatal("Expected object URL to resolve to the response body")
	}
	if len(f.alerter.messages) != 0 {
		t.Fatalf("Expected no alerts, got %v", f.alerter.messages)
	}
}

func TestSubmit_VideoFailureScenario(t *testing.T) {
	var paths []string
	srv := newDetectionService(t, &paths)
	f := newFixture()
	f.input.upload = &media.Upload{Filename: "clip.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4")}

	h := f.handler(detect.New(srv.URL, srv.Client()))
	ev := &fakeEvent{}

	if err := h.Submit(context.Background(), ev); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if ev.prevented != 1 {
		t.Fatalf("Expected PreventDefault once, got %d", ev.prevented)
	}
	if len(paths) != 1 || paths[0] != "/detect-video/" {
		t.Fatalf("Expected one POST to /detect-video/, got %v", paths)
	}
	if len(f.alerter.messages) != 1 || f.alerter.messages[0] != "Error: decode failed" {
		t.Fatalf("Expected alert 'Error: decode failed', got %v", f.alerter.messages)
	}
	if len(f.container.elements) != 0 {
		t.Fatalf("Expected container untouched on failure, got %v", f.container.elements)
	}
}

func TestSubmit_VideoSuccessRendersControls(t *testing.T) {
	f := newFixture()
	f.input.upload = &media.Upload{Filename: "clip.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4")}

	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		return &media.Success{Body: []byte("out"), ContentType: "video/mp4", Kind: media.KindVideo}, nil
	}))

	if err := h.Submit(context.Background(), &fakeEvent{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	el := f.container.elements[0]
	if el.Tag != "video" || !el.Controls {
		t.Fatalf("Expected video element with controls, got %+v", el)
	}
	if !strings.Contains(string(el.HTML()), "<video controls src=\"/media/") {
		t.Fatalf("Unexpected markup: %s", el.HTML())
	}
}

func TestSubmit_ReleasesPreviousObjectURL(t *testing.T) {
	f := newFixture()
	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		return &media.Success{Body: []byte(upload.Filename), ContentType: "image/png", Kind: media.KindImage}, nil
	}))

	f.input.upload = &media.Upload{Filename: "one.jpg", ContentType: "image/jpeg", Body: strings.NewReader("1")}
	if err := h.Submit(context.Background(), &fakeEvent{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	first := h.Current()

	f.input.upload = &media.Upload{Filename: "two.jpg", ContentType: "image/jpeg", Body: strings.NewReader("2")}
	if err := h.Submit(context.Background(), &fakeEvent{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second := h.Current()

	if first == second {
		t.Fatal("Expected a fresh object URL for the second result")
	}
	id, _ := objecturl.ID(first)
	if _, err := f.registry.Open(context.Background(), id); !errors.Is(err, objecturl.ErrNotFound) {
		t.Fatalf("Expected first object URL to be revoked, got %v", err)
	}
	if f.store.Len() != 1 {
		t.Fatalf("Expected exactly one live blob, got %d", f.store.Len())
	}

	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("Expected no live blobs after Close, got %d", f.store.Len())
	}
	if h.Current() != "" {
		t.Fatalf("Expected no current URL after Close, got %s", h.Current())
	}
}

func TestSubmit_FailureKeepsPreviousResult(t *testing.T) {
	f := newFixture()
	fail := false
	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		if fail {
			return &media.Failure{Status: 500, Message: "boom"}, nil
		}
		return &media.Success{Body: []byte("ok"), ContentType: "image/png", Kind: media.KindImage}, nil
	}))

	f.input.upload = &media.Upload{Filename: "one.jpg", ContentType: "image/jpeg", Body: strings.NewReader("1")}
	h.Submit(context.Background(), &fakeEvent{})
	shown := h.Current()

	fail = true
	h.Submit(context.Background(), &fakeEvent{})

	if h.Current() != shown {
		t.Fatalf("Expected %s to stay on display, got %s", shown, h.Current())
	}
	if f.store.Len() != 1 {
		t.Fatalf("Expected displayed blob to survive a failure, got %d blobs", f.store.Len())
	}
}

func TestSubmit_NoFile(t *testing.T) {
	f := newFixture()
	called := false
	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		called = true
		return nil, nil
	}))
	ev := &fakeEvent{}

	err := h.Submit(context.Background(), ev)
	if !errors.Is(err, ErrNoFile) {
		t.Fatalf("Expected ErrNoFile, got %v", err)
	}
	if ev.prevented != 1 {
		t.Fatal("Expected PreventDefault even without a file")
	}
	if called {
		t.Fatal("Expected no detection call without a file")
	}
	if len(f.alerter.messages) != 1 || f.alerter.messages[0] != "Error: no file selected" {
		t.Fatalf("Expected no-file alert, got %v", f.alerter.messages)
	}
}

func TestSubmit_InvalidUpload(t *testing.T) {
	f := newFixture()
	f.input.upload = &media.Upload{ContentType: "image/png", Body: strings.NewReader("x")}
	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		t.Fatal("Expected no detection call for an invalid upload")
		return nil, nil
	}))

	if err := h.Submit(context.Background(), &fakeEvent{}); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("Expected ErrInvalidUpload, got %v", err)
	}
	if len(f.alerter.messages) != 1 || f.alerter.messages[0] != "Error: Filename: required" {
		t.Fatalf("Expected a readable validation alert, got %v", f.alerter.messages)
	}
}

func TestSubmit_TransportError(t *testing.T) {
	f := newFixture()
	f.input.upload = &media.Upload{Filename: "plate.jpg", ContentType: "image/jpeg", Body: strings.NewReader("x")}
	boom := errors.New("connection refused")
	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		return nil, boom
	}))

	err := h.Submit(context.Background(), &fakeEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped transport error, got %v", err)
	}
	if len(f.alerter.messages) != 1 || !strings.Contains(f.alerter.messages[0], "connection refused") {
		t.Fatalf("Expected alert naming the transport error, got %v", f.alerter.messages)
	}
}

func TestSubmit_InFlightGuard(t *testing.T) {
	f := newFixture()
	f.input.upload = &media.Upload{Filename: "plate.jpg", ContentType: "image/jpeg", Body: strings.NewReader("x")}

	entered := make(chan struct{})
	release := make(chan struct{})
	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		close(entered)
		<-release
		return &media.Success{Body: []byte("ok"), ContentType: "image/png", Kind: media.KindImage}, nil
	}))

	done := make(chan error, 1)
	go func() {
		done <- h.Submit(context.Background(), &fakeEvent{})
	}()

	<-entered
	if !h.Busy() {
		t.Fatal("Expected handler to report busy")
	}
	ev := &fakeEvent{}
	if err := h.Submit(context.Background(), ev); !errors.Is(err, ErrInFlight) {
		t.Fatalf("Expected ErrInFlight, got %v", err)
	}
	if ev.prevented != 1 {
		t.Fatal("Expected PreventDefault on the rejected submission")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if h.Busy() {
		t.Fatal("Expected handler to be idle after the submission settles")
	}
}

func TestSubmit_RecordsHistoryAndEvents(t *testing.T) {
	f := newFixture()
	f.input.upload = &media.Upload{Filename: "clip.mp4", ContentType: "video/mp4", Body: strings.NewReader("x")}
	history := memory.New()
	publisher := &fakePublisher{}

	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		return &media.Failure{Status: 500, Message: "decode failed"}, nil
	}), WithSession("s1"), WithHistory(history), WithPublisher(publisher))

	if err := h.Submit(context.Background(), &fakeEvent{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, _ := history.ListSubmissions(context.Background(), 10)
	if len(got) != 1 {
		t.Fatalf("Expected 1 recorded submission, got %d", len(got))
	}
	rec := got[0]
	if rec.SessionID != "s1" || rec.Endpoint != "/detect-video/" || rec.Outcome != types.OutcomeFailed || rec.Error != "decode failed" {
		t.Fatalf("Unexpected record: %+v", rec)
	}

	want := []types.EventType{types.EventSubmissionStarted, types.EventSubmissionFailed}
	if len(publisher.events) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, publisher.events)
	}
	for i := range want {
		if publisher.events[i] != want[i] {
			t.Fatalf("Expected events %v, got %v", want, publisher.events)
		}
	}
}

func TestElementHTML(t *testing.T) {
	img := ElementFor(media.KindImage, "/media/abc")
	if got := string(img.HTML()); got != `<img src="/media/abc" alt="Processed Image" />` {
		t.Fatalf("Unexpected img markup: %s", got)
	}

	video := ElementFor(media.KindVideo, "/media/abc")
	if got := string(video.HTML()); got != `<video controls src="/media/abc"></video>` {
		t.Fatalf("Unexpected video markup: %s", got)
	}

	hostile := ElementFor(media.KindImage, `/media/"><script>`)
	if strings.Contains(string(hostile.HTML()), "<script>") {
		t.Fatalf("Expected src to be escaped, got %s", hostile.HTML())
	}
}

// flakyStore fails every Put after the first n
type flakyStore struct {
	*objecturl.MemoryStore
	puts, n int
}

func (s *flakyStore) Put(ctx context.Context, id string, blob *objecturl.Blob) error {
	s.puts++
	if s.puts > s.n {
		return errors.New("store full")
	}
	return s.MemoryStore.Put(ctx, id, blob)
}

func TestSubmit_StoreFailureKeepsDisplayedResult(t *testing.T) {
	f := newFixture()
	store := &flakyStore{MemoryStore: f.store, n: 1}
	f.registry = objecturl.NewRegistry(store)

	h := f.handler(detectorFunc(func(ctx context.Context, upload *media.Upload) (media.Result, error) {
		return &media.Success{Body: []byte(upload.Filename), ContentType: "image/png", Kind: media.KindImage}, nil
	}))

	f.input.upload = &media.Upload{Filename: "a.jpg", ContentType: "image/jpeg", Body: strings.NewReader("a")}
	if err := h.Submit(context.Background(), &fakeEvent{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	shown := f.container.elements[0].Src

	f.input.upload = &media.Upload{Filename: "b.jpg", ContentType: "image/jpeg", Body: strings.NewReader("b")}
	if err := h.Submit(context.Background(), &fakeEvent{}); err == nil {
		t.Fatal("Expected the store failure to be returned")
	}

	if got := f.container.elements[0].Src; got != shown {
		t.Fatalf("Expected %s to stay on display, got %s", shown, got)
	}
	if h.Current() != shown {
		t.Fatalf("Expected current URL %s, got %s", shown, h.Current())
	}
	id, _ := objecturl.ID(shown)
	blob, err := f.registry.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Expected the displayed URL to still resolve, got %v", err)
	}
	if string(blob.Body) != "a.jpg" {
		t.Fatalf("Unexpected blob body %q", blob.Body)
	}
	if len(f.alerter.messages) != 1 || !strings.Contains(f.alerter.messages[0], "store full") {
		t.Fatalf("Expected an alert naming the store failure, got %v", f.alerter.messages)
	}
}
