package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/hwos/streamrelay/internal/app"
	"github.com/hwos/streamrelay/internal/app/orch"
	"github.com/hwos/streamrelay/internal/app/sfu"
	"github.com/hwos/streamrelay/internal/core"
)

const minimalOffer = "v=0\\r\\no=- 0 0 IN IP4 127.0.0.1\\r\\ns=-\\r\\nt=0 0\\r\\n"

type fakeMedia struct {
	mu      sync.Mutex
	onTrack func(ctx context.Context, src core.TrackSource)
	onState func(core.SessionState)
}

func (f *fakeMedia) Start(context.Context) error { return nil }
func (f *fakeMedia) Close()                      {}

func (f *fakeMedia) ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}, nil
}

func (f *fakeMedia) AddLocalTrack(*webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	return nil, nil
}

func (f *fakeMedia) OnTrack(fn func(ctx context.Context, src core.TrackSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakeMedia) OnStateChange(fn func(core.SessionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = fn
}

func (f *fakeMedia) trackCallback() func(ctx context.Context, src core.TrackSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onTrack
}

type fakeSource struct {
	done chan struct{}
	once sync.Once
}

func newFakeSource() *fakeSource { return &fakeSource{done: make(chan struct{})} }

func (s *fakeSource) ID() string                { return "a1" }
func (s *fakeSource) StreamID() string          { return "stream-a1" }
func (s *fakeSource) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeAudio }

func (s *fakeSource) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000},
		PayloadType:        111,
	}
}

func (s *fakeSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	<-s.done
	return nil, nil, io.EOF
}

func (s *fakeSource) end() { s.once.Do(func() { close(s.done) }) }

type harness struct {
	router *gin.Engine
	orch   *orch.Orchestrator
	medias []*fakeMedia
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	h := &harness{}
	streams := sfu.NewBroadcastMap()
	h.orch = &orch.Orchestrator{
		Registry: app.NewRegistry(streams),
		Streams:  streams,
		Rooms:    app.NewRoomManager(),
		Validate: core.AllowAllKeys,
		NewMedia: func(core.SessionID) (core.MediaConnection, error) {
			m := &fakeMedia{}
			h.medias = append(h.medias, m)
			return m, nil
		},
	}
	h.router = gin.New()
	h.router.POST("/offer", HandleOffer(context.Background(), h.orch))
	return h
}

func (h *harness) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func offerBody(streamKey string, broadcaster bool) string {
	b, _ := json.Marshal(map[string]any{
		"sdp":         "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n",
		"type":        "offer",
		"streamKey":   streamKey,
		"broadcaster": broadcaster,
	})
	return string(b)
}

func TestOffer_MissingFieldsIs400(t *testing.T) {
	h := newHarness()
	if w := h.post(t, `{"sdp":"v=0"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", w.Code)
	}
}

func TestOffer_NonOfferTypeIs400(t *testing.T) {
	h := newHarness()
	body := `{"sdp":"` + minimalOffer + `","type":"answer","streamKey":"abc"}`
	if w := h.post(t, body); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", w.Code)
	}
}

func TestOffer_MalformedSDPIs400(t *testing.T) {
	h := newHarness()
	body := `{"sdp":"garbage","type":"offer","streamKey":"abc"}`
	if w := h.post(t, body); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", w.Code)
	}
}

func TestOffer_ViewerUnknownKeyIs200WithAnswer(t *testing.T) {
	h := newHarness()
	w := h.post(t, offerBody("missing", false))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200; body=%s", w.Code, w.Body.String())
	}
	var resp AnswerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Type != "answer" || resp.SDP == "" {
		t.Fatalf("response=%+v, want an SDP answer", resp)
	}
}

func TestOffer_SecondBroadcasterIs409(t *testing.T) {
	h := newHarness()
	if w := h.post(t, offerBody("abc", true)); w.Code != http.StatusOK {
		t.Fatalf("first broadcaster status=%d, want 200", w.Code)
	}
	src := newFakeSource()
	defer src.end()
	h.medias[len(h.medias)-1].trackCallback()(context.Background(), src)

	if w := h.post(t, offerBody("abc", true)); w.Code != http.StatusConflict {
		t.Fatalf("second broadcaster status=%d, want 409", w.Code)
	}
}

func TestOffer_RejectedStreamKeyIs403(t *testing.T) {
	h := newHarness()
	h.orch.Validate = func(core.StreamKey) bool { return false }

	if w := h.post(t, offerBody("revoked", true)); w.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", w.Code)
	}
}

func TestOffer_BroadcasterThenViewerEndToEnd(t *testing.T) {
	h := newHarness()
	if w := h.post(t, offerBody("abc", true)); w.Code != http.StatusOK {
		t.Fatalf("broadcaster status=%d, want 200", w.Code)
	}
	src := newFakeSource()
	defer src.end()
	h.medias[len(h.medias)-1].trackCallback()(context.Background(), src)

	if w := h.post(t, offerBody("abc", false)); w.Code != http.StatusOK {
		t.Fatalf("viewer status=%d, want 200", w.Code)
	}
	if got := len(h.orch.Streams.TracksFor("abc")); got != 1 {
		t.Fatalf("TracksFor=%d tracks, want 1", got)
	}
}
