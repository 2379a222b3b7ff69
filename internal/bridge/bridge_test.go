package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type sentMessage struct {
	deviceID string
	msg      OutgoingMessage
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) SendAppMessage(_ context.Context, deviceID string, msg OutgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{deviceID: deviceID, msg: msg})
	return nil
}

func (s *recordingSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type stubFetcher struct {
	mu     sync.Mutex
	urls   []string
	status int
	body   string
	err    error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return f.status, f.body, f.err
}

func (f *stubFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBridge(f Fetcher, s Sender, now time.Time) *Bridge {
	return New(Options{
		BaseURL: "http://localhost:8080",
		Fetcher: f,
		Sender:  s,
		Logger:  quietLogger(),
		Now:     func() time.Time { return now },
	})
}

func appMessage(p Payload) Event {
	return Event{Kind: EventAppMessage, Type: "appmessage", DeviceID: "watch-1", Payload: p}
}

func TestHandleAppMessage_RelaysScheduleOn200(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, body: "7:15,7:30,7:45"}
	s := &recordingSender{}
	b := newTestBridge(f, s, at(14, 5))

	b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "Downtown;North"}))
	b.Wait()

	urls := f.requested()
	if len(urls) != 1 || urls[0] != "http://localhost:8080/p/Downtown/North/2:05PM/" {
		t.Fatalf("requested = %v, want exactly the Downtown/North URL", urls)
	}
	got := s.messages()
	if len(got) != 1 {
		t.Fatalf("sent %d messages, want 1", len(got))
	}
	if got[0].msg != (OutgoingMessage{Sched: "7:15,7:30,7:45"}) || got[0].deviceID != "watch-1" {
		t.Errorf("sent = %+v, want {sched: 7:15,7:30,7:45} to watch-1", got[0])
	}
}

func TestHandleAppMessage_MissingSchedDoesNothing(t *testing.T) {
	for _, p := range []Payload{{}, nil, {"sched": 7.0}} {
		f := &stubFetcher{status: http.StatusOK, body: "x"}
		s := &recordingSender{}
		b := newTestBridge(f, s, at(9, 0))

		b.HandleAppMessage(context.Background(), appMessage(p))
		b.Wait()

		if n := len(f.requested()); n != 0 {
			t.Errorf("payload %v: %d requests issued, want 0", p, n)
		}
		if n := len(s.messages()); n != 0 {
			t.Errorf("payload %v: %d messages sent, want 0", p, n)
		}
	}
}

func TestHandleAppMessage_Non200IsDropped(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusNoContent} {
		f := &stubFetcher{status: status, body: "error: invalid stn"}
		s := &recordingSender{}
		b := newTestBridge(f, s, at(9, 0))

		b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "JSQ;jsq_33rd"}))
		b.Wait()

		if n := len(f.requested()); n != 1 {
			t.Errorf("status %d: %d requests, want 1", status, n)
		}
		if n := len(s.messages()); n != 0 {
			t.Errorf("status %d: %d messages sent, want 0", status, n)
		}
	}
}

func TestHandleAppMessage_RequestErrorIsDropped(t *testing.T) {
	f := &stubFetcher{err: errors.New("connection refused")}
	s := &recordingSender{}
	b := newTestBridge(f, s, at(9, 0))

	b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "JSQ;jsq_33rd"}))
	b.Wait()

	if n := len(s.messages()); n != 0 {
		t.Errorf("%d messages sent, want 0", n)
	}
}

func TestHandleAppMessage_SingleSegmentSendsUndefined(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, body: ""}
	b := newTestBridge(f, &recordingSender{}, at(0, 3))

	b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "OnlyOneSegment"}))
	b.Wait()

	urls := f.requested()
	if len(urls) != 1 || urls[0] != "http://localhost:8080/p/OnlyOneSegment/undefined/0:03AM/" {
		t.Errorf("requested = %v", urls)
	}
}

func TestHandleAppMessage_SendFailureIsLogged(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, body: "ok"}
	s := &recordingSender{err: errors.New("device gone")}
	b := newTestBridge(f, s, at(9, 0))

	b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "JSQ;jsq_33rd"}))
	b.Wait()

	if n := len(f.requested()); n != 1 {
		t.Errorf("%d requests, want 1", n)
	}
}

func TestHandleAppMessage_ConcurrentMessagesRunIndependently(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/p/slow/d/9:00AM/" {
			<-release
		}
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()

	s := &recordingSender{}
	b := New(Options{
		BaseURL: srv.URL,
		Sender:  s,
		Logger:  quietLogger(),
		Now:     func() time.Time { return at(9, 0) },
	})

	b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "slow;d"}))
	b.HandleAppMessage(context.Background(), appMessage(Payload{"sched": "fast;d"}))

	deadline := time.After(5 * time.Second)
	for len(s.messages()) < 1 {
		select {
		case <-deadline:
			t.Fatal("fast request never completed while slow one was pending")
		case <-time.After(10 * time.Millisecond):
		}
	}
	close(release)
	b.Wait()

	got := s.messages()
	if len(got) != 2 {
		t.Fatalf("sent %d messages, want 2", len(got))
	}
	if got[0].msg.Sched != "/p/fast/d/9:00AM/" || got[1].msg.Sched != "/p/slow/d/9:00AM/" {
		t.Errorf("replies = %+v, want fast before slow", got)
	}
}

func TestRegister_RoutesEvents(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, body: "sched"}
	s := &recordingSender{}
	b := newTestBridge(f, s, at(18, 45))
	r := NewRegistry()
	b.Register(r)

	r.Dispatch(context.Background(), ReadyEvent("watch-1"))
	r.Dispatch(context.Background(), appMessage(Payload{"sched": "Newport;jsq_33rd"}))
	b.Wait()

	urls := f.requested()
	if len(urls) != 1 || urls[0] != "http://localhost:8080/p/Newport/jsq_33rd/6:45PM/" {
		t.Errorf("requested = %v", urls)
	}
	if len(s.messages()) != 1 {
		t.Errorf("sent %d messages, want 1", len(s.messages()))
	}
}
