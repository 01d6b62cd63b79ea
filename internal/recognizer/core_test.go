package recognizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/varenko/speechwire/internal/connection"
	"github.com/varenko/speechwire/internal/protocol"
	"github.com/varenko/speechwire/pkg/audio"
)

// inFrame is one scripted inbound frame or transport error.
type inFrame struct {
	msg protocol.Message
	err error
}

// fakeConn is an in-memory Connection scripted by tests: outbound frames are
// recorded and handed to onSend, inbound frames are whatever the test
// delivers.
type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.Message
	onSend func(msg protocol.Message)

	inbound chan inFrame
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan inFrame, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) Send(ctx context.Context, msg protocol.Message) error {
	select {
	case <-f.closed:
		return connection.ErrConnectionClosed
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	cb := f.onSend
	f.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
	return nil
}

func (f *fakeConn) Read(ctx context.Context) (protocol.Message, error) {
	select {
	case fr := <-f.inbound:
		if fr.err != nil {
			return protocol.Message{}, fr.err
		}
		return fr.msg, nil
	case <-f.closed:
		return protocol.Message{}, connection.ErrConnectionClosed
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) deliver(msgs ...protocol.Message) {
	for _, m := range msgs {
		f.inbound <- inFrame{msg: m}
	}
}

func (f *fakeConn) deliverError(err error) {
	f.inbound <- inFrame{err: err}
}

// sentPaths returns the paths of all outbound frames in order.
func (f *fakeConn) sentPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, len(f.sent))
	for i, m := range f.sent {
		paths[i] = m.Path
	}
	return paths
}

// fakeFactory hands out scripted dial results in order.
type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	calls int
}

func (f *fakeFactory) Create(ctx context.Context, auth connection.AuthInfo, connectionID string) (connection.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.conns) {
		return f.conns[i], nil
	}
	return nil, errors.New("no scripted dial result")
}

func (f *fakeFactory) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingCredentials tracks fetch and expiry-refresh calls.
type countingCredentials struct {
	fetches atomic.Int32
	expiry  atomic.Int32
}

func (c *countingCredentials) Fetch(context.Context, string) (connection.AuthInfo, error) {
	c.fetches.Add(1)
	return connection.AuthInfo{HeaderName: "Ocp-Apim-Subscription-Key", Value: "key"}, nil
}

func (c *countingCredentials) FetchOnExpiry(context.Context, string) (connection.AuthInfo, error) {
	c.expiry.Add(1)
	return connection.AuthInfo{HeaderName: "Ocp-Apim-Subscription-Key", Value: "fresh"}, nil
}

// collector accumulates events in delivery order.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) add(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case SessionStarted:
		return "SessionStarted"
	case SessionStopped:
		return "SessionStopped"
	case StartDetected:
		return "StartDetected"
	case EndDetected:
		return "EndDetected"
	case Partial:
		return "Partial"
	case Final:
		return "Final"
	case Synthesis:
		return "Synthesis"
	case SynthesisEnd:
		return "SynthesisEnd"
	case Canceled:
		return "Canceled"
	}
	return fmt.Sprintf("%T", ev)
}

func serviceText(path, body string) protocol.Message {
	return protocol.Message{Path: path, Body: []byte(body)}
}

// finiteSource returns a push stream preloaded with n bytes of silence and a
// closed write side.
func finiteSource(t *testing.T, n int) *audio.PushStream {
	t.Helper()
	src := audio.NewPushStream(audio.Format{})
	if _, err := src.Write(make([]byte, n)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := src.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}
	return src
}

func assertEventOrder(t *testing.T, events []Event, want []string) {
	t.Helper()
	got := make([]string, len(events))
	for i, ev := range events {
		got[i] = eventName(ev)
	}
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence = %v, want %v", got, want)
		}
	}
}

func TestSingleShot_DeliversPhraseInOrder(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		switch {
		case m.Path == protocol.PathSpeechContext:
			conn.deliver(serviceText("turn.start", `{"context":{"serviceTag":"tag1"}}`))
		case m.Binary && len(m.Body) == 0:
			conn.deliver(
				serviceText("speech.startDetected", `{"Offset":1000000}`),
				serviceText("speech.hypothesis", `{"Text":"what's the","Offset":1000000,"Duration":5000000}`),
				serviceText("speech.endDetected", `{"Offset":26000000}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"What's the weather like?","Offset":1000000,"Duration":25000000}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 6400),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	assertEventOrder(t, events.all(), []string{
		"SessionStarted", "StartDetected", "Partial", "EndDetected", "Final", "SessionStopped",
	})

	final := events.all()[4].(Final)
	phrase, ok := final.Message.(protocol.SpeechPhrase)
	if !ok {
		t.Fatalf("final message is %T, want SpeechPhrase", final.Message)
	}
	if phrase.DisplayText != "What's the weather like?" {
		t.Errorf("DisplayText = %q", phrase.DisplayText)
	}
	if final.SessionID != core.SessionID() {
		t.Errorf("session id = %q, want %q", final.SessionID, core.SessionID())
	}

	paths := conn.sentPaths()
	if paths[0] != protocol.PathSpeechConfig || paths[1] != protocol.PathSpeechContext {
		t.Errorf("first outbound paths = %v, want speech.config then speech.context", paths[:2])
	}
	var sawTelemetry bool
	for _, p := range paths {
		if p == protocol.PathTelemetry {
			sawTelemetry = true
		}
	}
	if !sawTelemetry {
		t.Error("no telemetry message sent at turn end")
	}
}

func TestSingleShot_ExactlyOneFinal(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"first"}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"second"}`),
				serviceText("speech.hypothesis", `{"Text":"late"}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	var finals, partials int
	for _, ev := range events.all() {
		switch ev.(type) {
		case Final:
			finals++
		case Partial:
			partials++
		}
	}
	if finals != 1 {
		t.Errorf("finals = %d, want exactly 1", finals)
	}
	if partials != 0 {
		t.Errorf("partials after final = %d, want 0", partials)
	}
}

func TestSilence_TimesOutAsNoMatchWithinByteBudget(t *testing.T) {
	// The service enforces the silence window; the client's only duty is to
	// keep the send rate bounded so silence cannot flood the connection.
	const silenceBytes = 32000 // 1s at the default format

	conn := newFakeConn()
	var audioSeen atomic.Int64
	var timedOut atomic.Bool
	conn.onSend = func(m protocol.Message) {
		if m.Path != protocol.PathAudio || len(m.Body) == 0 {
			return
		}
		if audioSeen.Add(int64(len(m.Body))) >= silenceBytes && timedOut.CompareAndSwap(false, true) {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"InitialSilenceTimeout","Offset":0,"Duration":0}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	var bytesRead atomic.Int64
	src := audio.NewPullStream(func(p []byte) (int, error) {
		bytesRead.Add(int64(len(p)))
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}, audio.Format{})

	var readAtFinal int64
	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      src,
		Kind:        "speech",
		OnEvent: func(ev Event) {
			if _, ok := ev.(Final); ok {
				readAtFinal = bytesRead.Load()
			}
			events.add(ev)
		},
	})
	core.Run(context.Background())

	var final *Final
	for _, ev := range events.all() {
		switch v := ev.(type) {
		case Final:
			final = &v
		case Canceled:
			t.Fatalf("silence produced Canceled(%d, %q), want a NoMatch phrase", v.Code, v.Details)
		}
	}
	if final == nil {
		t.Fatal("no final result for silence")
	}
	phrase := final.Message.(protocol.SpeechPhrase)
	if phrase.Status != protocol.StatusInitialSilenceTimeout {
		t.Errorf("status = %q, want InitialSilenceTimeout", phrase.Status)
	}
	if !phrase.Status.IsNoMatch() {
		t.Error("InitialSilenceTimeout must classify as no-match")
	}

	limit := int64(float64(silenceBytes) * 1.25)
	if readAtFinal > limit {
		t.Errorf("read %d bytes before the timeout result, limit %d", readAtFinal, limit)
	}
}

func TestContinuous_EndOfStreamCancellation(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"done"}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Continuous:  true,
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	all := events.all()
	assertEventOrder(t, all, []string{"SessionStarted", "Final", "Canceled", "SessionStopped"})
	canceled := all[2].(Canceled)
	if canceled.Reason != CancelEndOfStream {
		t.Errorf("reason = %d, want CancelEndOfStream", canceled.Reason)
	}
	if canceled.Code != CodeNone {
		t.Errorf("code = %d, want CodeNone", canceled.Code)
	}
}

func TestContinuous_StopEndsWithoutCancellation(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		switch {
		case m.Path == protocol.PathSpeechContext:
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"one"}`),
			)
		case m.Binary && len(m.Body) == 0:
			conn.deliver(serviceText("turn.end", `{}`))
		}
	}

	src := audio.NewPullStream(func(p []byte) (int, error) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}, audio.Format{})

	events := &collector{}
	var core *Core
	core = New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      src,
		Continuous:  true,
		Kind:        "speech",
		OnEvent: func(ev Event) {
			events.add(ev)
			if _, ok := ev.(Final); ok {
				core.Stop()
			}
		},
	})
	core.Run(context.Background())

	all := events.all()
	for _, ev := range all {
		if _, ok := ev.(Canceled); ok {
			t.Fatal("cooperative stop must not emit Canceled")
		}
	}
	if eventName(all[len(all)-1]) != "SessionStopped" {
		t.Errorf("last event = %s, want SessionStopped", eventName(all[len(all)-1]))
	}
}

func TestContinuous_RotatesRequestSessionPerTurn(t *testing.T) {
	conn := newFakeConn()
	turn := 0
	conn.onSend = func(m protocol.Message) {
		if m.Path != protocol.PathSpeechContext {
			return
		}
		turn++
		if turn == 1 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"one"}`),
				serviceText("turn.end", `{}`),
			)
		} else {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"two"}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	src := audio.NewPullStream(func(p []byte) (int, error) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}, audio.Format{})

	events := &collector{}
	var core *Core
	finals := 0
	core = New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      src,
		Continuous:  true,
		Kind:        "speech",
		OnEvent: func(ev Event) {
			events.add(ev)
			if _, ok := ev.(Final); ok {
				finals++
				if finals == 2 {
					core.Stop()
				}
			}
		},
	})
	core.Run(context.Background())

	if finals != 2 {
		t.Fatalf("finals = %d, want 2", finals)
	}

	// Each turn carries its own request id on the speech.context message.
	conn.mu.Lock()
	defer conn.mu.Unlock()
	var contextIDs []string
	for _, m := range conn.sent {
		if m.Path == protocol.PathSpeechContext {
			contextIDs = append(contextIDs, m.RequestID)
		}
	}
	if len(contextIDs) != 2 {
		t.Fatalf("speech.context messages = %d, want 2", len(contextIDs))
	}
	if contextIDs[0] == contextIDs[1] {
		t.Error("request id not rotated between turns")
	}
}

func TestConnect_RefreshesCredentialOnceOnRejection(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"ok"}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	factory := &fakeFactory{
		errs:  []error{&connection.DialError{StatusCode: 401, Err: errors.New("expired")}},
		conns: []*fakeConn{nil, conn},
	}
	creds := &countingCredentials{}

	events := &collector{}
	core := New(Options{
		Factory:     factory,
		Credentials: creds,
		Source:      finiteSource(t, 3200),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	if got := creds.expiry.Load(); got != 1 {
		t.Errorf("FetchOnExpiry calls = %d, want 1", got)
	}
	if got := factory.dialCount(); got != 2 {
		t.Errorf("dial attempts = %d, want 2", got)
	}
	var sawFinal bool
	for _, ev := range events.all() {
		if _, ok := ev.(Canceled); ok {
			t.Fatal("successful retry must not emit Canceled")
		}
		if _, ok := ev.(Final); ok {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Error("no final result after credential refresh")
	}
}

func TestConnect_SecondRejectionIsAuthenticationFailure(t *testing.T) {
	factory := &fakeFactory{
		errs: []error{
			&connection.DialError{StatusCode: 401, Err: errors.New("expired")},
			&connection.DialError{StatusCode: 403, Err: errors.New("forbidden")},
		},
	}
	creds := &countingCredentials{}

	events := &collector{}
	core := New(Options{
		Factory:     factory,
		Credentials: creds,
		Source:      finiteSource(t, 3200),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	all := events.all()
	if len(all) != 1 {
		t.Fatalf("events = %d, want exactly the Canceled event", len(all))
	}
	canceled, ok := all[0].(Canceled)
	if !ok {
		t.Fatalf("event is %T, want Canceled", all[0])
	}
	if canceled.Code != CodeAuthenticationFailure {
		t.Errorf("code = %d, want CodeAuthenticationFailure", canceled.Code)
	}
	if got := creds.expiry.Load(); got != 1 {
		t.Errorf("FetchOnExpiry calls = %d, want 1", got)
	}
	if got := factory.dialCount(); got != 2 {
		t.Errorf("dial attempts = %d, want 2", got)
	}
}

func TestDialCodeMapping(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{401, CodeAuthenticationFailure},
		{403, CodeAuthenticationFailure},
		{400, CodeBadRequest},
		{429, CodeTooManyRequests},
		{408, CodeServiceTimeout},
		{504, CodeServiceTimeout},
		{500, CodeConnectionFailure},
		{0, CodeConnectionFailure},
	}
	for _, tc := range tests {
		err := &connection.DialError{StatusCode: tc.status, Err: errors.New("dial")}
		if got := dialCode(err); got != tc.want {
			t.Errorf("dialCode(status=%d) = %d, want %d", tc.status, got, tc.want)
		}
	}
	if got := dialCode(errors.New("plain")); got != CodeConnectionFailure {
		t.Errorf("dialCode(plain error) = %d, want CodeConnectionFailure", got)
	}
}

func TestTransportError_CancelsThenStops(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Path == protocol.PathSpeechContext {
			conn.deliver(serviceText("turn.start", `{}`))
			conn.deliverError(errors.New("connection reset"))
		}
	}

	src := audio.NewPullStream(func(p []byte) (int, error) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}, audio.Format{})

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      src,
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	assertEventOrder(t, events.all(), []string{"SessionStarted", "Canceled", "SessionStopped"})
	canceled := events.all()[1].(Canceled)
	if canceled.Code != CodeConnectionFailure {
		t.Errorf("code = %d, want CodeConnectionFailure", canceled.Code)
	}
}

func TestServiceErrorPhrase_CancelsWithServiceError(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Error","DisplayText":"quota exceeded"}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	assertEventOrder(t, events.all(), []string{"SessionStarted", "Canceled", "SessionStopped"})
	canceled := events.all()[1].(Canceled)
	if canceled.Code != CodeServiceError {
		t.Errorf("code = %d, want CodeServiceError", canceled.Code)
	}
	if canceled.Details != "quota exceeded" {
		t.Errorf("details = %q", canceled.Details)
	}
}

func TestMalformedFrame_CancelsWithRuntimeError(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Path == protocol.PathSpeechContext {
			conn.deliver(serviceText("speech.phrase", `{not json`))
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	var canceled *Canceled
	for _, ev := range events.all() {
		if c, ok := ev.(Canceled); ok {
			canceled = &c
		}
	}
	if canceled == nil {
		t.Fatal("malformed frame did not cancel")
	}
	if canceled.Code != CodeRuntimeError {
		t.Errorf("code = %d, want CodeRuntimeError", canceled.Code)
	}
}

func TestTranslation_RoundTripWithSynthesis(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("translation.hypothesis", `{"Text":"what's the","Translation":{"Translations":[{"Language":"de","Text":"wie ist"}]}}`),
				serviceText("translation.phrase", `{"RecognitionStatus":"Success","Text":"What's the weather like?","Translation":{"TranslationStatus":"Success","Translations":[{"Language":"de","Text":"Wie ist das Wetter?"}]}}`),
				protocol.Message{Path: "translation.synthesis", Body: []byte{1, 2, 3}, Binary: true},
				serviceText("translation.synthesis.end", `{"SynthesisStatus":"SynthesisEnd"}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 6400),
		Kind:        "translation",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	assertEventOrder(t, events.all(), []string{
		"SessionStarted", "Partial", "Final", "Synthesis", "SynthesisEnd", "SessionStopped",
	})

	final := events.all()[2].(Final)
	phrase := final.Message.(protocol.TranslationPhrase)
	if phrase.Text != "What's the weather like?" {
		t.Errorf("recognized text = %q", phrase.Text)
	}
	if got := phrase.Translations["de"]; got != "Wie ist das Wetter?" {
		t.Errorf(`translations["de"] = %q, want "Wie ist das Wetter?"`, got)
	}

	synth := events.all()[3].(Synthesis)
	if len(synth.Audio) != 3 {
		t.Errorf("synthesis audio = %d bytes, want 3", len(synth.Audio))
	}
}

func TestIntent_PairsPhraseWithResponse(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"turn on the lights"}`),
				serviceText("response", `{"topScoringIntent":{"intent":"HomeAutomation.TurnOn"}}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Kind:        "intent",
		Intent:      &IntentContext{AppID: "app", Key: "key"},
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	var final *Final
	for _, ev := range events.all() {
		if f, ok := ev.(Final); ok {
			final = &f
		}
	}
	if final == nil {
		t.Fatal("no final result")
	}
	if final.Intent == nil {
		t.Fatal("final carries no intent response")
	}
	if final.Intent.TopIntent != "HomeAutomation.TurnOn" {
		t.Errorf("top intent = %q", final.Intent.TopIntent)
	}
}

func TestIntent_TurnEndReleasesPendingPhrase(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"hello"}`),
				serviceText("turn.end", `{}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Kind:        "intent",
		Intent:      &IntentContext{AppID: "app", Key: "key"},
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	var final *Final
	for _, ev := range events.all() {
		if f, ok := ev.(Final); ok {
			final = &f
		}
	}
	if final == nil {
		t.Fatal("pending phrase was never released")
	}
	if final.Intent != nil {
		t.Error("intent should be nil when the service sent no response")
	}
}

// Delivery must stay serialized even when the pump goroutine cancels the
// attempt while the receive goroutine is still inside a handler: no
// interleaved calls, and never an event after Canceled except SessionStopped.
func TestEventDelivery_SerializedAcrossGoroutines(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Path == protocol.PathSpeechContext {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.hypothesis", `{"Text":"what's","Offset":1000000,"Duration":5000000}`),
			)
		}
	}

	// Endless silence keeps the pump sending audio frames.
	src := audio.NewPullStream(func(p []byte) (int, error) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}, audio.Format{})

	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}

	partialEntered := make(chan struct{})
	releasePartial := make(chan struct{})
	var blockOnce sync.Once

	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      src,
		Kind:        "speech",
		OnEvent: func(ev Event) {
			name := eventName(ev)
			record(name + ".enter")
			if name == "Partial" {
				blockOnce.Do(func() {
					close(partialEntered)
					<-releasePartial
				})
			}
			record(name + ".exit")
		},
	})

	go func() {
		<-partialEntered
		// Fail the pump's next audio send while the Partial delivery is
		// still in flight, so its cancellation races the handler.
		conn.Close()
		time.Sleep(150 * time.Millisecond)
		close(releasePartial)
	}()
	core.Run(context.Background())

	mu.Lock()
	got := append([]string(nil), trace...)
	mu.Unlock()

	if len(got)%2 != 0 {
		t.Fatalf("odd trace %v", got)
	}
	for i := 0; i < len(got); i += 2 {
		want := strings.TrimSuffix(got[i], ".enter") + ".exit"
		if got[i+1] != want {
			t.Fatalf("interleaved delivery at %d: %v", i, got)
		}
	}
	partialExit, canceledEnter, canceledCount := -1, -1, 0
	for i, s := range got {
		switch s {
		case "Partial.exit":
			partialExit = i
		case "Canceled.enter":
			canceledEnter = i
			canceledCount++
		}
	}
	if canceledCount != 1 {
		t.Errorf("Canceled delivered %d times: %v", canceledCount, got)
	}
	if partialExit == -1 || canceledEnter == -1 || canceledEnter < partialExit {
		t.Errorf("Canceled overtook the in-flight Partial: %v", got)
	}
	if len(got) < 2 || got[len(got)-2] != "SessionStopped.enter" {
		t.Errorf("SessionStopped was not the last event: %v", got)
	}
}

// A RecognitionStatus this SDK has never heard of is a service failure, not a
// recognized phrase.
func TestUnrecognizedStatusPhrase_CancelsWithServiceError(t *testing.T) {
	conn := newFakeConn()
	conn.onSend = func(m protocol.Message) {
		if m.Binary && len(m.Body) == 0 {
			conn.deliver(
				serviceText("turn.start", `{}`),
				serviceText("speech.phrase", `{"RecognitionStatus":"ServiceUnavailable","Offset":0,"Duration":0}`),
			)
		}
	}

	events := &collector{}
	core := New(Options{
		Factory:     &fakeFactory{conns: []*fakeConn{conn}},
		Credentials: &countingCredentials{},
		Source:      finiteSource(t, 3200),
		Kind:        "speech",
		OnEvent:     events.add,
	})
	core.Run(context.Background())

	assertEventOrder(t, events.all(), []string{"SessionStarted", "Canceled", "SessionStopped"})
	canceled := events.all()[1].(Canceled)
	if canceled.Code != CodeServiceError {
		t.Errorf("code = %d, want CodeServiceError", canceled.Code)
	}
	if canceled.Details != "service reported status ServiceUnavailable" {
		t.Errorf("details = %q", canceled.Details)
	}
}
