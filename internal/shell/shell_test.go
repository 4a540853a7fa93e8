package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lull/internal/agent"
	"lull/internal/capability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptListener struct {
	mu    sync.Mutex
	lines []string
	errs  []error
}

func (l *scriptListener) Listen(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		return "", err
	}
	if len(l.lines) == 0 {
		return "", io.EOF
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line, nil
}

type blockingListener struct{}

func (blockingListener) Listen(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingSpeaker struct {
	mu    sync.Mutex
	said  []string
	stops int
}

func (s *recordingSpeaker) SpeakAsync(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
}

func (s *recordingSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *recordingSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.said...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newRouter(sp agent.Speaker) *agent.Router {
	return agent.New(agent.Config{AgentName: "Lull", UserName: "Amita", Caps: capability.All()}, agent.Providers{Speaker: sp})
}

func TestRun_Conversation(t *testing.T) {
	sp := &recordingSpeaker{}
	l := &scriptListener{lines: []string{"hi lull", "   ", "stop", "tell me a joke"}}
	var out syncBuffer

	sh := New(Config{AgentName: "Lull", EchoUser: true, Poll: 10 * time.Millisecond}, l, newRouter(sp), sp, &out)
	require.NoError(t, sh.Run(context.Background()))

	want := strings.Join([]string{
		"Lull: Lull is ready. Say 'Hi Lull'.",
		"You: hi lull",
		"Lull: Hi Amita, how may I help you?",
		"You: stop",
		"Lull: Stopped.",
		"You: tell me a joke",
		"Lull: I can help with screen reading, object detection, or translations to Hindi, Marathi, and French.",
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())

	// the stop reply is shown, not spoken
	assert.Equal(t, []string{
		"Lull is ready. Say 'Hi Lull'.",
		"Hi Amita, how may I help you?",
		"I can help with screen reading, object detection, or translations to Hindi, Marathi, and French.",
	}, sp.spoken())
	assert.Equal(t, 1, sp.stops)
}

func TestRun_NoEcho(t *testing.T) {
	sp := &recordingSpeaker{}
	l := &scriptListener{lines: []string{"hi lull"}}
	var out syncBuffer

	sh := New(Config{AgentName: "Lull", Poll: 10 * time.Millisecond}, l, newRouter(sp), sp, &out)
	require.NoError(t, sh.Run(context.Background()))

	assert.NotContains(t, out.String(), "You:")
	assert.Contains(t, out.String(), "Lull: Hi Amita, how may I help you?")
}

func TestRun_ListenErrorIsNotFatal(t *testing.T) {
	sp := &recordingSpeaker{}
	l := &scriptListener{errs: []error{errors.New("mic unplugged")}, lines: []string{"hi lull"}}
	var out syncBuffer

	sh := New(Config{AgentName: "Lull", Poll: 10 * time.Millisecond}, l, newRouter(sp), sp, &out)
	require.NoError(t, sh.Run(context.Background()))

	assert.Contains(t, out.String(), "Hi Amita")
}

func TestRun_Cancel(t *testing.T) {
	sp := &recordingSpeaker{}
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	sh := New(Config{AgentName: "Lull", Poll: 10 * time.Millisecond}, blockingListener{}, newRouter(sp), sp, &out)

	errCh := make(chan error, 1)
	go func() { errCh <- sh.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
