package shard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lull/internal/agent"
	"lull/internal/apperrors"
	"lull/internal/bus"
	"lull/internal/capability"
	"lull/internal/screen"
)

type fakeOCR struct {
	text string
	err  error
	got  []byte
}

func (f *fakeOCR) ExtractText(ctx context.Context, img []byte) (string, error) {
	f.got = img
	return f.text, f.err
}

type fakeVision struct {
	labels []string
	err    error
}

func (f fakeVision) DetectObjectsInFrame(ctx context.Context, frame []byte) ([]string, error) {
	return f.labels, f.err
}

type fakeTranslator struct {
	text, lang string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	f.text, f.lang = text, lang
	return "Bonjour", nil
}

func newHandler(d Deps) *Handler {
	if d.Router == nil {
		d.Router = agent.New(agent.Config{AgentName: "Lull", UserName: "Amita", Caps: capability.All()}, agent.Providers{})
	}
	return New("lull", d)
}

func TestHandle_Command(t *testing.T) {
	h := newHandler(Deps{})
	in := bus.NewMessage("dashboard", "lull", bus.KindCommand, "hi lull")

	out := h.Handle(context.Background(), in)

	require.NotNil(t, out)
	assert.Equal(t, bus.KindReply, out.Kind)
	assert.Equal(t, "Hi Amita, how may I help you?", out.Content)
	assert.Equal(t, "dashboard", out.To)
	assert.Equal(t, "lull", out.From)
	assert.Equal(t, in.ID, out.ReplyTo)
}

func TestHandle_IgnoresOthers(t *testing.T) {
	h := newHandler(Deps{})

	assert.Nil(t, h.Handle(context.Background(), bus.NewMessage("dashboard", "weather", bus.KindCommand, "hi")))
	assert.Nil(t, h.Handle(context.Background(), bus.NewMessage("lull", "", bus.KindCommand, "hi")))
	assert.Nil(t, h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", bus.KindReply, "ok")))
	assert.Nil(t, h.Handle(context.Background(), nil))
}

func TestHandle_OCR(t *testing.T) {
	ocr := &fakeOCR{text: "Invoice 42"}
	h := newHandler(Deps{Screen: ocr, Answerer: screen.NewQnA(nil)})

	in := bus.NewMessage("dashboard", "lull", bus.KindOCR, "")
	in.Image = []byte("png")
	out := h.Handle(context.Background(), in)

	assert.Equal(t, bus.KindReply, out.Kind)
	assert.Equal(t, "Here is what I can read from the screen:\nInvoice 42", out.Content)
	assert.Equal(t, []byte("png"), ocr.got)

	in.Content = "is there an invoice?"
	out = h.Handle(context.Background(), in)
	assert.Equal(t, "Yes, I can see invoice on the screen.", out.Content)
}

func TestHandle_OCRFailure(t *testing.T) {
	ocr := &fakeOCR{err: apperrors.CaptureFailed("Screen capture failed", errors.New("bad image"))}
	h := newHandler(Deps{Screen: ocr})

	out := h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", bus.KindOCR, ""))

	assert.Equal(t, bus.KindError, out.Kind)
	assert.Equal(t, "Screen capture failed: bad image", out.Content)
}

func TestHandle_Detect(t *testing.T) {
	h := newHandler(Deps{Vision: fakeVision{labels: []string{"cup", "phone"}}})
	out := h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", bus.KindDetect, ""))
	assert.Equal(t, "I see: cup, phone.", out.Content)

	h = newHandler(Deps{Vision: fakeVision{}})
	out = h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", bus.KindDetect, ""))
	assert.Equal(t, "I could not identify any objects in your hand.", out.Content)
}

func TestHandle_Translate(t *testing.T) {
	tr := &fakeTranslator{}
	h := newHandler(Deps{Translator: tr})

	in := bus.NewMessage("dashboard", "lull", bus.KindTranslate, "Hello")
	in.Lang = "french"
	out := h.Handle(context.Background(), in)
	assert.Equal(t, "Bonjour", out.Content)
	assert.Equal(t, "Hello", tr.text)
	assert.Equal(t, "french", tr.lang)

	out = h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", bus.KindTranslate, "translate good night to hindi"))
	assert.Equal(t, bus.KindReply, out.Kind)
	assert.Equal(t, "good night", tr.text)
	assert.Equal(t, "hindi", tr.lang)

	out = h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", bus.KindTranslate, "good night"))
	assert.Equal(t, bus.KindError, out.Kind)
	assert.Equal(t, agent.ClarifyTargetReply, out.Content)
}

func TestHandle_Unavailable(t *testing.T) {
	h := newHandler(Deps{})

	for kind, want := range map[string]string{
		bus.KindOCR:       "Screen OCR dependencies are not available.",
		bus.KindDetect:    "Camera is not available.",
		bus.KindTranslate: "Translation is not available.",
	} {
		out := h.Handle(context.Background(), bus.NewMessage("dashboard", "lull", kind, "x"))
		assert.Equal(t, bus.KindError, out.Kind, kind)
		assert.Equal(t, want, out.Content, kind)
	}

	in := bus.NewMessage("dashboard", "lull", bus.KindCommand, "")
	in.Audio = []byte("RIFF")
	out := h.Handle(context.Background(), in)
	assert.Equal(t, "Speech recognition is not available.", out.Content)
}

func TestHandle_UnknownKind(t *testing.T) {
	out := newHandler(Deps{}).Handle(context.Background(), bus.NewMessage("dashboard", "lull", "dance", ""))
	assert.Equal(t, bus.KindError, out.Kind)
	assert.Contains(t, out.Content, `unsupported message kind "dance"`)
}

type fakeConn struct {
	mu      sync.Mutex
	inbox   []*bus.Message
	readErr []error
	sent    []*bus.Message
}

func (c *fakeConn) Read(ctx context.Context) (*bus.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.readErr) > 0 {
		err := c.readErr[0]
		c.readErr = c.readErr[1:]
		return nil, err
	}
	if len(c.inbox) == 0 {
		return nil, bus.ErrClosed
	}
	m := c.inbox[0]
	c.inbox = c.inbox[1:]
	return m, nil
}

func (c *fakeConn) Write(m *bus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func TestRun(t *testing.T) {
	conn := &fakeConn{
		readErr: []error{errors.New("decode message: bad json")},
		inbox: []*bus.Message{
			bus.NewMessage("dashboard", "lull", bus.KindCommand, "hi lull"),
			bus.NewMessage("dashboard", "other", bus.KindCommand, "hi lull"),
			bus.NewMessage("dashboard", "lull", bus.KindCommand, "stop"),
		},
	}

	require.NoError(t, newHandler(Deps{}).Run(context.Background(), conn))

	require.Len(t, conn.sent, 2)
	assert.Equal(t, "Hi Amita, how may I help you?", conn.sent[0].Content)
	assert.Equal(t, "Stopped.", conn.sent[1].Content)
}
