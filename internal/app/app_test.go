package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lull/internal/capability"
	"lull/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		AgentName:         "Lull",
		QAModel:           "qa-model",
		VisionModel:       "vision-model",
		TranslateEndpoint: "http://127.0.0.1:1/translate",
		TranslateTimeout:  time.Second,
		ScreenCaptureCmd:  []string{"grim", "-"},
		CameraDevice:      "0",
	}
}

func TestBuild_NothingAvailable(t *testing.T) {
	p, err := Build(baseConfig(), capability.Set{})
	require.NoError(t, err)

	assert.Nil(t, p.QA)
	assert.Nil(t, p.Screen)
	assert.Nil(t, p.Vision)
	assert.Nil(t, p.Translator)
	assert.NotNil(t, p.Answerer)

	ap := p.Agent(nil)
	assert.Nil(t, ap.Screen)
	assert.Nil(t, ap.Translator)
	assert.Nil(t, ap.Vision)

	d := p.Shard(nil, nil)
	assert.Nil(t, d.Screen)
	assert.Nil(t, d.Translator)
	assert.Nil(t, d.Vision)
}

func TestBuild_Everything(t *testing.T) {
	cfg := baseConfig()
	cfg.OpenAIKey = "sk-test"

	p, err := Build(cfg, capability.All())
	require.NoError(t, err)

	require.NotNil(t, p.QA)
	assert.Equal(t, "qa-model", p.QA.Model())
	assert.Equal(t, "vision-model", p.VisionLLM.Model())
	assert.NotNil(t, p.Screen)
	assert.NotNil(t, p.Vision)
	assert.NotNil(t, p.Translator)

	ap := p.Agent(nil)
	assert.NotNil(t, ap.Screen)
	assert.NotNil(t, ap.Translator)
	assert.NotNil(t, ap.Vision)
}

func TestBuild_VisionNeedsModel(t *testing.T) {
	p, err := Build(baseConfig(), capability.All())
	require.NoError(t, err)
	assert.Nil(t, p.Vision)
	assert.Nil(t, p.Agent(nil).Vision)
}

func TestBuild_ThroughProxy(t *testing.T) {
	cfg := baseConfig()
	cfg.ProxyAddr = "127.0.0.1:1080"

	p, err := Build(cfg, capability.Set{})
	require.NoError(t, err)
	assert.NotNil(t, p.Answerer)
}
