package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lull/internal/ipc"
)

type recorder struct {
	path string
	msg  ipc.ControlMessage
}

func execute(t *testing.T, send sendFunc, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(send)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSay(t *testing.T) {
	var got recorder
	send := func(path string, msg ipc.ControlMessage) (ipc.Reply, error) {
		got = recorder{path, msg}
		return ipc.Reply{Text: "Hi Amita, how may I help you?"}, nil
	}

	out, err := execute(t, send, "say", "--socket", "/tmp/x.sock", "hi", "lull")
	require.NoError(t, err)
	assert.Equal(t, "Hi Amita, how may I help you?\n", out)
	assert.Equal(t, "/tmp/x.sock", got.path)
	assert.Equal(t, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: "hi lull"}, got.msg)
}

func TestTriggerAndStop(t *testing.T) {
	var cmds []string
	send := func(path string, msg ipc.ControlMessage) (ipc.Reply, error) {
		cmds = append(cmds, msg.Cmd)
		return ipc.Reply{}, nil
	}

	_, err := execute(t, send, "trigger")
	require.NoError(t, err)
	_, err = execute(t, send, "stop")
	require.NoError(t, err)
	assert.Equal(t, []string{ipc.CmdTrigger, ipc.CmdStop}, cmds)
}

func TestReplyError(t *testing.T) {
	send := func(string, ipc.ControlMessage) (ipc.Reply, error) {
		return ipc.Reply{Error: "speech recognition is not available"}, nil
	}

	_, err := execute(t, send, "trigger")
	assert.EqualError(t, err, "speech recognition is not available")
}

func TestDaemonDown(t *testing.T) {
	send := func(string, ipc.ControlMessage) (ipc.Reply, error) {
		return ipc.Reply{}, errors.New("connection refused")
	}

	_, err := execute(t, send, "stop")
	assert.ErrorContains(t, err, "lull-daemon not running")
}

func TestSayNeedsText(t *testing.T) {
	_, err := execute(t, nil, "say")
	assert.Error(t, err)
}
