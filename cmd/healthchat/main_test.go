package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/healthchat/internal/audit"
	"github.com/comigor/healthchat/internal/config"
)

func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func auditedConfig(t *testing.T) *config.Config {
	return &config.Config{
		Responder: config.ResponderConfig{
			Mode:  config.ModeStub,
			Delay: time.Millisecond,
			Text:  config.PlaceholderReply,
		},
		Audit: config.AuditConfig{
			Enabled: true,
			DBPath:  filepath.Join(t.TempDir(), "audit.db"),
		},
	}
}

func TestNewApp_RecordsConversation(t *testing.T) {
	useConfig(t, auditedConfig(t))

	a, err := newApp()
	require.NoError(t, err)
	require.NotNil(t, a.recorder)

	a.store.Submit("Hello")
	var entries []audit.Entry
	require.Eventually(t, func() bool {
		entries, err = a.recorder.List(a.store.SessionID())
		return err == nil && len(entries) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Hello", entries[0].Content)
	assert.Equal(t, config.PlaceholderReply, entries[1].Content)

	sessionID := a.store.SessionID()
	a.Close()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runAudit(cmd, []string{sessionID}))
	var listed []audit.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "user", listed[0].Sender)
	assert.Equal(t, "ai", listed[1].Sender)

	out.Reset()
	require.NoError(t, runAudit(cmd, nil))
	var sessions []string
	require.NoError(t, json.Unmarshal(out.Bytes(), &sessions))
	assert.Equal(t, []string{sessionID}, sessions)
}

func TestNewApp_AuditDisabled(t *testing.T) {
	c := auditedConfig(t)
	c.Audit.Enabled = false
	useConfig(t, c)

	a, err := newApp()
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.recorder)

	err = runAudit(&cobra.Command{}, nil)
	assert.ErrorContains(t, err, "audit trail is disabled")
}

func TestNewApp_UnknownResponderMode(t *testing.T) {
	c := auditedConfig(t)
	c.Responder.Mode = "llm"
	useConfig(t, c)

	_, err := newApp()
	assert.ErrorContains(t, err, "unknown responder mode")
}
