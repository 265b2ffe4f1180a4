package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/app/apptest"
	"github.com/markdave123-py/dsa-galaxy/internal/client"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func TestREPL_Session(t *testing.T) {
	color.NoColor = true
	h := apptest.New(t, apptest.Options{})
	h.LLM.Reply = func([]models.PromptMessage) string { return "Stacks are LIFO." }

	api := client.New(h.Server.URL, client.WithHTTPClient(h.Server.Client()))
	ctl := client.NewController(api, logger.Discard())

	script := strings.Join([]string{
		"/signup alice@example.com hunter22 Alice",
		"Explain stacks",
		"/sessions",
		"/page admin",
		"/stats",
		"/bogus",
		"/quit",
		"never read",
	}, "\n")
	var out bytes.Buffer
	r := newREPL(api, ctl, strings.NewReader(script), &out)
	require.NoError(t, r.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "signed in as alice@example.com (user)")
	assert.Contains(t, text, "Stacks are LIFO.")
	assert.Contains(t, text, "Explain stacks")
	assert.Contains(t, text, "Unauthorized: Admin access required")
	assert.Contains(t, text, "sessions: 1  messages: 2")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Len(t, h.LLM.Calls(), 1)
}
