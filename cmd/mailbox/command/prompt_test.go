package command

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailboxhub/internal/config"
)

func TestPromptDevice_AsksForMissingValues(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("briefkasten.local\n5005\n"))
	var out bytes.Buffer
	cfg := &config.Config{}

	require.NoError(t, promptDevice(in, &out, cfg))

	assert.Equal(t, "briefkasten.local", cfg.MailboxHost)
	assert.Equal(t, 5005, cfg.MailboxPort)
	assert.Equal(t, "Hostname: Port: ", out.String())
}

func TestPromptDevice_SkipsConfiguredValues(t *testing.T) {
	var out bytes.Buffer
	cfg := &config.Config{MailboxHost: "10.0.0.7", MailboxPort: 23}

	require.NoError(t, promptDevice(bufio.NewReader(strings.NewReader("")), &out, cfg))

	assert.Empty(t, out.String())
	assert.Equal(t, "10.0.0.7", cfg.MailboxHost)
}

func TestPromptDevice_AnswerWithoutNewline(t *testing.T) {
	cfg := &config.Config{MailboxHost: "localhost"}

	require.NoError(t, promptDevice(bufio.NewReader(strings.NewReader("8080")), &bytes.Buffer{}, cfg))

	assert.Equal(t, 8080, cfg.MailboxPort)
}

func TestPromptDevice_NoInput(t *testing.T) {
	err := promptDevice(bufio.NewReader(strings.NewReader("")), &bytes.Buffer{}, &config.Config{})
	assert.Error(t, err)
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5005", 5005, false},
		{" 80 ", 80, false},
		{"0", 0, true},
		{"70000", 0, true},
		{"telnet", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePort(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKey(t *testing.T) {
	assert.Equal(t, keyToggle, parseKey("\n"))
	assert.Equal(t, keyToggle, parseKey("T\n"))
	assert.Equal(t, keyQuit, parseKey("q\r\n"))
	assert.Equal(t, keyNone, parseKey("hello\n"))
}
