package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookTransport_Send(t *testing.T) {
	var received cardPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Write([]byte(`{"code": 0}`))
	}))
	defer server.Close()

	transport := NewWebhookTransport(server.URL, "")
	err := transport.Send(context.Background(), "Test Title", "**body**")
	require.NoError(t, err)

	assert.Equal(t, "interactive", received.MsgType)
	assert.Equal(t, "Test Title", received.Card.Header.Title.Content)
	require.Len(t, received.Card.Elements, 1)
	assert.Equal(t, "markdown", received.Card.Elements[0].Tag)
	assert.Equal(t, "**body**", received.Card.Elements[0].Content)
	assert.Empty(t, received.Sign)
}

func TestWebhookTransport_SignsWhenSecretConfigured(t *testing.T) {
	var received cardPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Write([]byte(`{"code": 0}`))
	}))
	defer server.Close()

	transport := NewWebhookTransport(server.URL, "tops3cret")
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	transport.now = func() time.Time { return fixed }

	err := transport.Send(context.Background(), "T", "b")
	require.NoError(t, err)

	assert.Equal(t, "1772442000", received.Timestamp)
	assert.Equal(t, sign(received.Timestamp, "tops3cret"), received.Sign)
	assert.NotEmpty(t, received.Sign)
}

func TestWebhookTransport_RejectionIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 19001, "msg": "invalid sign"}`))
	}))
	defer server.Close()

	transport := NewWebhookTransport(server.URL, "")
	err := transport.Send(context.Background(), "T", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sign")
}

func TestWebhookTransport_HTTPErrorIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transport := NewWebhookTransport(server.URL, "")
	err := transport.Send(context.Background(), "T", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookTransport_TruncatesOversizedBody(t *testing.T) {
	var received cardPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Write([]byte(`{"code": 0}`))
	}))
	defer server.Close()

	transport := NewWebhookTransport(server.URL, "")
	err := transport.Send(context.Background(), "T", strings.Repeat("x", webhookMaxLength+500))
	require.NoError(t, err)

	assert.Len(t, received.Card.Elements[0].Content, webhookMaxLength)
	assert.True(t, strings.HasSuffix(received.Card.Elements[0].Content, "..."))
}

func TestWebhookTransport_TruncationKeepsValidUTF8(t *testing.T) {
	var received cardPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Write([]byte(`{"code": 0}`))
	}))
	defer server.Close()

	// The 1-byte prefix misaligns the 3-byte runes against the cut point,
	// so a plain byte-index cut would land mid-rune.
	body := "a" + strings.Repeat("中", webhookMaxLength/3+500)

	transport := NewWebhookTransport(server.URL, "")
	err := transport.Send(context.Background(), "T", body)
	require.NoError(t, err)

	content := received.Card.Elements[0].Content
	assert.True(t, utf8.ValidString(content))
	assert.LessOrEqual(t, len(content), webhookMaxLength)
	assert.True(t, strings.HasSuffix(content, "..."))
}

func TestSign_Deterministic(t *testing.T) {
	a := sign("1772442000", "secret")
	b := sign("1772442000", "secret")
	c := sign("1772442001", "secret")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
}
