package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

func TestWhisper_Transcribe(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_WHISPER_KEY", "k")
	var model, format, filename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		model = r.FormValue("model")
		format = r.FormValue("response_format")
		if _, hdr, err := r.FormFile("file"); err == nil {
			filename = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Hi there. Second part.","duration":9.8,"segments":[
			{"id":0,"start":0.0,"end":3.2,"text":" Hi there."},
			{"id":1,"start":3.2,"end":9.8,"text":" Second part."}
		]}`))
	}))
	t.Cleanup(srv.Close)

	w, err := NewWhisper(WhisperConfig{BaseURL: srv.URL, APIKeyEnv: "TOPICRAG_TEST_WHISPER_KEY", MaxRetries: 1})
	require.NoError(t, err)

	tr, err := w.Transcribe(context.Background(), "/tmp/uploads/talk.mp3", []byte("ID3fake"))
	require.NoError(t, err)
	assert.Equal(t, "whisper-1", model)
	assert.Equal(t, "verbose_json", format)
	assert.Equal(t, "talk.mp3", filename)
	assert.Equal(t, "Hi there. Second part.", tr.Text)
	require.Len(t, tr.Segments, 2)
	assert.InDelta(t, 3.2, tr.Segments[1].Start, 1e-9)
	assert.InDelta(t, 6.6, tr.Segments[1].Duration, 1e-9)
	assert.Equal(t, 9, tr.DurationSec)
}

func TestWhisper_RejectsBadInput(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_WHISPER_KEY", "k")
	w, err := NewWhisper(WhisperConfig{BaseURL: "http://127.0.0.1:1", APIKeyEnv: "TOPICRAG_TEST_WHISPER_KEY"})
	require.NoError(t, err)

	_, err = w.Transcribe(context.Background(), "notes.txt", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = w.Transcribe(context.Background(), "a.mp3", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = w.Transcribe(context.Background(), "a.mp3", make([]byte, MaxUploadBytes+1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewWhisper_MissingKey(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_WHISPER_KEY", "")
	_, err := NewWhisper(WhisperConfig{APIKeyEnv: "TOPICRAG_TEST_WHISPER_KEY"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
