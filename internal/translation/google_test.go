package translation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newGoogleTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ar", r.Form.Get("target"))
		assert.Equal(t, "en", r.Form.Get("source"))
		assert.Equal(t, "Please rest", r.Form.Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleTranslator(t *testing.T) {
	srv := newGoogleTestServer(t, http.StatusOK, `{"data":{"translations":[{"translatedText":"يرجى الراحة &amp; شرب الماء"}]}}`)

	tr, err := NewGoogleTranslator(context.Background(), "key",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	got, err := tr.Translate(context.Background(), "Please rest", "en", "ar")
	require.NoError(t, err)
	assert.Equal(t, "يرجى الراحة & شرب الماء", got)
}

func TestGoogleTranslatorError(t *testing.T) {
	srv := newGoogleTestServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"quota"}}`)

	tr, err := NewGoogleTranslator(context.Background(), "key",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), "Please rest", "en", "ar")
	assert.Error(t, err)
}

func TestGoogleTranslatorValidation(t *testing.T) {
	_, err := NewGoogleTranslator(context.Background(), "")
	assert.Error(t, err)

	tr := &GoogleTranslator{}
	_, err = tr.Translate(context.Background(), "text", "en", " ")
	assert.ErrorIs(t, err, ErrUnsupported)

	got, err := tr.Translate(context.Background(), "", "en", "fr")
	require.NoError(t, err)
	assert.Empty(t, got)
}
