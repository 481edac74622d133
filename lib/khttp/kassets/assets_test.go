package kassets

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ccontavalli/webauth/lib/khttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixMapper(t *testing.T) {
	t.Parallel()

	var got []string
	mapper := PrefixMapper("/static/", func(original, name string, handler khttp.FuncHandler) []string {
		got = append(got, name)
		return []string{name}
	})

	mapper("css/site.css", "/css/site.css", func(http.ResponseWriter, *http.Request) {})
	require.Equal(t, []string{"/static/css/site.css"}, got)
}

func TestRegisterAssetsServes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	registered := RegisterAssets(EmbedSubdirToMapOrPanic(testFS, "testdata"), MuxMapper(mux))
	assert.Equal(t, []string{"/css/site.css", "/file1.txt", "/file2.txt"}, registered)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/css/site.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "body { margin: 0; }\n", w.Body.String())
}
