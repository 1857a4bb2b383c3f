package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

const recipePage = `<!doctype html>
<html><head><title>Pesto</title><style>body{color:red}</style><script>var x = 1;</script></head>
<body>
<header>Site menu</header>
<nav><a href="/">Home</a></nav>
<h1>Basil Pesto</h1>
<ul><li>2 cups fresh basil</li><li>1/2 cup pine nuts</li><li>Parmesan &amp; garlic</li></ul>
<p>Blend everything.    Serve   warm.</p>
<footer>Copyright</footer>
</body></html>`

func TestExtractDropsChrome(t *testing.T) {
	text, err := ExtractString(recipePage)
	require.NoError(t, err)
	assert.Equal(t, "Pesto\nBasil Pesto\n2 cups fresh basil\n1/2 cup pine nuts\nParmesan & garlic\nBlend everything.\nServe\nwarm.", text)
	assert.NotContains(t, text, "Site menu")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "Copyright")
}

func TestFetchText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pesto":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(recipePage))
		case "/empty":
			_, _ = w.Write([]byte("<html><script>1</script></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(5*time.Second, 0)
	ctx := context.Background()

	text, err := f.Text(ctx, srv.URL+"/pesto")
	require.NoError(t, err)
	assert.Contains(t, text, "pine nuts")

	_, err = f.Text(ctx, srv.URL+"/missing")
	assert.True(t, errors.Is(err, errs.ErrExternalEffectFailure))

	_, err = f.Text(ctx, srv.URL+"/empty")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	_, err = f.Text(ctx, "ftp://example.com/file")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}
