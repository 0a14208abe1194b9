package static

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in  io.Reader
	out *bytes.Buffer
}

func (c fakeConn) Read(p []byte) (int, error) {
	return c.in.Read(p)
}

func (c fakeConn) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func newSite(t *testing.T, withNotFound bool) string {
	t.Helper()
	root := t.TempDir()
	write := func(name, content string) {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("home.html", "<!DOCTYPE html><html><body>home</body></html>")
	write("style.css", "body { color: red; }")
	write("docs/home.html", "<html><body>docs</body></html>")
	write("blob", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	if withNotFound {
		write("404.html", "<html><body>missing</body></html>")
	}
	return root
}

func serve(t *testing.T, h *Handler, request string) (string, Result) {
	t.Helper()
	conn := fakeConn{in: strings.NewReader(request), out: &bytes.Buffer{}}
	res := h.ServeConn(conn)
	return conn.out.String(), res
}

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		line     string
		expected string
		hasError bool
	}{
		{"GET /home.html HTTP/1.1", "home.html", false},
		{"GET / HTTP/1.1", "", false},
		{"GET //docs/a.css?v=2 HTTP/1.0", "docs/a.css", false},
		{"POST /home.html HTTP/1.1", "", true},
		{"GET /home.html", "", true},
		{"INVALID REQUEST", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRequestLine(tt.line)
		if tt.hasError {
			assert.ErrorIs(t, err, ErrBadRequest, "line %q", tt.line)
			continue
		}
		require.NoError(t, err, "line %q", tt.line)
		assert.Equal(t, tt.expected, got, "line %q", tt.line)
	}
}

func TestServeFile(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	out, res := serve(t, h, "GET /home.html HTTP/1.1\r\nHost: localhost\r\n\r\n")

	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, "Content-Type: text/html")
	assert.Contains(t, out, "Content-Length: 45\r\n\r\n")
	assert.True(t, strings.HasSuffix(out, "home</body></html>"))
	assert.Equal(t, int64(len(out)), res.Bytes)
}

func TestServeContentTypes(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	out, _ := serve(t, h, "GET /style.css HTTP/1.1\r\n")
	assert.Contains(t, out, "Content-Type: text/css")

	out, _ = serve(t, h, "GET /blob HTTP/1.1\r\n")
	assert.Contains(t, out, "Content-Type: image/png")
}

func TestServeDirectoryIndex(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	out, res := serve(t, h, "GET / HTTP/1.1\r\n")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, out, "home</body>")

	out, res = serve(t, h, "GET /docs HTTP/1.1\r\n")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, out, "docs</body>")

	out, res = serve(t, h, "GET /empty/ HTTP/1.1\r\n")
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Contains(t, out, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(out, "Default file not found."))
}

func TestServeNotFoundPage(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	out, res := serve(t, h, "GET /notfound.html HTTP/1.1\r\n")
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n"), out)
	assert.Contains(t, out, "Content-Type: text/html")
	assert.Contains(t, out, "missing</body>")
}

func TestServeNotFoundPlain(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, false)})

	out, res := serve(t, h, "GET /notfound.html HTTP/1.1\r\n")
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Contains(t, out, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(out, "File not found."))
}

func TestServeBadRequest(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	for _, req := range []string{"INVALID REQUEST\r\n", "DELETE /home.html HTTP/1.1\r\n", ""} {
		out, res := serve(t, h, req)
		assert.Equal(t, http.StatusBadRequest, res.Status, "request %q", req)
		assert.True(t, strings.HasPrefix(out, "HTTP/1.1 400 Bad Request\r\n"), out)
		assert.True(t, strings.HasSuffix(out, "Invalid HTTP request."))
	}
}

// countingReader yields n bytes of 'A' and never a newline.
type countingReader struct {
	n, read int
}

func (r *countingReader) Read(p []byte) (int, error) {
	if r.read >= r.n {
		return 0, io.EOF
	}
	k := min(len(p), r.n-r.read)
	for i := range k {
		p[i] = 'A'
	}
	r.read += k
	return k, nil
}

func TestServeRequestLineTooLong(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	in := &countingReader{n: 64 << 20}
	conn := fakeConn{in: in, out: &bytes.Buffer{}}
	res := h.ServeConn(conn)

	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.True(t, strings.HasPrefix(conn.out.String(), "HTTP/1.1 400 Bad Request\r\n"))
	assert.LessOrEqual(t, in.read, MaxRequestLine)
}

func TestServeRequestLineAtLimit(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	prefix := "GET /home.html?pad="
	suffix := " HTTP/1.1\r\n"
	pad := strings.Repeat("x", MaxRequestLine-len(prefix)-len(suffix))
	out, res := serve(t, h, prefix+pad+suffix)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, out, "home")
}

func TestServeServerError(t *testing.T) {
	h := NewHandler(Config{Root: newSite(t, true)})

	// A regular file used as a directory fails with ENOTDIR, not ENOENT.
	out, res := serve(t, h, "GET /style.css/inner HTTP/1.1\r\n")
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.True(t, strings.HasSuffix(out, "Server error."))
}

func TestServeStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "site")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0o644))

	h := NewHandler(Config{Root: root})
	out, res := serve(t, h, "GET /../secret.txt HTTP/1.1\r\n")

	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.NotContains(t, out, "secret")
}

func TestNewHandlerDefaults(t *testing.T) {
	h := NewHandler(Config{})
	assert.Equal(t, ".", h.Root())
	assert.Equal(t, "home.html", h.indexFile)
	assert.Equal(t, "404.html", h.notFoundPage)
}
