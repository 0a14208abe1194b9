package static

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrBadRequest is returned by ParseRequestLine for anything but "GET <target> <version>".
var ErrBadRequest = errors.New("static: invalid request line")

// Default file names used when Config leaves them empty.
const (
	DefaultIndexFile    = "home.html"
	DefaultNotFoundPage = "404.html"
)

const plainText = "text/plain"

// MaxRequestLine is the longest request line ServeConn reads, terminator
// included. Longer lines are answered with 400.
const MaxRequestLine = 8 << 10

// Config configures a Handler.
type Config struct {
	Root         string // directory files are served from
	IndexFile    string // served for directory targets
	NotFoundPage string // served with 404 when a file is missing
}

// Result describes what ServeConn wrote.
type Result struct {
	Status int
	Bytes  int64
	Err    error // write error, if any
}

// Handler answers one request per connection from files under Root.
type Handler struct {
	root         string
	indexFile    string
	notFoundPage string
}

// NewHandler creates a Handler. Empty IndexFile and NotFoundPage fall back
// to home.html and 404.html.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		root:         cfg.Root,
		indexFile:    cfg.IndexFile,
		notFoundPage: cfg.NotFoundPage,
	}
	if h.root == "" {
		h.root = "."
	}
	if h.indexFile == "" {
		h.indexFile = DefaultIndexFile
	}
	if h.notFoundPage == "" {
		h.notFoundPage = DefaultNotFoundPage
	}
	return h
}

// Root returns the served directory.
func (h *Handler) Root() string {
	return h.root
}

// ParseRequestLine extracts the target of a GET request line. The leading
// slash and any query string are removed.
func ParseRequestLine(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 || parts[0] != http.MethodGet {
		return "", ErrBadRequest
	}

	target := parts[1]
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	return strings.TrimLeft(target, "/"), nil
}

// ServeConn reads the request line from rw and writes a single response.
func (h *Handler) ServeConn(rw io.ReadWriter) Result {
	line, err := bufio.NewReaderSize(rw, MaxRequestLine).ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) || (err != nil && len(line) == 0) {
		return writeError(rw, http.StatusBadRequest, "Invalid HTTP request.")
	}

	target, err := ParseRequestLine(strings.TrimRight(string(line), "\r\n"))
	if err != nil {
		return writeError(rw, http.StatusBadRequest, "Invalid HTTP request.")
	}

	return h.serveTarget(rw, target)
}

func (h *Handler) serveTarget(w io.Writer, target string) Result {
	fullPath := h.resolve(target)

	if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
		index := filepath.Join(fullPath, h.indexFile)
		contents, err := os.ReadFile(index)
		if err != nil {
			return writeError(w, http.StatusNotFound, "Default file not found.")
		}
		return writeFile(w, http.StatusOK, ContentType(index, contents), contents)
	}

	contents, err := os.ReadFile(fullPath)
	switch {
	case err == nil:
		return writeFile(w, http.StatusOK, ContentType(fullPath, contents), contents)
	case errors.Is(err, fs.ErrNotExist):
		page := filepath.Join(h.root, h.notFoundPage)
		if body, err := os.ReadFile(page); err == nil {
			return writeFile(w, http.StatusNotFound, ContentType(page, body), body)
		}
		return writeError(w, http.StatusNotFound, "File not found.")
	default:
		return writeError(w, http.StatusInternalServerError, "Server error.")
	}
}

// resolve maps target into root. Cleaning against "/" first keeps ".."
// segments from climbing out of root.
func (h *Handler) resolve(target string) string {
	cleaned := path.Clean("/" + target)
	return filepath.Join(h.root, filepath.FromSlash(cleaned))
}

// ContentType returns the MIME type for a file, by extension first and by
// sniffing its contents otherwise.
func ContentType(name string, contents []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return mimetype.Detect(contents).String()
}

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

func writeError(w io.Writer, code int, message string) Result {
	return writeFile(w, code, plainText, []byte(message))
}

func writeFile(w io.Writer, code int, contentType string, body []byte) Result {
	header := fmt.Sprintf("%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		statusLine(code), contentType, len(body))

	res := Result{Status: code}
	n, err := io.WriteString(w, header)
	res.Bytes += int64(n)
	if err != nil {
		res.Err = fmt.Errorf("write header: %w", err)
		return res
	}
	m, err := w.Write(body)
	res.Bytes += int64(m)
	if err != nil {
		res.Err = fmt.Errorf("write body: %w", err)
	}
	return res
}
