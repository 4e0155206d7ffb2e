package upstream

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is advertised on every upstream request; decodeBody must
// cover everything listed here.
const acceptEncoding = "gzip, deflate, br, zstd"

type wrappedBody struct {
	reader io.Reader
	inner  io.Closer
	closer io.Closer
}

func (w *wrappedBody) Read(p []byte) (int, error) { return w.reader.Read(p) }

func (w *wrappedBody) Close() error {
	if w.closer != nil {
		w.closer.Close()
	}
	return w.inner.Close()
}

// decodeBody wraps resp.Body with the decoder matching Content-Encoding.
// Go's transport transparently handles gzip only when it added the header
// itself; we advertise more, so we decode the rest here.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	body := resp.Body
	switch encoding {
	case "", "identity":
		return body, nil
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &wrappedBody{reader: gz, inner: body, closer: gz}, nil
	case "deflate":
		fl := flate.NewReader(body)
		return &wrappedBody{reader: fl, inner: body, closer: fl}, nil
	case "br":
		return &wrappedBody{reader: brotli.NewReader(body), inner: body}, nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &wrappedBody{reader: zr.IOReadCloser(), inner: body}, nil
	}
	return body, nil
}
