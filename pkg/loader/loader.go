// Package loader fetches and decodes a classification tree payload.
//
// A source is a file path, "-" for stdin, or an http(s) URL. JSON is the
// default encoding; files ending in .yaml or .yml are read as YAML.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// StdinSource reads the payload from standard input.
const StdinSource = "-"

// MaxPayloadBytes caps how much of a source is read.
const MaxPayloadBytes = 64 << 20

// Format is a payload encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatFor infers the encoding from a source's extension.
func FormatFor(source string) Format {
	if u := strings.IndexAny(source, "?#"); u >= 0 && isURL(source) {
		source = source[:u]
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ErrEmptyPayload is returned for sources with no content.
var ErrEmptyPayload = errors.New("payload is empty")

// LoadError wraps any failure to fetch or decode a payload. It is fatal to
// initialization: no partial tree is ever returned alongside it.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Options tune Load.
type Options struct {
	Format     *Format      // overrides extension-based detection
	HTTPClient *http.Client // defaults to a client with a 30s timeout
	Stdin      io.Reader    // defaults to os.Stdin
}

// Load fetches source and decodes it.
func Load(ctx context.Context, source string, opts Options) (*model.RawNode, error) {
	format := FormatFor(source)
	if opts.Format != nil {
		format = *opts.Format
	}

	rc, err := open(ctx, source, opts)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	defer rc.Close()

	root, err := Decode(rc, format)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	debug.Log("loader: decoded %s as %s", source, format)
	return root, nil
}

func open(ctx context.Context, source string, opts Options) (io.ReadCloser, error) {
	switch {
	case source == StdinSource:
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	case isURL(source):
		return fetch(ctx, source, opts.HTTPClient)
	default:
		return os.Open(source)
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func fetch(ctx context.Context, url string, client *http.Client) (io.ReadCloser, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	return resp.Body, nil
}

// Decode reads a single payload document from r.
func Decode(r io.Reader, format Format) (*model.RawNode, error) {
	defer metrics.Timer(metrics.PayloadDecode)()

	data, err := io.ReadAll(io.LimitReader(r, MaxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if len(data) > MaxPayloadBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", MaxPayloadBytes)
	}
	data = bytes.TrimSpace(stripBOM(data))
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var root *model.RawNode
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &root)
	default:
		err = json.Unmarshal(data, &root)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	if root == nil {
		return nil, ErrEmptyPayload
	}
	return root, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
