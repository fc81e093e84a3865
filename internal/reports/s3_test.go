package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// fakeS3 is an http.RoundTripper speaking just enough path-style S3 for the
// adapter: PutObject, GetObject, DeleteObject, and single-page ListObjectsV2.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return xmlResponse(http.StatusOK, b.String()), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if decoded, ok := decodeAWSChunked(body); ok {
			body = decoded
		}
		f.objects[key] = body
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     http.Header{"ETag": {`"fake"`}},
		}, nil
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			return xmlResponse(http.StatusNotFound,
				`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`), nil
		}
		return &http.Response{
			StatusCode:    http.StatusOK,
			Body:          io.NopCloser(bytes.NewReader(data)),
			ContentLength: int64(len(data)),
			Header:        http.Header{"Content-Type": {"text/plain"}},
		}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	default:
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        http.Header{"Content-Type": {"application/xml"}},
	}
}

// decodeAWSChunked unwraps aws-chunked request bodies ("<hexsize>\r\n<chunk>").
// Returns false when the body is not chunked.
func decodeAWSChunked(body []byte) ([]byte, bool) {
	var out []byte
	rest := body
	for {
		idx := bytes.Index(rest, []byte("\r\n"))
		if idx <= 0 {
			return nil, false
		}
		sizeField := string(rest[:idx])
		if semi := strings.IndexByte(sizeField, ';'); semi >= 0 {
			sizeField = sizeField[:semi]
		}
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil || size < 0 {
			return nil, false
		}
		rest = rest[idx+2:]
		if size == 0 {
			return out, true
		}
		if int64(len(rest)) < size {
			return nil, false
		}
		out = append(out, rest[:size]...)
		rest = rest[size:]
		rest = bytes.TrimPrefix(rest, []byte("\r\n"))
	}
}

func newFakeS3Store(t *testing.T) (*S3ObjectStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	store, err := NewS3ObjectStore(context.Background(), S3Config{
		Bucket:     "reports",
		Region:     "us-east-1",
		Endpoint:   "https://s3.test.invalid",
		AccessKey:  "test",
		SecretKey:  "test",
		Prefix:     "rpt",
		HTTPClient: &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return store, fake
}

func TestS3ObjectStoreRoundTrip(t *testing.T) {
	store, fake := newFakeS3Store(t)
	ctx := context.Background()

	if err := store.Put(ctx, "wrk_rpt_1.txt", []byte("report body")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fake.objects["rpt/wrk_rpt_1.txt"]; !ok {
		t.Fatalf("object not stored under the prefix: %v", keysOf(fake.objects))
	}

	data, err := store.Get(ctx, "wrk_rpt_1.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "report body" {
		t.Fatalf("unexpected body %q", data)
	}

	names, err := store.List(ctx, "wrk_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "wrk_rpt_1.txt" {
		t.Fatalf("unexpected listing %v", names)
	}

	if err := store.Delete(ctx, "wrk_rpt_1.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Fatalf("object survived delete: %v", keysOf(fake.objects))
	}
}

func TestS3ObjectStoreGetMissing(t *testing.T) {
	store, _ := newFakeS3Store(t)
	if _, err := store.Get(context.Background(), "missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestS3ObjectStoreRequiresBucket(t *testing.T) {
	if _, err := NewS3ObjectStore(context.Background(), S3Config{}); err == nil {
		t.Fatalf("missing bucket should fail")
	}
}

func keysOf(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
