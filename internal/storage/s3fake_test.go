package storage

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeObject is what the fake S3 server keeps per key
type fakeObject struct {
	size        int64
	contentType string
	meta        map[string]string
	modified    time.Time
}

// fakeS3 answers the path-style S3 requests MinioBackend and S3Backend issue
// against a single bucket.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]fakeObject
	requests []string
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	t.Helper()
	fs := &fakeS3{bucket: bucket, objects: map[string]fakeObject{}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeS3) seed(key string, obj fakeObject) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.objects[key] = obj
}

func (fs *fakeS3) object(key string) (fakeObject, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	obj, ok := fs.objects[key]
	return obj, ok
}

func (fs *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	fs.requests = append(fs.requests, r.Method+" /"+bucket+"/"+key)

	if bucket != fs.bucket {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}

	if key == "" {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Query().Has("location"):
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
		case r.Method == http.MethodGet:
			fs.writeListing(w, r.URL.Query().Get("metadata") == "true")
		default:
			writeS3Error(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "unsupported bucket operation")
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		n, _ := io.Copy(io.Discard, r.Body)
		if decoded := r.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" {
			n, _ = strconv.ParseInt(decoded, 10, 64)
		}
		meta := map[string]string{}
		for name, values := range r.Header {
			if strings.HasPrefix(strings.ToLower(name), "x-amz-meta-") {
				meta[strings.ToLower(strings.TrimPrefix(strings.ToLower(name), "x-amz-meta-"))] = values[0]
			}
		}
		fs.objects[key] = fakeObject{
			size:        n,
			contentType: r.Header.Get("Content-Type"),
			meta:        meta,
			modified:    time.Now().UTC(),
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodHead:
		obj, ok := fs.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(obj.size, 10))
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		delete(fs.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeS3Error(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "unsupported object operation")
	}
}

func (fs *fakeS3) writeListing(w http.ResponseWriter, withMetadata bool) {
	keys := make([]string, 0, len(fs.objects))
	for k := range fs.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", fs.bucket, len(keys))
	for _, k := range keys {
		obj := fs.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key>", k)
		if !obj.modified.IsZero() {
			fmt.Fprintf(&b, "<LastModified>%s</LastModified>", obj.modified.UTC().Format("2006-01-02T15:04:05.000Z"))
		}
		if obj.size > 0 {
			fmt.Fprintf(&b, "<Size>%d</Size>", obj.size)
		}
		if withMetadata && (obj.contentType != "" || len(obj.meta) > 0) {
			b.WriteString("<UserMetadata>")
			if obj.contentType != "" {
				fmt.Fprintf(&b, "<content-type>%s</content-type>", obj.contentType)
			}
			for mk, mv := range obj.meta {
				fmt.Fprintf(&b, "<X-Amz-Meta-%s>%s</X-Amz-Meta-%s>", mk, mv, mk)
			}
			b.WriteString("</UserMetadata>")
		}
		b.WriteString("</Contents>")
	}
	b.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	io.WriteString(w, b.String())
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Resource>%s</Resource></Error>`,
		code, message, r.URL.Path)
}
