package storage

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeS3 is a minimal path-style S3 endpoint covering the calls S3Backend
// makes.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte // "bucket/key"
	uploads  map[string]map[int][]byte
	nextID   int
	parts    int
	denyPuts bool
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: map[string][]byte{}, uploads: map[string]map[int][]byte{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	return data, ok
}

func (f *fakeS3) partCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parts
}

func (f *fakeS3) denyWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyPuts = true
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	q := r.URL.Query()
	body, _ := io.ReadAll(r.Body)

	if f.denyPuts && (r.Method == http.MethodPut || r.Method == http.MethodPost) {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", key)
		return
	}

	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := fmt.Sprintf("upload-%d", f.nextID)
		f.uploads[id] = map[int][]byte{}
		writeXML(w, fmt.Sprintf(
			"<InitiateMultipartUploadResult><Bucket>%s</Bucket><Key>%s</Key><UploadId>%s</UploadId></InitiateMultipartUploadResult>",
			bucket, key, id))

	case r.Method == http.MethodPut && q.Has("uploadId"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchUpload", key)
			return
		}
		n, _ := strconv.Atoi(q.Get("partNumber"))
		parts[n] = body
		f.parts++
		w.Header().Set("ETag", fmt.Sprintf("\"etag-%d\"", n))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && q.Has("uploadId"):
		id := q.Get("uploadId")
		parts, ok := f.uploads[id]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchUpload", key)
			return
		}
		var req struct {
			Parts []struct {
				PartNumber int `xml:"PartNumber"`
			} `xml:"Part"`
		}
		if err := xml.Unmarshal(body, &req); err != nil {
			writeS3Error(w, http.StatusBadRequest, "MalformedXML", key)
			return
		}
		numbers := make([]int, 0, len(req.Parts))
		for _, p := range req.Parts {
			numbers = append(numbers, p.PartNumber)
		}
		sort.Ints(numbers)
		var data []byte
		for _, n := range numbers {
			data = append(data, parts[n]...)
		}
		f.objects[bucket+"/"+key] = data
		delete(f.uploads, id)
		writeXML(w, fmt.Sprintf(
			"<CompleteMultipartUploadResult><Bucket>%s</Bucket><Key>%s</Key><ETag>\"done\"</ETag></CompleteMultipartUploadResult>",
			bucket, key))

	case r.Method == http.MethodDelete && q.Has("uploadId"):
		delete(f.uploads, q.Get("uploadId"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut:
		f.objects[bucket+"/"+key] = body
		w.Header().Set("ETag", "\"etag\"")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && key == "":
		prefix := q.Get("prefix")
		var keys []string
		for k := range f.objects {
			if b, objKey, _ := strings.Cut(k, "/"); b == bucket && strings.HasPrefix(objKey, prefix) {
				keys = append(keys, objKey)
			}
		}
		sort.Strings(keys)
		var sb strings.Builder
		fmt.Fprintf(&sb, "<ListBucketResult><Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>",
			bucket, prefix, len(keys))
		for _, k := range keys {
			fmt.Fprintf(&sb, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(f.objects[bucket+"/"+k]))
		}
		sb.WriteString("</ListBucketResult>")
		writeXML(w, sb.String())

	case r.Method == http.MethodGet:
		data, ok := f.objects[bucket+"/"+key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", key)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", "\"etag\"")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	case r.Method == http.MethodDelete:
		delete(f.objects, bucket+"/"+key)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented", key)
	}
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header+body)
}

func writeS3Error(w http.ResponseWriter, status int, code, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%s<Error><Code>%s</Code><Message>%s</Message><Key>%s</Key></Error>",
		xml.Header, code, code, key)
}
