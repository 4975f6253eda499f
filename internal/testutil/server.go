// SPDX-License-Identifier: Apache-2.0

// Package testutil provides an artifact server and a small fake version
// chain shared by package tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

// Server is an httptest server serving registered blobs and counting every
// request it receives.
type Server struct {
	*httptest.Server

	requests atomic.Int64

	mu      sync.Mutex
	files   map[string][]byte
	failing map[string]int
	hits    map[string]int
	hook    func(path string)
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		files:   make(map[string][]byte),
		failing: make(map[string]int),
		hits:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	s.mu.Lock()
	s.hits[r.URL.Path]++
	status, failing := s.failing[r.URL.Path]
	data, ok := s.files[r.URL.Path]
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(r.URL.Path)
	}

	switch {
	case failing:
		http.Error(w, "injected failure", status)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}
}

// Put registers data under path and returns its absolute URL.
func (s *Server) Put(path string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return s.URL + path
}

// Fail makes every request for path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = status
}

// OnRequest registers fn to run for every request before it is answered.
func (s *Server) OnRequest(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Hits returns the number of requests for one path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// SHA1Hex returns the hex sha1 of data.
func SHA1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ZipBytes builds an in-memory zip archive with entries in name order.
func ZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
