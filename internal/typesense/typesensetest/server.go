// Package typesensetest provides an in-memory Typesense server for tests.
package typesensetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// Call is one request the server received
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]interface{}
}

// Server is a fake Typesense node. It keeps collections and documents in
// memory and records every call.
type Server struct {
	*httptest.Server

	APIKey string

	// SearchResponse is returned verbatim by the search endpoint
	SearchResponse string

	mu          sync.Mutex
	failures    map[string]int
	calls       []Call
	collections map[string]map[string]map[string]interface{}
}

// NewServer starts a fake server that accepts apiKey
func NewServer(apiKey string) *Server {
	s := &Server{
		APIKey:         apiKey,
		SearchResponse: `{"found":0,"hits":[],"page":1}`,
		failures:       map[string]int{},
		collections:    map[string]map[string]map[string]interface{}{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Fail makes the named operation respond with status. Operations are
// health, list_collections, create_collection, upsert, delete and search.
func (s *Server) Fail(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = status
}

// AddCollection registers a collection as if it had been created earlier
func (s *Server) AddCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = map[string]map[string]interface{}{}
	}
}

// Document returns a stored document
func (s *Server) Document(collection, id string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	return doc, ok
}

// HasCollection reports whether a collection exists
func (s *Server) HasCollection(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok
}

// Calls returns a copy of the recorded calls
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many calls matched method and path
func (s *Server) Count(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	call := Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	// /health is served without a key, like a real node
	if r.URL.Path != "/health" && r.Header.Get("X-TYPESENSE-API-KEY") != s.APIKey {
		writeError(w, http.StatusUnauthorized, "Forbidden - a valid `x-typesense-api-key` header must be sent.")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		s.respond(w, "health", map[string]bool{"ok": true})
	case r.URL.Path == "/collections" && r.Method == http.MethodGet:
		s.listCollections(w)
	case r.URL.Path == "/collections" && r.Method == http.MethodPost:
		s.createCollection(w, call.Body)
	case len(parts) == 3 && parts[0] == "collections" && parts[2] == "documents" && r.Method == http.MethodPost:
		s.upsert(w, parts[1], call.Body)
	case len(parts) == 4 && parts[3] == "search" && r.Method == http.MethodGet:
		s.search(w, parts[1])
	case len(parts) == 4 && parts[0] == "collections" && r.Method == http.MethodDelete:
		s.deleteDocument(w, parts[1], parts[3])
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) failed(w http.ResponseWriter, op string) bool {
	s.mu.Lock()
	status, ok := s.failures[op]
	s.mu.Unlock()
	if ok {
		writeError(w, status, op+" failed")
	}
	return ok
}

func (s *Server) respond(w http.ResponseWriter, op string, v interface{}) {
	if s.failed(w, op) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) listCollections(w http.ResponseWriter) {
	s.mu.Lock()
	out := make([]map[string]interface{}, 0, len(s.collections))
	for name, docs := range s.collections {
		out = append(out, map[string]interface{}{"name": name, "num_documents": len(docs)})
	}
	s.mu.Unlock()
	s.respond(w, "list_collections", out)
}

func (s *Server) createCollection(w http.ResponseWriter, body map[string]interface{}) {
	if s.failed(w, "create_collection") {
		return
	}
	name, _ := body["name"].(string)
	s.mu.Lock()
	_, exists := s.collections[name]
	if !exists {
		s.collections[name] = map[string]map[string]interface{}{}
	}
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, fmt.Sprintf("A collection with name `%s` already exists.", name))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) upsert(w http.ResponseWriter, collection string, doc map[string]interface{}) {
	if s.failed(w, "upsert") {
		return
	}
	id, ok := doc["id"].(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "Document's `id` field should be a string.")
		return
	}
	s.mu.Lock()
	docs, ok := s.collections[collection]
	if ok {
		docs[id] = doc
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) deleteDocument(w http.ResponseWriter, collection, id string) {
	if s.failed(w, "delete") {
		return
	}
	s.mu.Lock()
	doc, ok := s.collections[collection][id]
	if ok {
		delete(s.collections[collection], id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Could not find a document with id: "+id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) search(w http.ResponseWriter, collection string) {
	if s.failed(w, "search") {
		return
	}
	if !s.HasCollection(collection) {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(s.SearchResponse))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
