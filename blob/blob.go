// Package blob stores uploaded images (request photos, proof images, profile
// photos) and hands back the URL they are served from.
package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists one object and returns its public URL. Delete takes a URL
// returned by Put; unknown URLs are not an error.
type Store interface {
	Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

var ErrBadDataURL = errors.New("blob: malformed data url")

// NewKey builds a unique object key under prefix, dated by day.
func NewKey(prefix, contentType string) string {
	d := time.Now().UTC()
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// DecodeDataURL parses "data:<mime>;base64,<payload>".
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	contentType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" || contentType == "" {
		return nil, "", ErrBadDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, "", ErrBadDataURL
	}
	return data, contentType, nil
}

// Memory keeps objects in process and serves them under BaseURL.
type Memory struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

type Object struct {
	Data        []byte
	ContentType string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (m *Memory) Put(_ context.Context, prefix string, data []byte, contentType string) (string, error) {
	k := NewKey(prefix, contentType)
	m.mu.Lock()
	m.objects[k] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	m.mu.Unlock()
	return m.BaseURL + "/" + k, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	k, ok := strings.CutPrefix(url, m.BaseURL+"/")
	if !ok {
		return nil
	}
	m.mu.Lock()
	delete(m.objects, k)
	m.mu.Unlock()
	return nil
}

// Get returns a stored object by key.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
