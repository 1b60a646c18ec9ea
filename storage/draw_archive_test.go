package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LegalDragon/pickleball-community/models"
)

type memoryStore struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memoryStore) Put(_ context.Context, key, contentType string, r io.Reader) (*PutResult, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = b
	m.types[key] = contentType
	return &PutResult{Key: key, Location: m.PublicURL(key)}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) PublicURL(key string) string {
	return joinPublicURL("https://cdn.example.com/archive", key)
}

func TestDrawArchive_Archive(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
	archive := NewDrawArchive(store)

	rec := &models.DrawRecord{DivisionID: 9, PhaseID: 3, SessionID: "abc", ConfirmedBy: 4, Seed: "ff", ConfirmedAt: time.Unix(100, 0).UTC()}
	pairs := []models.DrawnUnit{{UnitID: 11, UnitName: "Dinks", SlotNumber: 1}}

	location, err := archive.Archive(context.Background(), rec, pairs)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/archive/draws/division-9/abc.json", location)

	key := DrawArchiveKey(9, "abc")
	assert.Equal(t, "application/json", store.types[key])

	var doc archivedDraw
	require.NoError(t, json.Unmarshal(store.objects[key], &doc))
	assert.Equal(t, pairs, doc.Assignments)
	assert.Equal(t, "ff", doc.Seed)
}

func TestJoinPublicURL(t *testing.T) {
	assert.Equal(t, "https://x.dev/a/b.json", joinPublicURL("https://x.dev", "/a/b.json"))
	assert.Equal(t, "https://x.dev/base/a.json", joinPublicURL("https://x.dev/base/", "a.json"))
	assert.Empty(t, joinPublicURL("", "a.json"))
}
