package storerepofake

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/datum-mcp-bridge/store"
)

var _ store.Repo = (*FakeStore)(nil)

// FakeStore keeps the document in memory. Documents are deep-copied through
// JSON on the way in and out so callers never share maps with the store.
type FakeStore struct {
	raw   []byte
	lock  sync.Mutex
	Saves int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Load(ctx context.Context) (*store.Document, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.decode()
}

func (fs *FakeStore) Save(ctx context.Context, doc *store.Document) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.encode(doc)
}

func (fs *FakeStore) Update(ctx context.Context, mutate func(doc *store.Document) error) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	doc, err := fs.decode()
	if err != nil {
		return err
	}
	if err := mutate(doc); err != nil {
		return err
	}
	return fs.encode(doc)
}

func (fs *FakeStore) decode() (*store.Document, error) {
	doc := store.NewDocument()
	if fs.raw == nil {
		return doc, nil
	}
	if err := json.Unmarshal(fs.raw, doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return doc, nil
}

func (fs *FakeStore) encode(doc *store.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	fs.raw = raw
	fs.Saves++
	return nil
}
