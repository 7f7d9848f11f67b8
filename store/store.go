// Package store persists the session document: every session record and CLI
// token in one JSON file. The whole document is the unit of read and write.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Document is the persisted unit. Its JSON shape is part of the deployment
// contract; there is no schema version.
type Document struct {
	Sessions  map[string]SessionRecord  `json:"sessions"`
	CliTokens map[string]CliTokenRecord `json:"cliTokens"`
}

// SessionRecord is the stored OAuth token set for one session id.
// A nil AccessToken means the session is not currently authenticated.
type SessionRecord struct {
	AccessToken  *string `json:"accessToken,omitempty"`
	RefreshToken *string `json:"refreshToken"`
	ExpiresAt    *int64  `json:"expiresAt"` // epoch seconds, nil = never/unknown
	IDToken      *string `json:"idToken"`
	UserID       *string `json:"userId"`
	UpdatedAt    int64   `json:"updatedAt"` // epoch milliseconds
}

// CliTokenRecord maps a short-lived bearer token to a session id.
// The session id is not checked referentially.
type CliTokenRecord struct {
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"` // epoch milliseconds
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Sessions:  make(map[string]SessionRecord),
		CliTokens: make(map[string]CliTokenRecord),
	}
}

// Normalize replaces nil maps with empty ones.
func (d *Document) Normalize() {
	if d.Sessions == nil {
		d.Sessions = make(map[string]SessionRecord)
	}
	if d.CliTokens == nil {
		d.CliTokens = make(map[string]CliTokenRecord)
	}
}

// Repo is the persistence contract used by the session manager.
type Repo interface {
	// Load returns the current document. A missing store yields an empty document.
	Load(ctx context.Context) (*Document, error)

	// Save replaces the stored document. Saves are totally ordered.
	Save(ctx context.Context, doc *Document) error

	// Update runs load, mutate and save as one step in the save order.
	// A mutate error aborts the update without saving.
	Update(ctx context.Context, mutate func(doc *Document) error) error
}

var _ Repo = (*FileStore)(nil)

// FileStore keeps the document in a single JSON file.
type FileStore struct {
	path string

	// lane admits one writer at a time. Goroutines blocked on a channel
	// send are woken in arrival order, which makes the lane FIFO.
	lane chan struct{}

	nowFunc func() time.Time
	observe func(result string)
}

type FileStoreOption func(*FileStore)

// WithNowFunc overrides the clock used to name quarantined files.
func WithNowFunc(now func() time.Time) FileStoreOption {
	return func(f *FileStore) {
		f.nowFunc = now
	}
}

// Write results reported to the observer.
const (
	WriteSuccess = "success"
	WriteFailure = "failure"
)

// WithObserver is called after every write attempt.
func WithObserver(observe func(result string)) FileStoreOption {
	return func(f *FileStore) {
		f.observe = observe
	}
}

func NewFileStore(path string, options ...FileStoreOption) *FileStore {
	f := &FileStore{
		path:    path,
		lane:    make(chan struct{}, 1),
		nowFunc: time.Now,
		observe: func(string) {},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(ctx context.Context) (*Document, error) {
	return f.load()
}

func (f *FileStore) Save(ctx context.Context, doc *Document) error {
	if err := f.acquire(ctx); err != nil {
		return err
	}
	defer f.release()
	return f.write(doc)
}

func (f *FileStore) Update(ctx context.Context, mutate func(doc *Document) error) error {
	if err := f.acquire(ctx); err != nil {
		return err
	}
	defer f.release()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if err := mutate(doc); err != nil {
		return err
	}
	return f.write(doc)
}

func (f *FileStore) acquire(ctx context.Context) error {
	select {
	case f.lane <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "store: waiting for write lane")
	}
}

func (f *FileStore) release() {
	<-f.lane
}

// load never fails on bad content: an absent file is a first run, and an
// unparseable one is moved aside so the next save cannot destroy it.
func (f *FileStore) load() (*Document, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", f.path).Msg("store: unreadable, starting empty")
		}
		return NewDocument(), nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		f.quarantine(err)
		return NewDocument(), nil
	}
	doc.Normalize()
	return &doc, nil
}

func (f *FileStore) quarantine(parseErr error) {
	target := fmt.Sprintf("%s.corrupt-%d", f.path, f.nowFunc().UnixMilli())
	if err := os.Rename(f.path, target); err != nil {
		log.Error().Err(err).AnErr("parse_error", parseErr).Str("path", f.path).
			Msg("store: corrupt and could not be moved aside, starting empty")
		return
	}
	log.Error().Err(parseErr).Str("path", f.path).Str("moved_to", target).
		Msg("store: corrupt, moved aside and starting empty")
}

func (f *FileStore) write(doc *Document) error {
	err := f.writeFile(doc)
	if err != nil {
		f.observe(WriteFailure)
		return err
	}
	f.observe(WriteSuccess)
	return nil
}

func (f *FileStore) writeFile(doc *Document) error {
	if doc == nil {
		doc = NewDocument()
	}
	doc.Normalize()

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "store: marshal")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, "store: create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "store: create temporary file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "store: write temporary file")
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "store: chmod temporary file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "store: close temporary file")
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "store: rename into place")
	}
	return nil
}
