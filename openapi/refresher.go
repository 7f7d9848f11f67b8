package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Refresh outcomes reported to the observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// RefresherConfig describes where documents come from and where they go.
type RefresherConfig struct {
	IndexPath    string
	Resources    []string // allow-list, empty for all
	MaxResources int      // zero or less for no cap
	Token        string   // fallback token when the caller has none
	SpecPath     string
	ProductsPath string
}

// Refresher rebuilds spec.json and products.json from the API server.
type Refresher struct {
	fetcher *Fetcher
	cfg     RefresherConfig
	observe func(outcome string)

	// one rebuild at a time
	lock sync.Mutex
}

type RefresherOption func(*Refresher)

func WithObserver(observe func(outcome string)) RefresherOption {
	return func(r *Refresher) {
		r.observe = observe
	}
}

func NewRefresher(fetcher *Fetcher, cfg RefresherConfig, options ...RefresherOption) *Refresher {
	r := &Refresher{
		fetcher: fetcher,
		cfg:     cfg,
		observe: func(string) {},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Available reports whether both output files exist.
func (r *Refresher) Available() bool {
	return fileExists(r.cfg.SpecPath) && fileExists(r.cfg.ProductsPath)
}

// Refresh fetches every selected resource, flattens and merges them, and
// replaces both output files. token overrides the configured token. With
// no token at all the refresh is skipped.
func (r *Refresher) Refresh(ctx context.Context, token string) (err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if token == "" {
		token = r.cfg.Token
	}
	if token == "" {
		log.Warn().Msg("no token available for OpenAPI refresh, skipping")
		r.observe(OutcomeSkipped)
		return nil
	}

	defer func() {
		if err != nil {
			r.observe(OutcomeFailure)
			return
		}
		r.observe(OutcomeSuccess)
	}()

	index, err := r.fetcher.FetchIndex(ctx, r.cfg.IndexPath, token)
	if err != nil {
		return err
	}

	selected := FilterResources(ExtractResources(index), r.cfg.Resources)
	if r.cfg.MaxResources > 0 && len(selected) > r.cfg.MaxResources {
		selected = selected[:r.cfg.MaxResources]
	}
	if len(selected) == 0 {
		return fmt.Errorf("no OpenAPI resources selected, check DATUM_OPENAPI_RESOURCES")
	}

	log.Info().Int("resources", len(selected)).Msg("fetching OpenAPI resources")
	combined := Document{Paths: map[string]map[string]Operation{}}
	for _, resource := range selected {
		raw, err := r.fetcher.FetchSpec(ctx, resource.ServerRelativeURL, token)
		if err != nil {
			return errors.Wrapf(err, "resource %s", resource.Path)
		}
		combined.Merge(ProcessSpec(raw))
	}

	if err := writeJSON(r.cfg.SpecPath, combined); err != nil {
		return err
	}
	products := combined.Products()
	if err := writeJSON(r.cfg.ProductsPath, products); err != nil {
		return err
	}

	log.Info().Int("paths", len(combined.Paths)).Int("products", len(products)).
		Str("spec", r.cfg.SpecPath).Msg("OpenAPI spec refreshed")
	return nil
}

// EnsureAvailable refreshes only when an output file is missing.
// Failures are logged and not returned.
func (r *Refresher) EnsureAvailable(ctx context.Context, token string) {
	if r.Available() {
		return
	}
	if err := r.Refresh(ctx, token); err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec refresh failed")
	}
}

// Start ensures the documents exist, then rebuilds them every interval
// until the returned stop function is called. A zero interval schedules nothing.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	r.EnsureAvailable(ctx, "")

	if interval <= 0 {
		return cancel
	}

	c := cron.New()
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		if err := r.Refresh(ctx, ""); err != nil {
			log.Warn().Err(err).Msg("scheduled OpenAPI spec refresh failed")
		}
	}))
	c.Start()
	log.Info().Dur("interval", interval).Msg("OpenAPI refresh scheduled")

	return func() {
		cancel()
		<-c.Stop().Done()
	}
}

// LoadProducts reads products.json. A missing or unreadable file yields none.
func LoadProducts(path string) []string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var products []string
	if err := json.Unmarshal(raw, &products); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable products file")
		return nil
	}
	return products
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "writeJSON json.Marshal")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "writeJSON os.MkdirAll")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "writeJSON os.CreateTemp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writeJSON write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writeJSON close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "writeJSON os.Rename")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
