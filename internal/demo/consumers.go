// Package demo holds the sample tracked types and scenarios driven by the
// lifetrack command.
package demo

import (
	"errors"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/danpasecinic/lifetrack"
)

var ErrCacheFull = errors.New("cache is full")

type DatabaseConnection struct {
	lifetrack.Handle
	URL     string
	conn    string
	queries int
}

func (d *DatabaseConnection) Execute(query string) (string, error) {
	if err := d.EnsureActive(); err != nil {
		return "", err
	}
	d.queries++
	return fmt.Sprintf("executed %q on %s", query, d.URL), nil
}

func (d *DatabaseConnection) Queries() int {
	return d.queries
}

type CacheManager struct {
	lifetrack.Handle
	Size    int
	entries *gocache.Cache
}

func (c *CacheManager) Get(key string) (any, bool) {
	if c.entries == nil {
		return nil, false
	}
	return c.entries.Get(key)
}

func (c *CacheManager) Set(key string, value any) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if _, exists := c.entries.Get(key); !exists && c.entries.ItemCount() >= c.Size {
		return ErrCacheFull
	}
	c.entries.SetDefault(key, value)
	return nil
}

func (c *CacheManager) Len() int {
	return c.entries.ItemCount()
}

type ModelLoader struct {
	lifetrack.Handle
	Model  string
	loaded string
}

func (m *ModelLoader) Loaded() string {
	return m.loaded
}

// Classes binds the demo types to one registry.
type Classes struct {
	Databases *lifetrack.Class[DatabaseConnection]
	Caches    *lifetrack.Class[CacheManager]
	Models    *lifetrack.Class[ModelLoader]
}

func NewClasses(r *lifetrack.Registry) (*Classes, error) {
	dbs, err := lifetrack.Track[DatabaseConnection](r, lifetrack.WithClassName("DatabaseConnection"))
	if err != nil {
		return nil, err
	}
	caches, err := lifetrack.Track[CacheManager](r, lifetrack.WithClassName("CacheManager"))
	if err != nil {
		return nil, err
	}
	models, err := lifetrack.Track[ModelLoader](r, lifetrack.WithClassName("ModelLoader"))
	if err != nil {
		return nil, err
	}
	return &Classes{Databases: dbs, Caches: caches, Models: models}, nil
}

func (c *Classes) OpenDatabase(url string) (*DatabaseConnection, error) {
	if url == "" {
		return nil, errors.New("database url is required")
	}
	return c.Databases.New(func(d *DatabaseConnection, h *lifetrack.Handle) error {
		d.URL = url
		d.conn = "connection to " + url
		return h.OnClose(func() error {
			d.conn = ""
			return nil
		})
	})
}

func (c *Classes) NewCache(size int) (*CacheManager, error) {
	if size <= 0 {
		size = 100
	}
	return c.Caches.New(func(m *CacheManager, h *lifetrack.Handle) error {
		m.Size = size
		m.entries = gocache.New(gocache.NoExpiration, 0)
		return h.OnClose(func() error {
			m.entries.Flush()
			return nil
		})
	})
}

func (c *Classes) LoadModel(name string) (*ModelLoader, error) {
	if name == "" {
		name = "default"
	}
	return c.Models.New(func(m *ModelLoader, _ *lifetrack.Handle) error {
		m.Model = name
		m.loaded = "model " + name
		return nil
	})
}
