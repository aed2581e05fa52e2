package cdf

import (
	"container/list"
	"errors"
	"sync"

	"github.com/batchatco/go-native-cdf/internal"
)

var ErrPoolClosed = errors.New("pool closed")

// Pool shares open files between users, keyed by path. Files nobody holds
// stay open until the bytes held by the pool exceed its budget, then the
// least recently released ones are closed. Files in use are never closed,
// so the budget can be exceeded while they are held.
type Pool struct {
	mu        sync.Mutex
	budget    int64
	onEvict   func(path string)
	opts      []Option
	entries   map[string]*poolEntry
	idle      *list.List // front is most recently released
	held      int64
	evictions int
	closed    bool
}

type poolEntry struct {
	path string
	file *File
	size int64
	refs int
	elem *list.Element
}

// PoolStats is a snapshot of a pool.
type PoolStats struct {
	Files     int
	InUse     int
	Bytes     int64
	Evictions int
}

// NewPool returns a pool holding about maxMappedMemory bytes of idle files.
// onEvict, if not nil, is called with the path of each file the pool closes
// to stay within budget. Files are opened with opts.
func NewPool(maxMappedMemory int64, onEvict func(path string), opts ...Option) *Pool {
	return &Pool{
		budget:  maxMappedMemory,
		onEvict: onEvict,
		opts:    opts,
		entries: map[string]*poolEntry{},
		idle:    list.New(),
	}
}

// Handle is a reference to a pooled file. Release it when done; the file
// must not be used after that.
type Handle struct {
	*File
	pool  *Pool
	entry *poolEntry
	once  sync.Once
}

// Acquire returns a handle to the file at path, opening it if the pool does
// not hold it already. Files are opened without holding the pool lock.
func (p *Pool) Acquire(path string) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	e, has := p.entries[path]
	if !has {
		p.mu.Unlock()
		f, err := Open(path, p.opts...)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = f.Close()
			return nil, ErrPoolClosed
		}
		// Another caller may have opened it meanwhile.
		if e, has = p.entries[path]; has {
			_ = f.Close()
		} else {
			e = &poolEntry{path: path, file: f, size: f.Size()}
			p.entries[path] = e
			p.held += e.size
		}
	}
	if e.elem != nil {
		p.idle.Remove(e.elem)
		e.elem = nil
	}
	e.refs++
	evicted := p.evict()
	p.mu.Unlock()
	p.notify(evicted)
	return &Handle{File: e.file, pool: p, entry: e}, nil
}

// Release returns the handle to its pool. Releasing twice does nothing.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.pool.release(h.entry)
	})
}

func (p *Pool) release(e *poolEntry) {
	p.mu.Lock()
	e.refs--
	if e.refs > 0 {
		p.mu.Unlock()
		return
	}
	if p.closed {
		p.drop(e)
		p.mu.Unlock()
		return
	}
	e.elem = p.idle.PushFront(e)
	evicted := p.evict()
	p.mu.Unlock()
	p.notify(evicted)
}

// evict closes idle files, least recently released first, until the pool
// is within budget. It returns the paths closed.
func (p *Pool) evict() []string {
	var paths []string
	for p.held > p.budget {
		back := p.idle.Back()
		if back == nil {
			break
		}
		e := back.Value.(*poolEntry)
		p.idle.Remove(back)
		e.elem = nil
		p.drop(e)
		p.evictions++
		paths = append(paths, e.path)
	}
	return paths
}

// drop closes a file nobody holds and forgets it.
func (p *Pool) drop(e *poolEntry) {
	delete(p.entries, e.path)
	p.held -= e.size
	if err := e.file.Close(); err != nil {
		logger.With(internal.Fields{"path": e.path, "error": err}).Error("close failed")
	}
	logger.With(internal.Fields{"path": e.path, "size": e.size}).Info("closed pooled file")
}

func (p *Pool) notify(paths []string) {
	if p.onEvict == nil {
		return
	}
	for _, path := range paths {
		p.onEvict(path)
	}
}

// Stats returns the current state of the pool.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PoolStats{Files: len(p.entries), Bytes: p.held, Evictions: p.evictions}
	for _, e := range p.entries {
		if e.refs > 0 {
			s.InUse++
		}
	}
	return s
}

// Close closes the idle files and stops the pool from opening more. Files
// still held are closed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for p.idle.Len() > 0 {
		e := p.idle.Remove(p.idle.Front()).(*poolEntry)
		e.elem = nil
		p.drop(e)
	}
}
