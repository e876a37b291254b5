package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

/*
Namespace is one logical partition of the in-memory store
*/
type Namespace struct {
	Name    string
	Records map[string]Record
	// insertion order, used for stable pagination
	order []string
	mu    sync.RWMutex
}

/*
Memory is an in-memory vector store holding several namespaces.

It implements Source and backs the fixture mode and the tests.
*/
type Memory struct {
	namespaces map[string]*Namespace
	mu         sync.RWMutex
}

/*
NewMemory creates an empty in-memory store
*/
func NewMemory() *Memory {
	return &Memory{
		namespaces: make(map[string]*Namespace),
	}
}

/*
CreateNamespace creates a new namespace with the given name, or returns the existing one
*/
func (m *Memory) CreateNamespace(name string) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, exists := m.namespaces[name]; exists {
		return ns, nil
	}

	ns := &Namespace{
		Name:    name,
		Records: make(map[string]Record),
	}
	m.namespaces[name] = ns
	return ns, nil
}

/*
GetNamespace returns a namespace by name
*/
func (m *Memory) GetNamespace(name string) (*Namespace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, exists := m.namespaces[name]
	if !exists {
		return nil, ErrNamespaceNotFound
	}
	return ns, nil
}

/*
DeleteNamespace removes a namespace by name
*/
func (m *Memory) DeleteNamespace(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.namespaces[name]; !exists {
		return ErrNamespaceNotFound
	}
	delete(m.namespaces, name)
	return nil
}

/*
ListNamespaces returns the sorted names of all namespaces
*/
func (m *Memory) ListNamespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/*
Add stores records in a namespace, creating the namespace when needed
*/
func (m *Memory) Add(namespace string, records ...Record) error {
	ns, err := m.CreateNamespace(namespace)
	if err != nil {
		return err
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	for _, rec := range records {
		if _, exists := ns.Records[rec.ID]; exists {
			return fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
		}
		ns.Records[rec.ID] = rec
		ns.order = append(ns.order, rec.ID)
	}
	return nil
}

/*
Count returns the number of records in a namespace
*/
func (m *Memory) Count(namespace string) int {
	ns, err := m.GetNamespace(namespace)
	if err != nil {
		return 0
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.order)
}

/*
ListPage returns one page of identifiers in insertion order.

The cursor is the decimal offset of the first identifier of the page. A missing namespace
lists as empty, matching the hosted store.
*/
func (m *Memory) ListPage(ctx context.Context, namespace, cursor string, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	ns, err := m.GetNamespace(namespace)
	if err != nil {
		return Page{}, nil
	}

	start := 0
	if cursor != "" {
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return Page{}, ErrInvalidCursor
		}
	}
	if limit <= 0 {
		limit = 100
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	if start >= len(ns.order) {
		return Page{}, nil
	}
	end := min(start+limit, len(ns.order))

	page := Page{IDs: append([]string(nil), ns.order[start:end]...)}
	if end < len(ns.order) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

/*
Fetch returns the stored records for ids, in the order of ids
*/
func (m *Memory) Fetch(ctx context.Context, namespace string, ids []string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ns, err := m.GetNamespace(namespace)
	if err != nil {
		return []Record{}, nil
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := ns.Records[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}
