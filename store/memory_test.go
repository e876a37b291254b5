package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNamespaces(t *testing.T) {
	m := NewMemory()

	// Test namespace creation
	ns1, err := m.CreateNamespace("test1")
	if err != nil {
		t.Fatalf("Failed to create namespace: %v", err)
	}
	if ns1 == nil {
		t.Fatal("Created namespace is nil")
	}

	// Creating again returns the same namespace
	again, err := m.CreateNamespace("test1")
	require.NoError(t, err)
	if again != ns1 {
		t.Fatal("Expected the existing namespace to be returned")
	}

	// Test namespace listing
	if names := m.ListNamespaces(); len(names) != 1 || names[0] != "test1" {
		t.Fatalf("Expected [test1], got %v", names)
	}

	// Test namespace deletion
	require.NoError(t, m.DeleteNamespace("test1"))
	_, err = m.GetNamespace("test1")
	assert.ErrorIs(t, err, ErrNamespaceNotFound)
	assert.ErrorIs(t, m.DeleteNamespace("test1"), ErrNamespaceNotFound)
}

func TestMemoryListPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, m.Add("docs", Record{ID: fmt.Sprintf("id-%02d", i), Values: []float64{float64(i)}}))
	}

	var all []string
	cursor := ""
	pages := 0
	for {
		page, err := m.ListPage(ctx, "docs", cursor, 10)
		require.NoError(t, err)
		pages++
		all = append(all, page.IDs...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	assert.Equal(t, 3, pages)
	require.Len(t, all, 25)
	assert.Equal(t, "id-00", all[0])
	assert.Equal(t, "id-24", all[24])

	// Missing namespaces list as empty
	page, err := m.ListPage(ctx, "missing", "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.IDs)
	assert.Empty(t, page.Next)

	_, err = m.ListPage(ctx, "docs", "not-a-cursor", 10)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestMemoryFetch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Add("docs",
		Record{ID: "a", Values: []float64{1, 2}, Metadata: map[string]any{"k": "v"}},
		Record{ID: "b"},
	))
	assert.ErrorIs(t, m.Add("docs", Record{ID: "a"}), ErrRecordExists)
	assert.Equal(t, 2, m.Count("docs"))

	records, err := m.Fetch(ctx, "docs", []string{"b", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.False(t, records[0].HasValues())
	assert.Equal(t, "a", records[1].ID)
	assert.True(t, records[1].HasValues())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Fetch(cancelled, "docs", []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentMemoryOperations(t *testing.T) {
	m := NewMemory()
	done := make(chan bool)

	for i := 0; i < 4; i++ {
		go func(id int) {
			name := fmt.Sprintf("ns-%d", id)
			for j := 0; j < 50; j++ {
				if err := m.Add(name, Record{ID: fmt.Sprintf("%d", j)}); err != nil {
					t.Errorf("Failed to add record to %s: %v", name, err)
				}
				if _, err := m.Fetch(context.Background(), name, []string{"0"}); err != nil {
					t.Errorf("Failed to fetch from %s: %v", name, err)
				}
			}
			done <- true
		}(i)
	}

	for i := 0; i < 4; i++ {
		<-done
	}

	assert.Len(t, m.ListNamespaces(), 4)
	for _, name := range m.ListNamespaces() {
		assert.Equal(t, 50, m.Count(name))
	}
}
