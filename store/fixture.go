package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

/*
fixtureFile is the on-disk layout of a fixture: namespaces with their records in listing order
*/
type fixtureFile struct {
	Namespaces map[string][]Record `json:"namespaces"`
}

/*
SaveFixture writes every namespace of the store to a JSON file
*/
func SaveFixture(path string, m *Memory) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	out := fixtureFile{Namespaces: make(map[string][]Record)}
	for _, name := range m.ListNamespaces() {
		ns, err := m.GetNamespace(name)
		if err != nil {
			return err
		}

		ns.mu.RLock()
		records := make([]Record, 0, len(ns.order))
		for _, id := range ns.order {
			records = append(records, ns.Records[id])
		}
		ns.mu.RUnlock()

		out.Namespaces[name] = records
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

/*
LoadFixture loads a JSON fixture into a new in-memory store
*/
func LoadFixture(path string) (*Memory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var in fixtureFile
	if err := json.NewDecoder(file).Decode(&in); err != nil {
		return nil, err
	}

	m := NewMemory()
	for name, records := range in.Namespaces {
		if _, err := m.CreateNamespace(name); err != nil {
			return nil, err
		}
		if err := m.Add(name, records...); err != nil {
			return nil, err
		}
	}
	return m, nil
}
