package source

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/poiesic/vectorpipe/core"
	"gopkg.in/yaml.v3"
)

// KeyFields are checked in order for a record's key in loaded files.
// Records without any of them are keyed by their position.
var KeyFields = []string{"id", "_id", "key"}

// LoadFile reads a YAML (or JSON) file mapping source names to record lists
// and returns a registry of memory sources.
//
//	campaigns:
//	  - id: c1
//	    name: Summer launch
//	    description: ...
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load is LoadFile for an io.Reader.
func Load(r io.Reader) (*Registry, error) {
	var doc map[string][]map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	reg, _ := NewRegistry()
	for _, name := range names {
		records := make([]core.Record, len(doc[name]))
		for i, fields := range doc[name] {
			records[i] = core.Record{Key: recordKey(fields, i), Fields: fields}
		}
		src, err := NewMemorySource(name, records...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(src); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func recordKey(fields map[string]any, pos int) string {
	for _, f := range KeyFields {
		if v, ok := fields[f]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return strconv.Itoa(pos)
}
