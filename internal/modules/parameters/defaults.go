package parameters

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/eos/eos-sub010/pkg/embedded"
	"gopkg.in/yaml.v3"
)

// fileEntry is one parameter record of a data file
type fileEntry struct {
	Central float64 `yaml:"central"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

// Defaults returns a fresh set holding the built-in parameter tables.
// Files are read in name order and entries keep their file order.
func Defaults() (*Parameters, error) {
	return Load(embedded.Files, "parameters")
}

// Load reads every *.yaml file of dir in fsys into a new set
func Load(fsys fs.FS, dir string) (*Parameters, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter directory %s: %w", dir, err)
	}

	p := New()
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter file %s: %w", e.Name(), err)
		}
		if err := p.declareFromYAML(content); err != nil {
			return nil, fmt.Errorf("failed to parse parameter file %s: %w", e.Name(), err)
		}
	}
	return p, nil
}

// declareFromYAML walks the mapping node so that declaration order follows the file
func (p *Parameters) declareFromYAML(content []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		var fe fileEntry
		if err := value.Decode(&fe); err != nil {
			return fmt.Errorf("parameter %s (line %d): %w", key.Value, key.Line, err)
		}
		if fe.Min > fe.Max {
			return fmt.Errorf("parameter %s (line %d): min %g exceeds max %g", key.Value, key.Line, fe.Min, fe.Max)
		}
		if p.Has(key.Value) {
			return fmt.Errorf("parameter %s (line %d): duplicate declaration", key.Value, key.Line)
		}
		p.Declare(key.Value, fe.Central, fe.Min, fe.Max)
	}
	return nil
}
