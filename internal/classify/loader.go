package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRules reads a YAML rules file and merges it over the built-in rule set.
// A missing file yields the defaults unchanged; deployments only write the
// file when they need extra verbs.
func LoadRules(path string) (Rules, error) {
	base := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var overrides Rules
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	return base.Merge(overrides), nil
}
