package policy

import (
	"io/fs"
	"path"
	"strings"
)

// ReadModules collects the Rego sources under fsys, keyed by slash path.
// Subdirectories are walked; OPA unit test files (*_test.rego) are skipped
// because they are not part of the decision.
func ReadModules(fsys fs.FS) (map[string]string, error) {
	modules := make(map[string]string)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".rego" || strings.HasSuffix(p, "_test.rego") {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		modules[p] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return modules, nil
}
