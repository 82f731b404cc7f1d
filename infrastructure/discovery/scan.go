package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
)

// dataFileExtensions lists the file types `sources generate` recognizes;
// anything else under dataDir is skipped.
var dataFileExtensions = map[string]bool{".csv": true, ".parquet": true}

// ScanOptions controls a single `sources generate` invocation (§6 CLI
// surface).
type ScanOptions struct {
	Owner    string
	PII      bool
	Security string
	Prune    bool
}

// ScanDataDir walks dataDir for CSV/Parquet files and fuses the discovered
// entries into sourcesPath's sources.yaml, deriving a stable name per file
// (directory-prefixed when the file sits in a subdirectory, so two
// identically-named files in different folders never collide). Existing
// entries are left untouched unless opts.Prune removes ones whose backing
// file no longer exists. Returns the list of newly added source names.
func ScanDataDir(dataDir, sourcesPath string, opts ScanOptions) ([]string, error) {
	existing, err := config.LoadSourcesConfig(sourcesPath)
	if err != nil {
		existing = config.SourcesYAML{}
	}

	byName := make(map[string]config.SourceYAML, len(existing.Sources))
	for _, s := range existing.Sources {
		byName[s.Name] = s
	}

	discovered := make(map[string]string) // name -> relative path
	err = filepath.Walk(dataDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		if !dataFileExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		discovered[deriveSourceName(rel)] = filepath.ToSlash(rel)
		return nil
	})
	if err != nil {
		return nil, verrors.IO("failed to scan data directory "+dataDir, err)
	}

	var added []string
	for name, relPath := range discovered {
		if _, ok := byName[name]; ok {
			continue
		}
		entry := config.SourceYAML{
			Name:  name,
			Path:  relPath,
			Owner: opts.Owner,
			Governance: config.SourceGovernanceYAML{
				PII:      opts.PII,
				Security: opts.Security,
			},
		}
		byName[name] = entry
		added = append(added, name)
	}

	if opts.Prune {
		for name, s := range byName {
			if _, stillPresent := discovered[name]; !stillPresent {
				if _, err := os.Stat(filepath.Join(dataDir, filepath.FromSlash(s.Path))); os.IsNotExist(err) {
					delete(byName, name)
				}
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := config.SourcesYAML{Sources: make([]config.SourceYAML, 0, len(names))}
	for _, name := range names {
		merged.Sources = append(merged.Sources, byName[name])
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, verrors.Yaml("failed to marshal sources.yaml", err)
	}
	if err := fs.WriteAtomic(sourcesPath, data, 0o644); err != nil {
		return nil, err
	}

	sort.Strings(added)
	return added, nil
}

// deriveSourceName turns a data-dir-relative path into a stable source
// name: the file stem, prefixed with its parent directory (joined by
// underscore) when nested, so "orders.csv" and "eu/orders.csv" don't
// collide.
func deriveSourceName(relPath string) string {
	dir, file := filepath.Split(relPath)
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	if dir == "" {
		return stem
	}
	return strings.ReplaceAll(dir, "/", "_") + "_" + stem
}
