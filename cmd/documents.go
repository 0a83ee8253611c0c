package main

import (
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/company-directory/internal/model"
)

// readDocuments loads company documents from files and directories.
// Directories are walked for .json, .yaml and .yml files in name order.
// A file may hold one document or an array of documents.
func readDocuments(paths []string) ([]*model.Record, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isDocumentFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "walk %s", p)
		}
	}
	sort.Strings(files)

	var docs []*model.Record
	for _, f := range files {
		recs, err := readDocumentFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, recs...)
	}
	return docs, nil
}

// readDocument loads exactly one document from path.
func readDocument(path string) (*model.Record, error) {
	recs, err := readDocumentFile(path)
	if err != nil {
		return nil, err
	}
	if len(recs) != 1 {
		return nil, eris.Errorf("%s: expected one document, found %d", path, len(recs))
	}
	return recs[0], nil
}

func readDocumentFile(path string) ([]*model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var recs []*model.Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
		return recs, nil
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	return []*model.Record{&rec}, nil
}

// yamlToJSON re-encodes a YAML document as JSON so the lenient record
// decoder handles both formats the same way.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isDocumentFile(path string) bool {
	return isYAML(path) || strings.ToLower(filepath.Ext(path)) == ".json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
