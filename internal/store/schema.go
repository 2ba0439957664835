package store

import (
	"database/sql"
	"fmt"
)

// Schema summary limits.
const (
	maxSchemaPatterns  = 25
	sampleFunctionSize = 30
	sampleClassSize    = 20
	sampleFileSize     = 10
)

// SchemaInfo summarizes what a project graph contains, for clients about to
// write queries against it.
type SchemaInfo struct {
	NodeLabels           []LabelCount `json:"node_labels"`
	RelationshipTypes    []TypeCount  `json:"relationship_types"`
	RelationshipPatterns []string     `json:"relationship_patterns"`
	SampleFunctionNames  []string     `json:"sample_function_names"`
	SampleClassNames     []string     `json:"sample_class_names"`
	SampleFilePaths      []string     `json:"sample_file_paths"`
}

// LabelCount is a label with its count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TypeCount is a relationship type with its count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// GetSchema returns the schema summary of project.
func (s *Store) GetSchema(project string) (*SchemaInfo, error) {
	info := &SchemaInfo{}
	steps := []struct {
		what string
		run  func() error
	}{
		{"labels", func() (err error) {
			info.NodeLabels, err = scanCounts(s.q.Query(`SELECT label, COUNT(*) AS n FROM nodes
				WHERE project=? GROUP BY label ORDER BY n DESC, label`, project))
			return err
		}},
		{"edge types", func() error {
			counts, err := scanCounts(s.q.Query(`SELECT type, COUNT(*) AS n FROM edges
				WHERE project=? GROUP BY type ORDER BY n DESC, type`, project))
			for _, c := range counts {
				info.RelationshipTypes = append(info.RelationshipTypes, TypeCount{Type: c.Label, Count: c.Count})
			}
			return err
		}},
		{"patterns", func() (err error) {
			info.RelationshipPatterns, err = s.schemaPatterns(project)
			return err
		}},
		{"functions", func() (err error) {
			info.SampleFunctionNames, err = scanStrings(s.q.Query(`SELECT DISTINCT name FROM nodes
				WHERE project=? AND label='Function' ORDER BY name LIMIT ?`, project, sampleFunctionSize))
			return err
		}},
		{"classes", func() (err error) {
			info.SampleClassNames, err = scanStrings(s.q.Query(`SELECT DISTINCT name FROM nodes
				WHERE project=? AND label='Class' ORDER BY name LIMIT ?`, project, sampleClassSize))
			return err
		}},
		{"files", func() (err error) {
			info.SampleFilePaths, err = scanStrings(s.q.Query(`SELECT file_path FROM nodes
				WHERE project=? AND label='File' ORDER BY file_path LIMIT ?`, project, sampleFileSize))
			return err
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("schema %s: %w", step.what, err)
		}
	}
	return info, nil
}

// schemaPatterns returns the most common (label)-[type]->(label) shapes.
func (s *Store) schemaPatterns(project string) ([]string, error) {
	rows, err := s.q.Query(`SELECT src.label, e.type, dst.label, COUNT(*) AS n
		FROM edges e
		JOIN nodes src ON src.id = e.source_id
		JOIN nodes dst ON dst.id = e.target_id
		WHERE e.project=?
		GROUP BY src.label, e.type, dst.label
		ORDER BY n DESC, src.label, e.type, dst.label
		LIMIT ?`, project, maxSchemaPatterns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var patterns []string
	for rows.Next() {
		var src, rel, dst string
		var n int
		if err := rows.Scan(&src, &rel, &dst, &n); err != nil {
			return nil, err
		}
		patterns = append(patterns, fmt.Sprintf("(:%s)-[:%s]->(:%s)  [%dx]", src, rel, dst, n))
	}
	return patterns, rows.Err()
}

func scanCounts(rows *sql.Rows, err error) ([]LabelCount, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func scanStrings(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
