package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const nodeColumns = "id, project, label, name, qualified_name, file_path, start_line, end_line, properties"

// UpsertNode inserts or updates a node (dedup by qualified_name) and returns its id.
func (s *Store) UpsertNode(n *Node) (int64, error) {
	_, err := s.q.Exec(`
		INSERT INTO nodes (project, label, name, qualified_name, file_path, start_line, end_line, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, qualified_name) DO UPDATE SET
			label=excluded.label, name=excluded.name, file_path=excluded.file_path,
			start_line=excluded.start_line, end_line=excluded.end_line, properties=excluded.properties`,
		n.Project, n.Label, n.Name, n.QualifiedName, n.FilePath, n.StartLine, n.EndLine, marshalProps(n.Properties))
	if err != nil {
		return 0, fmt.Errorf("upsert node: %w", err)
	}
	// LastInsertId is unreliable for the DO UPDATE branch; look the id up.
	var id int64
	err = s.q.QueryRow("SELECT id FROM nodes WHERE project=? AND qualified_name=?", n.Project, n.QualifiedName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get node id: %w", err)
	}
	n.ID = id
	return id, nil
}

// FindNodeByID finds a node by its primary key ID.
func (s *Store) FindNodeByID(id int64) (*Node, error) {
	row := s.q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id=?`, id)
	return scanNode(row)
}

// FindNodeByQN finds a node by project and qualified name.
func (s *Store) FindNodeByQN(project, qualifiedName string) (*Node, error) {
	row := s.q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND qualified_name=?`, project, qualifiedName)
	return scanNode(row)
}

// FindNodesByName finds nodes by project and name.
func (s *Store) FindNodesByName(project, name string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND name=?`, project, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByLabel finds all nodes with a given label in a project.
func (s *Store) FindNodesByLabel(project, label string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND label=? ORDER BY id`, project, label)
	if err != nil {
		return nil, fmt.Errorf("find by label: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByFile finds all nodes in a given file.
func (s *Store) FindNodesByFile(project, filePath string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE project=? AND file_path=? ORDER BY start_line`, project, filePath)
	if err != nil {
		return nil, fmt.Errorf("find by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in a project.
func (s *Store) CountNodes(project string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE project=?", project).Scan(&count)
	return count, err
}

// CountNodesByLabel returns the number of nodes with a label in a project.
func (s *Store) CountNodesByLabel(project, label string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE project=? AND label=?", project, label).Scan(&count)
	return count, err
}

// DeleteNodesByFile deletes all nodes for a specific file in a project.
// Edges touching them go with them (ON DELETE CASCADE).
func (s *Store) DeleteNodesByFile(project, filePath string) error {
	_, err := s.q.Exec("DELETE FROM nodes WHERE project=? AND file_path=?", project, filePath)
	return err
}

// FindNodesByIDs returns a map of nodeID → *Node for the given IDs.
func (s *Store) FindNodesByIDs(ids []int64) (map[int64]*Node, error) {
	if len(ids) == 0 {
		return map[int64]*Node{}, nil
	}
	result := make(map[int64]*Node, len(ids))
	const batchSize = 998 // leave room under 999 limit

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for j, id := range chunk {
			placeholders[j] = "?"
			args[j] = id
		}

		query := fmt.Sprintf("SELECT %s FROM nodes WHERE id IN (%s)", nodeColumns, strings.Join(placeholders, ","))

		if err := func() error {
			rows, err := s.q.Query(query, args...)
			if err != nil {
				return fmt.Errorf("find nodes by ids: %w", err)
			}
			defer rows.Close()
			nodes, err := scanNodes(rows)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				result[n.ID] = n
			}
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AllNodes returns all nodes for a project.
func (s *Store) AllNodes(project string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE project=? ORDER BY id`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.Project, &n.Label, &n.Name, &n.QualifiedName, &n.FilePath, &n.StartLine, &n.EndLine, &props)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
