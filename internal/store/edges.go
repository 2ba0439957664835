package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const edgeColumns = "id, project, source_id, target_id, type, properties"

// InsertEdge inserts an edge (dedup by source_id, target_id, type).
func (s *Store) InsertEdge(e *Edge) error {
	_, err := s.MergeEdge(e)
	return err
}

// MergeEdge inserts e, or replaces the properties of the edge with the same
// endpoints and type. It reports whether a new edge was created.
func (s *Store) MergeEdge(e *Edge) (bool, error) {
	props := marshalProps(e.Properties)
	res, err := s.q.Exec(`
		INSERT INTO edges (project, source_id, target_id, type, properties)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO NOTHING`,
		e.Project, e.SourceID, e.TargetID, e.Type, props)
	if err != nil {
		return false, fmt.Errorf("insert edge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}
	_, err = s.q.Exec(`UPDATE edges SET properties=? WHERE source_id=? AND target_id=? AND type=?`,
		props, e.SourceID, e.TargetID, e.Type)
	if err != nil {
		return false, fmt.Errorf("update edge: %w", err)
	}
	return false, nil
}

// FindEdgesBySource finds all edges from a given source node.
func (s *Store) FindEdgesBySource(sourceID int64) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE source_id=? ORDER BY id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTarget finds all edges to a given target node.
func (s *Store) FindEdgesByTarget(targetID int64) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE target_id=? ORDER BY id`, targetID)
	if err != nil {
		return nil, fmt.Errorf("find edges by target: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesBySourceAndType finds edges from a source with a specific type.
func (s *Store) FindEdgesBySourceAndType(sourceID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE source_id=? AND type=? ORDER BY id`, sourceID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by source+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTargetAndType finds edges to a target with a specific type.
func (s *Store) FindEdgesByTargetAndType(targetID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE target_id=? AND type=? ORDER BY id`, targetID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by target+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByType returns all edges of a given type for a project.
func (s *Store) FindEdgesByType(project, edgeType string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE project=? AND type=? ORDER BY id`, project, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges in a project.
func (s *Store) CountEdges(project string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE project=?", project).Scan(&count)
	return count, err
}

// CountEdgesByType returns the number of edges of one type in a project.
func (s *Store) CountEdgesByType(project, edgeType string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE project=? AND type=?", project, edgeType).Scan(&count)
	return count, err
}

// DeleteEdgesBySourceFile deletes edges of the given types whose source node
// belongs to a specific file. Used to rebuild a file's outgoing references
// during incremental builds.
func (s *Store) DeleteEdgesBySourceFile(project, filePath string, edgeTypes ...string) error {
	if len(edgeTypes) == 0 {
		return nil
	}
	placeholders := make([]string, len(edgeTypes))
	args := []any{project, filePath}
	for i, et := range edgeTypes {
		placeholders[i] = "?"
		args = append(args, et)
	}
	_, err := s.q.Exec(`
		DELETE FROM edges WHERE id IN (
			SELECT e.id FROM edges e
			JOIN nodes n ON e.source_id = n.id
			WHERE e.project=? AND n.file_path=? AND e.type IN (`+strings.Join(placeholders, ",")+`)
		)`, args...)
	return err
}

// FindImporters returns the paths of files with an IMPORTS edge into filePath.
func (s *Store) FindImporters(project, filePath string) ([]string, error) {
	rows, err := s.q.Query(`
		SELECT DISTINCT src.file_path FROM edges e
		JOIN nodes src ON e.source_id = src.id
		JOIN nodes dst ON e.target_id = dst.id
		WHERE e.project=? AND e.type='IMPORTS' AND dst.label='File' AND dst.file_path=?
		ORDER BY src.file_path`, project, filePath)
	if err != nil {
		return nil, fmt.Errorf("find importers: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var props string
		if err := rows.Scan(&e.ID, &e.Project, &e.SourceID, &e.TargetID, &e.Type, &props); err != nil {
			return nil, err
		}
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
