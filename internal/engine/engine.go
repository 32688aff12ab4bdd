// Package engine wires the heap file, B+Tree index, predicate planner
// and SQL front end together into LOAD/SELECT execution, replacing the
// ad hoc per-statement dispatch a multi-table server would need with a
// single-table, single-index driver.
package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/relicdb/relicdb/internal/btree"
	"github.com/relicdb/relicdb/internal/heap"
	"github.com/relicdb/relicdb/internal/pager"
	"github.com/relicdb/relicdb/internal/planner"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// Engine executes parsed LOAD/SELECT statements against <table>.tbl
// and <table>.idx files rooted at DataDir.
type Engine struct {
	DataDir  string
	PageSize int
}

func New(dataDir string, pageSize int) *Engine {
	return &Engine{DataDir: dataDir, PageSize: pageSize}
}

func (e *Engine) tablePath(table string) string { return filepath.Join(e.DataDir, table+".tbl") }
func (e *Engine) indexPath(table string) string { return filepath.Join(e.DataDir, table+".idx") }

// Execute parses and runs a single ';'-terminated statement, writing
// SELECT output to out.
func (e *Engine) Execute(sql string, out io.Writer) error {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *parser.LoadStmt:
		return e.execLoad(s)
	case *parser.SelectStmt:
		return e.execSelect(s, out)
	default:
		return fmt.Errorf("engine: unsupported statement %T", stmt)
	}
}

func (e *Engine) execLoad(s *parser.LoadStmt) error {
	slog.Debug("engine.load.start", "table", s.Table, "file", s.File, "withIndex", s.WithIndex)

	tbl, err := heap.Open(e.tablePath(s.Table), pager.ModeWrite, e.PageSize)
	if err != nil {
		return err
	}
	defer tbl.Close()

	var idx *btree.Tree
	if s.WithIndex {
		idx, err = btree.Open(e.indexPath(s.Table), pager.ModeWrite, e.PageSize)
		if err != nil {
			return err
		}
		defer idx.Close()
	}

	f, err := os.Open(s.File)
	if err != nil {
		return fmt.Errorf("%w: %v", pager.ErrFileOpenFailed, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		key, value, err := parser.ParseLoadLine(line)
		if err != nil {
			return err
		}
		rid, err := tbl.Append(key, value)
		if err != nil {
			return err
		}
		if idx != nil {
			if err := idx.Insert(key, rid); err != nil {
				return err
			}
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %v", pager.ErrFileReadFailed, err)
	}
	slog.Debug("engine.load.done", "table", s.Table, "rows", n)
	return nil
}

func (e *Engine) execSelect(s *parser.SelectStmt, out io.Writer) error {
	attr := projectionToAttr(s.Projection)
	conds := toPlannerConds(s.Conds)
	plan := planner.Build(attr, conds)

	if plan.Contradiction {
		if s.Projection == parser.ProjectCount {
			fmt.Fprintf(out, "%d\n", 0)
		}
		return nil
	}

	tbl, err := heap.Open(e.tablePath(s.Table), pager.ModeRead, e.PageSize)
	if err != nil {
		return err
	}
	defer tbl.Close()

	idx, idxErr := btree.Open(e.indexPath(s.Table), pager.ModeRead, e.PageSize)
	if idxErr == nil {
		defer idx.Close()
	}

	useIndex := idxErr == nil && plan.Access != planner.AccessFullScan
	slog.Debug("engine.select.plan", "table", s.Table, "access", plan.Access, "useIndex", useIndex)

	if !useIndex {
		return scanWithoutIndex(tbl, s.Projection, conds, out)
	}
	return scanWithIndex(idx, tbl, s.Projection, plan, conds, out)
}

func projectionToAttr(p parser.Projection) planner.Attr {
	switch p {
	case parser.ProjectKey:
		return planner.AttrKey
	case parser.ProjectValue:
		return planner.AttrValue
	case parser.ProjectCount:
		return planner.AttrCount
	default:
		return planner.AttrBoth
	}
}

func toPlannerConds(conds []parser.Cond) []planner.Cond {
	out := make([]planner.Cond, len(conds))
	for i, c := range conds {
		pc := planner.Cond{Comp: planner.Comp(c.Comp)}
		if c.Attr == parser.AttrKey {
			pc.Attr = planner.AttrKey
			pc.KeyLit = c.KeyLit
		} else {
			pc.Attr = planner.AttrValue
			pc.ValLit = c.ValLit
		}
		out[i] = pc
	}
	return out
}

func projectRow(out io.Writer, proj parser.Projection, key int32, value string) {
	switch proj {
	case parser.ProjectKey:
		fmt.Fprintf(out, "%d\n", key)
	case parser.ProjectValue:
		fmt.Fprintf(out, "%s\n", value)
	default: // ProjectBoth
		fmt.Fprintf(out, "%d '%s'\n", key, value)
	}
}

// scanWithIndex drives the index for a point or range access path.
func scanWithIndex(idx *btree.Tree, tbl *heap.Table, proj parser.Projection, plan planner.Plan, conds []planner.Cond, out io.Writer) error {
	c := plan.Combined

	if plan.Access == planner.AccessPoint {
		cur, err := idx.Locate(c.ExactKey)
		if err != nil {
			if errors.Is(err, btree.ErrNoSuchRecord) {
				if proj == parser.ProjectCount {
					fmt.Fprintf(out, "%d\n", 0)
				}
				return nil
			}
			return err
		}
		if proj == parser.ProjectCount {
			fmt.Fprintf(out, "%d\n", 1)
			return nil
		}
		key, rid, _, err := idx.ReadForward(cur)
		if err != nil {
			return err
		}
		return projectOne(tbl, proj, key, rid, out)
	}

	cur, err := idx.Locate(c.RangeMin)
	if err != nil && !errors.Is(err, btree.ErrNoSuchRecord) {
		return err
	}

	count := 0
	for {
		key, rid, next, err := idx.ReadForward(cur)
		if errors.Is(err, btree.ErrEndOfTree) {
			break
		}
		if err != nil {
			return err
		}
		if key > c.RangeMax {
			break
		}
		cur = next

		if c.HasNEqual && key == c.ExactKey {
			continue
		}
		if c.HasValue {
			_, value, err := tbl.Read(rid)
			if err != nil {
				return err
			}
			if !planner.MatchesValue(conds, value) {
				continue
			}
			if proj == parser.ProjectCount {
				count++
				continue
			}
			projectRow(out, proj, key, value)
			continue
		}
		if proj == parser.ProjectCount {
			count++
			continue
		}
		if err := projectOne(tbl, proj, key, rid, out); err != nil {
			return err
		}
	}
	if proj == parser.ProjectCount {
		fmt.Fprintf(out, "%d\n", count)
	}
	return nil
}

func projectOne(tbl *heap.Table, proj parser.Projection, key int32, rid heap.RecordId, out io.Writer) error {
	if proj == parser.ProjectKey {
		fmt.Fprintf(out, "%d\n", key)
		return nil
	}
	_, value, err := tbl.Read(rid)
	if err != nil {
		return err
	}
	projectRow(out, proj, key, value)
	return nil
}

// scanWithoutIndex walks the heap file directly: used when there is no
// index, or when the predicates give the index nothing useful to seed
// a scan with.
func scanWithoutIndex(tbl *heap.Table, proj parser.Projection, conds []planner.Cond, out io.Writer) error {
	count := 0
	err := tbl.Scan(func(rid heap.RecordId, key int32, value string) error {
		for _, c := range conds {
			if c.Attr == planner.AttrKey {
				if !matchKey(c, key) {
					return nil
				}
			} else {
				if !matchValue(c, value) {
					return nil
				}
			}
		}
		if proj == parser.ProjectCount {
			count++
			return nil
		}
		projectRow(out, proj, key, value)
		return nil
	})
	if err != nil {
		return err
	}
	if proj == parser.ProjectCount {
		fmt.Fprintf(out, "%d\n", count)
	}
	return nil
}

func matchKey(c planner.Cond, key int32) bool {
	switch c.Comp {
	case planner.EQ:
		return key == c.KeyLit
	case planner.NE:
		return key != c.KeyLit
	case planner.GT:
		return key > c.KeyLit
	case planner.LT:
		return key < c.KeyLit
	case planner.GE:
		return key >= c.KeyLit
	case planner.LE:
		return key <= c.KeyLit
	default:
		return false
	}
}

func matchValue(c planner.Cond, value string) bool {
	switch c.Comp {
	case planner.EQ:
		return value == c.ValLit
	case planner.NE:
		return value != c.ValLit
	case planner.GT:
		return value > c.ValLit
	case planner.LT:
		return value < c.ValLit
	case planner.GE:
		return value >= c.ValLit
	case planner.LE:
		return value <= c.ValLit
	default:
		return false
	}
}
