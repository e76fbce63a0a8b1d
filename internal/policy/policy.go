// Package policy classifies SQL statements with PostgreSQL's own parser so the
// query tool can refuse anything that is not read-only.
package policy

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// CheckReadOnly parses sql and returns nil only for a single statement that
// cannot modify data: SELECT (without INTO or row locks), VALUES, TABLE, SHOW,
// and EXPLAIN of those. EXPLAIN without ANALYZE is allowed for any statement
// since it does not execute.
func CheckReadOnly(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("SQL parse error: %w", err)
	}
	if len(result.Stmts) == 0 {
		return fmt.Errorf("SQL parse error: empty query")
	}
	if len(result.Stmts) > 1 {
		return fmt.Errorf("multi-statement queries are not allowed: found %d statements", len(result.Stmts))
	}
	return checkNode(result.Stmts[0].Stmt)
}

func checkNode(node *pg_query.Node) error {
	if node == nil {
		return nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return checkSelect(n.SelectStmt)
	case *pg_query.Node_VariableShowStmt:
		return nil
	case *pg_query.Node_ExplainStmt:
		if !isAnalyze(n.ExplainStmt.Options) {
			return nil
		}
		return checkNode(n.ExplainStmt.Query)
	default:
		return fmt.Errorf("%s statements are not allowed", StatementKind(node))
	}
}

func checkSelect(stmt *pg_query.SelectStmt) error {
	if stmt == nil {
		return nil
	}
	if stmt.IntoClause != nil {
		return fmt.Errorf("SELECT INTO is not allowed: it creates a table")
	}
	if len(stmt.LockingClause) > 0 {
		return fmt.Errorf("SELECT ... FOR UPDATE/SHARE is not allowed: it takes row locks")
	}
	if stmt.WithClause != nil {
		for _, cte := range stmt.WithClause.Ctes {
			cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			if err := checkNode(cteNode.CommonTableExpr.Ctequery); err != nil {
				return fmt.Errorf("WITH %s: %w", cteNode.CommonTableExpr.Ctename, err)
			}
		}
	}
	// UNION / INTERSECT / EXCEPT arms.
	if err := checkSelect(stmt.Larg); err != nil {
		return err
	}
	return checkSelect(stmt.Rarg)
}

func isAnalyze(options []*pg_query.Node) bool {
	for _, opt := range options {
		def, ok := opt.Node.(*pg_query.Node_DefElem)
		if !ok || !strings.EqualFold(def.DefElem.Defname, "analyze") {
			continue
		}
		if def.DefElem.Arg == nil {
			return true
		}
		if s, ok := def.DefElem.Arg.Node.(*pg_query.Node_String_); ok {
			switch strings.ToLower(s.String_.Sval) {
			case "false", "off", "0":
				return false
			}
		}
		return true
	}
	return false
}

// StatementKind returns a short human-readable name for a statement node.
func StatementKind(node *pg_query.Node) string {
	switch node.Node.(type) {
	case *pg_query.Node_InsertStmt:
		return "INSERT"
	case *pg_query.Node_UpdateStmt:
		return "UPDATE"
	case *pg_query.Node_DeleteStmt:
		return "DELETE"
	case *pg_query.Node_MergeStmt:
		return "MERGE"
	case *pg_query.Node_TruncateStmt:
		return "TRUNCATE"
	case *pg_query.Node_DropStmt, *pg_query.Node_DropdbStmt:
		return "DROP"
	case *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt, *pg_query.Node_ViewStmt,
		*pg_query.Node_IndexStmt, *pg_query.Node_CreateSchemaStmt, *pg_query.Node_CreateSeqStmt:
		return "CREATE"
	case *pg_query.Node_AlterTableStmt, *pg_query.Node_AlterSeqStmt, *pg_query.Node_RenameStmt:
		return "ALTER"
	case *pg_query.Node_VariableSetStmt:
		return "SET"
	case *pg_query.Node_TransactionStmt:
		return "transaction control"
	case *pg_query.Node_CopyStmt:
		return "COPY"
	case *pg_query.Node_DoStmt:
		return "DO"
	case *pg_query.Node_CallStmt:
		return "CALL"
	case *pg_query.Node_GrantStmt, *pg_query.Node_GrantRoleStmt:
		return "GRANT/REVOKE"
	case *pg_query.Node_LockStmt:
		return "LOCK"
	case *pg_query.Node_VacuumStmt:
		return "VACUUM/ANALYZE"
	}
	name := fmt.Sprintf("%T", node.Node)
	name = strings.TrimPrefix(name, "*pg_query.Node_")
	return strings.TrimSuffix(name, "Stmt")
}
