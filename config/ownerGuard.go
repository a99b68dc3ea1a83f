package config

import (
	"context"
	"strings"

	"bitbucket.org/storeline/retail_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnerGuardPlugin enforces multi-tenant isolation by automatically scoping
// queries/updates/deletes to the request's owner_id when the model has an owner_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include owner_id manually.
type OwnerGuardPlugin struct{}

func NewOwnerGuardPlugin() *OwnerGuardPlugin { return &OwnerGuardPlugin{} }

func (p *OwnerGuardPlugin) Name() string { return "owner_guard" }

func (p *OwnerGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("owner_guard:query", ownerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("owner_guard:row", ownerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("owner_guard:update", ownerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("owner_guard:delete", ownerGuardCallback); err != nil {
		return err
	}
	return nil
}

func ownerGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	ownerID := ownerIdFromContext(ctx)
	if ownerID == "" {
		return
	}

	// Only apply if the current model/table includes an owner_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasOwnerID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "owner_id") {
			hasOwnerID = true
			break
		}
	}
	if !hasOwnerID {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasOwnerID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "owner_id"},
				Value:  ownerID,
			},
		},
	})
}

func ownerIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyOwnerId).(string); ok && v != "" {
		return v
	}
	return ""
}

func whereHasOwnerID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasOwnerID(e) {
			return true
		}
	}
	return false
}

func exprHasOwnerID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsOwnerID(v.Column)
	case clause.Neq:
		return colIsOwnerID(v.Column)
	case clause.IN:
		return colIsOwnerID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasOwnerID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasOwnerID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "owner_id")
	default:
		return false
	}
}

func colIsOwnerID(col interface{}) bool {
	switch c := col.(type) {
	case clause.Column:
		return strings.EqualFold(c.Name, "owner_id")
	case string:
		return strings.Contains(strings.ToLower(c), "owner_id")
	default:
		return false
	}
}
