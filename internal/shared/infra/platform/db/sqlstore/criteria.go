package sqlstore

import (
	"fmt"
	"strings"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/invoiceflow/internal/shared/infra/utils"
)

// ApplyCriteria traduce criterios a un WHERE con '?'. Sólo acepta columnas de allowed.
func (s *Store) ApplyCriteria(criteria sharedDomain.Criteria, allowed map[string]bool) (string, []interface{}, error) {
	if criteria == nil {
		return "", nil, nil
	}
	return s.render(criteria, allowed)
}

func (s *Store) render(criteria sharedDomain.Criteria, allowed map[string]bool) (string, []interface{}, error) {
	if composite, ok := criteria.(sharedDomain.CompositeCriteria); ok {
		var (
			parts []string
			args  []interface{}
		)
		for _, c := range composite.Criterias {
			part, partArgs, err := s.render(c, allowed)
			if err != nil {
				return "", nil, err
			}
			if part == "" {
				continue
			}
			parts = append(parts, part)
			args = append(args, partArgs...)
		}
		if len(parts) == 0 {
			return "", nil, nil
		}
		op := sharedUtils.Ternary(composite.Operator == sharedDomain.OpOr, " OR ", " AND ")
		return "(" + strings.Join(parts, op) + ")", args, nil
	}

	var (
		clauses []string
		args    []interface{}
	)
	for _, c := range criteria.ToConditions() {
		if !allowed[c.Field] {
			return "", nil, fmt.Errorf("field %q cannot be filtered", c.Field)
		}
		op := c.Op
		// SQLite no tiene ILIKE; su LIKE ya ignora mayúsculas en ASCII.
		if op == sharedDomain.OpILike && s.Dialect == SQLite {
			op = "LIKE"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", c.Field, op))
		args = append(args, c.Value)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return strings.Join(clauses, " AND "), args, nil
}

// OrderAndPage devuelve el ORDER BY y LIMIT/OFFSET. Un campo no permitido usa fallback.
func OrderAndPage(sort sharedQuery.Sort, page sharedQuery.OffsetPagination, allowed map[string]bool, fallback string) (string, []interface{}) {
	field := sort.Field
	if !allowed[field] {
		field = fallback
	}
	page = page.Normalize()
	clause := fmt.Sprintf(" ORDER BY %s %s LIMIT ? OFFSET ?", field, sharedUtils.Ternary(sort.Desc, "DESC", "ASC"))
	return clause, []interface{}{page.Limit, page.Offset}
}
