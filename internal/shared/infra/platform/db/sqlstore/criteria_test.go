package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
)

type fieldEq struct {
	field string
	value interface{}
}

func (f fieldEq) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: f.field, Op: sharedDomain.OpEq, Value: f.value}}
}

type nameLike string

func (n nameLike) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "name", Op: sharedDomain.OpILike, Value: "%" + string(n) + "%"}}
}

var allowedFields = map[string]bool{"status": true, "vendor_id": true, "name": true}

func TestApplyCriteria(t *testing.T) {
	s := &Store{Dialect: SQLite}

	where, args, err := s.ApplyCriteria(sharedDomain.And(
		fieldEq{"status", "Approved"},
		sharedDomain.Or(fieldEq{"vendor_id", "v1"}, fieldEq{"vendor_id", "v2"}),
	), allowedFields)
	require.NoError(t, err)
	assert.Equal(t, "(status = ? AND (vendor_id = ? OR vendor_id = ?))", where)
	assert.Equal(t, []interface{}{"Approved", "v1", "v2"}, args)

	where, _, err = s.ApplyCriteria(nameLike("acme"), allowedFields)
	require.NoError(t, err)
	assert.Equal(t, "name LIKE ?", where)

	pg := &Store{Dialect: Postgres}
	where, _, err = pg.ApplyCriteria(nameLike("acme"), allowedFields)
	require.NoError(t, err)
	assert.Equal(t, "name ILIKE ?", where)

	_, _, err = s.ApplyCriteria(fieldEq{"1=1; DROP TABLE x", 1}, allowedFields)
	assert.Error(t, err)

	where, args, err = s.ApplyCriteria(nil, allowedFields)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestOrderAndPage(t *testing.T) {
	clause, args := OrderAndPage(sharedQuery.Sort{Field: "status", Desc: true}, sharedQuery.OffsetPagination{Limit: 10, Offset: 20}, allowedFields, "created_at")
	assert.Equal(t, " ORDER BY status DESC LIMIT ? OFFSET ?", clause)
	assert.Equal(t, []interface{}{10, 20}, args)

	clause, args = OrderAndPage(sharedQuery.Sort{Field: "evil"}, sharedQuery.OffsetPagination{Limit: 10000, Offset: -1}, allowedFields, "created_at")
	assert.Equal(t, " ORDER BY created_at ASC LIMIT ? OFFSET ?", clause)
	assert.Equal(t, []interface{}{sharedQuery.MaxLimit, 0}, args)
}
