package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// Column 是过滤查询允许使用的列，值为带别名的 SQL 列名。
type Column string

const (
	ColumnSentiment Column = "r.sentiment_prediction"
	ColumnDate      Column = "r.consulted_query_date"
	ColumnTag       Column = "t.tag"
)

// Operator 是过滤查询允许使用的比较运算符。
type Operator string

const (
	OpEq  Operator = "="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpIn  Operator = "IN"
)

var (
	allowedColumns   = map[Column]struct{}{ColumnSentiment: {}, ColumnDate: {}, ColumnTag: {}}
	allowedOperators = map[Operator]struct{}{OpEq: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {}, OpIn: {}}
)

// Predicate 是一个结构化的过滤条件，值始终以参数绑定的方式传入。
type Predicate struct {
	Column Column
	Op     Operator
	Value  interface{}
}

// Where 构造 Predicate 的便捷函数。
func Where(col Column, op Operator, value interface{}) Predicate {
	return Predicate{Column: col, Op: op, Value: value}
}

func (p Predicate) validate() error {
	if _, ok := allowedColumns[p.Column]; !ok {
		return fmt.Errorf("filter column %q not allowed", p.Column)
	}
	if _, ok := allowedOperators[p.Op]; !ok {
		return fmt.Errorf("filter operator %q not allowed", p.Op)
	}
	return nil
}

// applyPredicates 把校验通过的条件依次追加到查询上。
func applyPredicates(q *gorm.DB, preds []Predicate) (*gorm.DB, error) {
	for _, p := range preds {
		if err := p.validate(); err != nil {
			return nil, err
		}
		q = q.Where(fmt.Sprintf("%s %s ?", p.Column, p.Op), p.Value)
	}
	return q, nil
}
