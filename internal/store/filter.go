package store

import (
	"strings"

	"gorm.io/gorm"
)

// ListQuery is the structured form of the list-endpoint filter string.
// Tokens are comma-separated and evaluated left to right:
//
//	sort:<field>:<asc|desc>  set sort field/direction (later tokens win)
//	<field>:<value>          contains-filter on a known field
//	<bare>                   contains-filter on the primary name/title field
//
// Unknown sort fields fall back to the default sort.
type ListQuery struct {
	Text      string
	TextField string
	SortField string
	Ascending bool
}

// ParseFilter builds a ListQuery from the raw filter string. primaryField is
// the default text and sort column; known maps accepted token field names to
// column names, so only vetted identifiers ever reach the query.
func ParseFilter(raw, primaryField string, known map[string]string) ListQuery {
	q := ListQuery{
		TextField: primaryField,
		SortField: primaryField,
		Ascending: true,
	}

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		parts := strings.SplitN(token, ":", 3)
		switch {
		case len(parts) == 3 && parts[0] == "sort":
			col, ok := known[parts[1]]
			if !ok {
				continue
			}
			q.SortField = col
			q.Ascending = parts[2] != "desc"
		case len(parts) == 2:
			if col, ok := known[parts[0]]; ok {
				q.TextField = col
				q.Text = parts[1]
			} else {
				q.TextField = primaryField
				q.Text = token
			}
		default:
			q.TextField = primaryField
			q.Text = token
		}
	}
	return q
}

// Apply adds the filter and sort to a query. Filter runs before sort;
// pagination is applied by the caller last.
func (q ListQuery) Apply(db *gorm.DB) *gorm.DB {
	if q.Text != "" {
		db = db.Where("LOWER("+q.TextField+") LIKE ?", "%"+strings.ToLower(q.Text)+"%")
	}
	dir := " ASC"
	if !q.Ascending {
		dir = " DESC"
	}
	return db.Order(q.SortField + dir)
}
