package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var requirementFields = map[string]string{
	"title":  "title",
	"status": "status",
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ListQuery
	}{
		{
			name: "empty string keeps defaults",
			raw:  "",
			want: ListQuery{TextField: "title", SortField: "title", Ascending: true},
		},
		{
			name: "bare token filters primary field",
			raw:  "login",
			want: ListQuery{Text: "login", TextField: "title", SortField: "title", Ascending: true},
		},
		{
			name: "known field token",
			raw:  "status:Draft",
			want: ListQuery{Text: "Draft", TextField: "status", SortField: "title", Ascending: true},
		},
		{
			name: "unknown field token falls back to primary contains",
			raw:  "owner:bob",
			want: ListQuery{Text: "owner:bob", TextField: "title", SortField: "title", Ascending: true},
		},
		{
			name: "sort descending",
			raw:  "sort:status:desc",
			want: ListQuery{TextField: "title", SortField: "status", Ascending: false},
		},
		{
			name: "unknown sort field keeps default sort",
			raw:  "sort:bogus:desc",
			want: ListQuery{TextField: "title", SortField: "title", Ascending: true},
		},
		{
			name: "later sort token wins",
			raw:  "sort:title:desc,sort:status:asc",
			want: ListQuery{TextField: "title", SortField: "status", Ascending: true},
		},
		{
			name: "filter and sort combined",
			raw:  "login,sort:title:desc",
			want: ListQuery{Text: "login", TextField: "title", SortField: "title", Ascending: false},
		},
		{
			name: "whitespace and empty tokens skipped",
			raw:  " , login , ",
			want: ListQuery{Text: "login", TextField: "title", SortField: "title", Ascending: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFilter(tt.raw, "title", requirementFields)
			assert.Equal(t, tt.want, got)
		})
	}
}
