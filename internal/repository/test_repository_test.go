package repository

import (
	"strings"
	"testing"
)

func TestPublishedQueryFilters(t *testing.T) {
	tests := []struct {
		name       string
		section    string
		subsection string
		wantArgs   int
		wantClause []string
	}{
		{
			name:     "no filters",
			wantArgs: 1,
		},
		{
			name:       "section only",
			section:    "NEET",
			wantArgs:   2,
			wantClause: []string{"section = $2"},
		},
		{
			name:       "section and subsection",
			section:    "JEE",
			subsection: "Physics",
			wantArgs:   3,
			wantClause: []string{"section = $2", "subsection = $3"},
		},
		{
			name:       "subsection only",
			subsection: "Biology",
			wantArgs:   2,
			wantClause: []string{"subsection = $2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := publishedQuery(tt.section, tt.subsection)

			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
			if !strings.Contains(query, "status = $1") {
				t.Error("query is missing the published-status filter")
			}
			for _, clause := range tt.wantClause {
				if !strings.Contains(query, clause) {
					t.Errorf("query is missing %q:\n%s", clause, query)
				}
			}
		})
	}
}
