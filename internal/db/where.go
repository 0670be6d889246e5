package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed SQL conditions, numbering placeholders as it goes.
type Where struct {
	clauses []string
	Args    []any
}

// Add appends cond, binding each "?" in turn to the next of args.
func (w *Where) Add(cond string, args ...any) {
	for _, a := range args {
		w.Args = append(w.Args, a)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.Args)), 1)
	}
	w.clauses = append(w.clauses, cond)
}

// Raw appends a condition without arguments.
func (w *Where) Raw(cond string) { w.clauses = append(w.clauses, cond) }

func (w *Where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Page appends LIMIT/OFFSET placeholders and returns the clause with the
// full argument list.
func (w *Where) Page(limit, offset int) (string, []any) {
	args := append(append([]any{}, w.Args...), limit, offset)
	return " LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args)), args
}
