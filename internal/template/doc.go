// Package template renders the routing-spec template fields described in
// spec.md §9: a fixed {{key}}/{{key.sub}} substitution grammar with no shell
// or general code evaluation on the subprocess path, and an opt-in
// text/template+sprig path for the richer http routing templates.
package template
