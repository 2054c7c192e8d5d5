// Package match resolves free-text queries to live tasks and projects.
package match

import (
	"strings"

	"github.com/harunoka/hisho/internal/hisho/store"
)

// Limit caps how many candidates a query may return; a disambiguation
// message never lists more than this.
const Limit = 5

// Tasks resolves query against live tasks. An exact id match short-circuits
// the title search and returns that single task regardless of title
// content; otherwise every task whose title contains query as a
// case-insensitive substring matches, capped at Limit.
func Tasks(tasks []store.Task, query string) []store.Task {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	for _, t := range tasks {
		if t.ID == query {
			return []store.Task{t}
		}
	}
	needle := strings.ToLower(query)
	var out []store.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			out = append(out, t)
			if len(out) == Limit {
				break
			}
		}
	}
	return out
}

// Projects is the project counterpart of Tasks.
func Projects(projects []store.Project, query string) []store.Project {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	for _, p := range projects {
		if p.ID == query {
			return []store.Project{p}
		}
	}
	needle := strings.ToLower(query)
	var out []store.Project
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			out = append(out, p)
			if len(out) == Limit {
				break
			}
		}
	}
	return out
}
