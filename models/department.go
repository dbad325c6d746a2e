package models

// Department is static reference data describing an organizational unit and
// the issue categories it services. The engine never mutates departments.
type Department struct {
	Name       string          `json:"name"`
	Categories []IssueCategory `json:"categories"`
}

// Services reports whether the department handles the given category.
func (d Department) Services(c IssueCategory) bool {
	for _, have := range d.Categories {
		if have == c {
			return true
		}
	}
	return false
}
