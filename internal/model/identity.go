package model

import "strings"

// Identity binds a CLI installation to a project and its remote repository.
// Provider is the Codacy provider slug: "gh", "gl" or "bb".
type Identity struct {
	Provider     string
	Organization string
	Repository   string
	ProjectRoot  string
}

// Remote reports whether provider, organization and repository are all set.
func (id Identity) Remote() bool {
	return strings.TrimSpace(id.Provider) != "" &&
		strings.TrimSpace(id.Organization) != "" &&
		strings.TrimSpace(id.Repository) != ""
}
