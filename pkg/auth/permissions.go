package auth

import (
	"fmt"

	"github.com/gomem/gomem/pkg/models"
)

// Verb is the action half of a permission name.
type Verb string

const (
	VerbCreate Verb = "CREATE"
	VerbGet    Verb = "GET"
	VerbList   Verb = "LIST"
	VerbUpdate Verb = "UPDATE"
	VerbDelete Verb = "DELETE"
)

// Resource is the aggregate a permission applies to.
type Resource string

const (
	ResourceUser     Resource = "USER"
	ResourceAPIKey   Resource = "APIKEY"
	ResourceSpace    Resource = "SPACE"
	ResourceMemory   Resource = "MEMORY"
	ResourceEmbedder Resource = "EMBEDDER"
)

// Scope narrows a permission to the caller's own rows or any row.
type Scope string

const (
	ScopeOwn Scope = "OWN"
	ScopeAny Scope = "ANY"
)

// Permission is a VERB_RESOURCE_SCOPE triple, e.g. "CREATE_SPACE_OWN".
type Permission string

// Perm builds the permission name for a triple.
func Perm(v Verb, r Resource, s Scope) Permission {
	return Permission(fmt.Sprintf("%s_%s_%s", v, r, s))
}

var allVerbs = []Verb{VerbCreate, VerbGet, VerbList, VerbUpdate, VerbDelete}

var allResources = []Resource{
	ResourceUser, ResourceAPIKey, ResourceSpace, ResourceMemory, ResourceEmbedder,
}

// rolePermissions fixes the permission bundle of each role. ROOT holds every
// permission; USER holds every _OWN permission and nothing scoped ANY.
var rolePermissions = map[models.Role]map[Permission]struct{}{
	models.RoleRoot: buildBundle(ScopeOwn, ScopeAny),
	models.RoleUser: buildBundle(ScopeOwn),
}

func buildBundle(scopes ...Scope) map[Permission]struct{} {
	bundle := make(map[Permission]struct{}, len(allVerbs)*len(allResources)*len(scopes))
	for _, v := range allVerbs {
		for _, r := range allResources {
			for _, s := range scopes {
				bundle[Perm(v, r, s)] = struct{}{}
			}
		}
	}
	return bundle
}

// RoleHasPermission reports whether the role's bundle contains the permission.
func RoleHasPermission(role models.Role, p Permission) bool {
	bundle, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = bundle[p]
	return ok
}
