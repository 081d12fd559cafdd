package rbac

import (
	"sort"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/dcp"
	"github.com/trezcool/sdoims/core/district"
	"github.com/trezcool/sdoims/core/division"
	"github.com/trezcool/sdoims/core/opcr"
	"github.com/trezcool/sdoims/core/sbm"
	"github.com/trezcool/sdoims/core/school"
	"github.com/trezcool/sdoims/core/ticket"
	"github.com/trezcool/sdoims/core/user"
)

// Resources lists every resource guarded by capabilities.
var Resources = []string{
	division.Resource,
	district.Resource,
	school.Resource,
	PermissionResource,
	RoleResource,
	user.Resource,
	ticket.CategoryResource,
	ticket.Resource,
	dcp.BatchResource,
	dcp.ItemResource,
	dcp.RecipientResource,
	dcp.StatusResource,
	opcr.Resource,
	sbm.ChecklistResource,
	sbm.IndicatorResource,
	sbm.ResponseResource,
}

// AllCapabilities returns every capability of every resource, sorted. The superuser role holds them all.
func AllCapabilities() []string {
	caps := make([]string, 0, len(Resources)*len(core.Actions)+1)
	for _, res := range Resources {
		for _, action := range core.Actions {
			caps = append(caps, core.Capability(res, action))
		}
	}
	caps = append(caps, core.Capability(opcr.Resource, core.ActionReview))
	sort.Strings(caps)
	return caps
}
