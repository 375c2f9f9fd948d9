package rbac

import (
	"inventra.org/internal/auth"
)

// Features is the flag map that gates optional permission groups.
type Features map[string]bool

const featureGST = "gst"

// Resolver computes permission sets. It holds only immutable configuration
// (per-tenant feature flags), so it is safe under unlimited parallel use.
type Resolver struct {
	defaults Features
	tenants  map[string]Features
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDefaultFeatures sets the flags applied when a user's tenant has no
// explicit entry.
func WithDefaultFeatures(f Features) ResolverOption {
	return func(r *Resolver) {
		r.defaults = cloneFeatures(f)
	}
}

// WithTenantFeatures sets the flags for one tenant.
func WithTenantFeatures(tenantID string, f Features) ResolverOption {
	return func(r *Resolver) {
		r.tenants[tenantID] = cloneFeatures(f)
	}
}

// NewResolver constructs a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		defaults: Features{},
		tenants:  make(map[string]Features),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Role grant matrix. Admin is a strict superset of manager for inventory
// capabilities; staff holds floor-level capabilities only. An unknown role
// matches nothing and resolves to the empty set.
var roleGrants = map[auth.Role][]Permission{
	auth.RoleStaff: {
		PermProductView,
		PermProductEdit,
		PermStockTransactionView,
		PermStockTransactionCreate,
		PermRequisitionCreate,
	},
	auth.RoleManager: {
		PermProductView,
		PermProductEdit,
		PermSupplierView,
		PermSupplierEdit,
		PermStockTransactionView,
		PermStockTransactionCreate,
		PermInventoryAdjust,
		PermPurchaseOrderCreate,
		PermPurchaseOrderApprove,
		PermRequisitionCreate,
		PermRequisitionApprove,
		PermUserView,
		PermUserEdit,
	},
	auth.RoleAdmin: {
		PermProductView,
		PermProductEdit,
		PermSupplierView,
		PermSupplierEdit,
		PermStockTransactionView,
		PermStockTransactionCreate,
		PermInventoryAdjust,
		PermPurchaseOrderCreate,
		PermPurchaseOrderApprove,
		PermRequisitionCreate,
		PermRequisitionApprove,
		PermUserView,
		PermUserEdit,
		PermUserManage,
		PermSettingsManage,
	},
}

// Resolve computes the permission set for a user. The result is a pure
// function of {role, department, tenant, feature flags}: identical inputs
// always produce identical sets.
func (r *Resolver) Resolve(u *auth.User) Set {
	if u == nil {
		return NewSet()
	}
	grants, ok := roleGrants[u.Role]
	if !ok {
		// Fail closed: no mapping, no capabilities.
		return NewSet()
	}
	set := NewSet(grants...)

	set[r.reportPermission(u)] = struct{}{}

	if r.features(u.TenantID)[featureGST] {
		// Admins file returns; managers can view them.
		switch u.Role {
		case auth.RoleAdmin:
			set[PermGSTReportView] = struct{}{}
			set[PermGSTReportFile] = struct{}{}
		case auth.RoleManager:
			set[PermGSTReportView] = struct{}{}
		}
	}
	return set
}

// reportPermission picks the scope tier for report access. A department-scoped
// role without a department collapses to own-only so reports never leak across
// departments by accident.
func (r *Resolver) reportPermission(u *auth.User) Permission {
	switch u.Role {
	case auth.RoleAdmin:
		return PermReportViewAll
	case auth.RoleManager:
		if u.Department == "" {
			return PermReportViewOwn
		}
		return PermReportViewDepartment
	default:
		return PermReportViewOwn
	}
}

func (r *Resolver) features(tenantID string) Features {
	if f, ok := r.tenants[tenantID]; ok {
		return f
	}
	return r.defaults
}

// FeaturesFor exposes the effective flag map for a tenant, for clients that
// mirror flags into UI state.
func (r *Resolver) FeaturesFor(tenantID string) Features {
	return cloneFeatures(r.features(tenantID))
}

func cloneFeatures(f Features) Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
