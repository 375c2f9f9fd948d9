// Package rbac derives fine-grained permissions from a user's role, department
// and tenant. Permissions are computed on every resolution, never stored per
// user, so a role change is effective immediately with no migration step.
package rbac

import "sort"

// Permission is an atomic capability key, resource.action[.scope].
type Permission string

// Scope is the breadth of data a permission grants access to.
type Scope string

const (
	ScopeOwn        Scope = "own"
	ScopeDepartment Scope = "department"
	ScopeAll        Scope = "all"
)

const (
	PermProductView Permission = "product.view"
	PermProductEdit Permission = "product.edit"

	PermSupplierView Permission = "supplier.view"
	PermSupplierEdit Permission = "supplier.edit"

	PermStockTransactionView   Permission = "stock.transaction.view"
	PermStockTransactionCreate Permission = "stock.transaction.create"
	PermInventoryAdjust        Permission = "inventory.adjust"

	PermPurchaseOrderCreate  Permission = "purchase_order.create"
	PermPurchaseOrderApprove Permission = "purchase_order.approve"

	PermRequisitionCreate  Permission = "requisition.create"
	PermRequisitionApprove Permission = "requisition.approve"

	PermReportViewOwn        Permission = "report.view.own"
	PermReportViewDepartment Permission = "report.view.department"
	PermReportViewAll        Permission = "report.view.all"

	PermUserView   Permission = "user.view"
	PermUserEdit   Permission = "user.edit"
	PermUserManage Permission = "user.manage"

	PermSettingsManage Permission = "settings.manage"

	// GST permissions are feature-flagged per tenant.
	PermGSTReportView Permission = "gst.report.view"
	PermGSTReportFile Permission = "gst.report.file"
)

// Set is an unordered permission collection with membership queries.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether the set grants the permission. Empty sets deny
// everything (fail-closed).
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether at least one of the permissions is granted.
func (s Set) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every permission is granted.
func (s Set) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the permissions in stable order for serialization.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted permissions as plain strings.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

// Convenience bundles. Call sites check bundles through the resolver output
// instead of re-deriving role comparisons locally.

// ApprovalPermissions are the capabilities that let a user sign off work.
func ApprovalPermissions() []Permission {
	return []Permission{PermRequisitionApprove, PermPurchaseOrderApprove}
}

// ReportPermissions are the scope-tiered report capabilities.
func ReportPermissions() []Permission {
	return []Permission{PermReportViewOwn, PermReportViewDepartment, PermReportViewAll}
}

// GSTPermissions are the tax-filing capabilities gated by the gst feature.
func GSTPermissions() []Permission {
	return []Permission{PermGSTReportView, PermGSTReportFile}
}

// CanApprove reports whether the set carries any approval capability.
func (s Set) CanApprove() bool {
	return s.HasAny(ApprovalPermissions()...)
}

// ReportScope returns the widest report scope the set grants, falling back to
// own-only when no report permission is present.
func (s Set) ReportScope() Scope {
	switch {
	case s.Has(PermReportViewAll):
		return ScopeAll
	case s.Has(PermReportViewDepartment):
		return ScopeDepartment
	default:
		return ScopeOwn
	}
}
