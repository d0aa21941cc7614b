// Package franchises manages franchises and their stores.
//
// A franchise is administered by a list of users. Global admins create and
// delete franchises; anyone who can manage a franchise (a global admin or one
// of its listed administrators, see rbac.CanManage) opens and closes its
// stores. Listing is public, but only managers see a franchise's admins and
// per-store revenue.
package franchises
