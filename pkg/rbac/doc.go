// Package rbac holds the authorization decisions shared by every handler.
//
// There are three tiers: global admins, franchise admins (franchisees scoped
// to one franchise) and everyone else, who may only act on their own account.
// The checks are pure functions of a Subject and a resource snapshot so that
// sibling endpoints cannot drift apart:
//
//	if !rbac.CanManage(identity, franchise) {
//		return apperrors.Forbidden("unable to create a store")
//	}
package rbac
