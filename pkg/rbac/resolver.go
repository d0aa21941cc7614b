package rbac

// Subject is an authenticated caller
type Subject interface {
	SubjectID() int64
	IsAdmin() bool
}

// Managed is a resource administered by a list of users, such as a franchise
type Managed interface {
	AdminIDs() []int64
}

// Reason explains a decision for logging. It is never sent to clients.
type Reason string

const (
	ReasonGlobalAdmin      Reason = "global_admin"
	ReasonFranchiseAdmin   Reason = "franchise_admin"
	ReasonSelf             Reason = "self"
	ReasonUnauthenticated  Reason = "unauthenticated"
	ReasonNotAdministrator Reason = "not_administrator"
	ReasonOtherUser        Reason = "other_user"
)

// Decision is the result of an authorization check
type Decision struct {
	Allowed bool
	Reason  Reason
}

// ResolveManage decides whether subject may manage resource: true iff the
// subject is a global admin or appears in the resource's admin list.
func ResolveManage(subject Subject, resource Managed) Decision {
	if subject == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if subject.IsAdmin() {
		return Decision{Allowed: true, Reason: ReasonGlobalAdmin}
	}
	if resource == nil {
		return Decision{Reason: ReasonNotAdministrator}
	}
	id := subject.SubjectID()
	for _, adminID := range resource.AdminIDs() {
		if adminID == id {
			return Decision{Allowed: true, Reason: ReasonFranchiseAdmin}
		}
	}
	return Decision{Reason: ReasonNotAdministrator}
}

// CanManage reports whether subject may mutate resource or see its admin view
func CanManage(subject Subject, resource Managed) bool {
	return ResolveManage(subject, resource).Allowed
}

// ResolveActForUser decides whether subject may read or change the account userID
func ResolveActForUser(subject Subject, userID int64) Decision {
	if subject == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if subject.SubjectID() == userID {
		return Decision{Allowed: true, Reason: ReasonSelf}
	}
	if subject.IsAdmin() {
		return Decision{Allowed: true, Reason: ReasonGlobalAdmin}
	}
	return Decision{Reason: ReasonOtherUser}
}

// CanActForUser reports whether subject is userID or a global admin
func CanActForUser(subject Subject, userID int64) bool {
	return ResolveActForUser(subject, userID).Allowed
}
