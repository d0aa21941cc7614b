package franchises

import "encoding/json"

// Admin is a user who administers a franchise
type Admin struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store is a location belonging to exactly one franchise. TotalRevenue is
// computed from the orders placed at the store and only shown to the
// franchise's administrators.
type Store struct {
	ID           int64    `json:"id"`
	FranchiseID  int64    `json:"-"`
	Name         string   `json:"name"`
	TotalRevenue *float64 `json:"totalRevenue,omitempty"`
}

// Franchise is a named business administered by a list of users. The admin
// view always carries "admins"; the public view never does.
type Franchise struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Admins []Admin  `json:"admins"`
	Stores []*Store `json:"stores"`

	public bool
}

type publicFranchise struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Stores []*Store `json:"stores"`
}

// MarshalJSON renders the public or admin view
func (f *Franchise) MarshalJSON() ([]byte, error) {
	stores := f.Stores
	if stores == nil {
		stores = []*Store{}
	}
	if f.public {
		return json.Marshal(publicFranchise{ID: f.ID, Name: f.Name, Stores: stores})
	}
	admins := f.Admins
	if admins == nil {
		admins = []Admin{}
	}
	type adminView Franchise
	return json.Marshal(&adminView{ID: f.ID, Name: f.Name, Admins: admins, Stores: stores})
}

// AdminIDs returns the ids of the franchise administrators, satisfying rbac.Managed
func (f *Franchise) AdminIDs() []int64 {
	ids := make([]int64, 0, len(f.Admins))
	for _, a := range f.Admins {
		ids = append(ids, a.ID)
	}
	return ids
}

// PublicView strips the administrator list and store revenue
func (f *Franchise) PublicView() *Franchise {
	stores := make([]*Store, 0, len(f.Stores))
	for _, s := range f.Stores {
		stores = append(stores, &Store{ID: s.ID, FranchiseID: s.FranchiseID, Name: s.Name})
	}
	return &Franchise{ID: f.ID, Name: f.Name, Stores: stores, public: true}
}

// ListQuery pages through franchises. NameFilter supports '*' as a wildcard.
type ListQuery struct {
	Page       int
	Limit      int
	NameFilter string
}

// FranchiseList is the body of GET /api/franchise
type FranchiseList struct {
	Franchises []*Franchise `json:"franchises"`
	More       bool         `json:"more"`
}

// AdminRef names a prospective administrator by email
type AdminRef struct {
	Email string `json:"email"`
}

// CreateFranchiseRequest is the body of POST /api/franchise
type CreateFranchiseRequest struct {
	Name   string     `json:"name"`
	Admins []AdminRef `json:"admins"`
}

// CreateStoreRequest is the body of POST /api/franchise/{franchiseId}/store
type CreateStoreRequest struct {
	Name string `json:"name"`
}
