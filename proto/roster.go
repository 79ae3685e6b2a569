package proto

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// A RosterEntry is the last reported position of one visible user. The
// id is an opaque per-user key chosen by the client; ProfilePicturePath
// is an opaque pointer resolved by an external image pipeline and never
// interpreted by the hub.
type RosterEntry struct {
	ID                 string  `json:"id" validate:"required"`
	Name               string  `json:"name"`
	Lat                float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng                float64 `json:"lng" validate:"gte=-180,lte=180"`
	ProfilePicturePath string  `json:"profilePicturePath,omitempty"`
}

// Validate rejects reports with a missing id or out-of-range
// coordinates before they can reach the roster.
func (e *RosterEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidReport, err)
	}
	return nil
}

// A Roster maps ids to their last-known entries. At most one entry per
// id.
type Roster map[string]RosterEntry

func (r Roster) Clone() Roster {
	clone := make(Roster, len(r))
	for id, entry := range r {
		clone[id] = entry
	}
	return clone
}

type Listing []RosterEntry

func (l Listing) Len() int           { return len(l) }
func (l Listing) Less(i, j int) bool { return l[i].ID < l[j].ID }
func (l Listing) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

// Listing returns the roster's entries sorted by id.
func (r Roster) Listing() Listing {
	listing := make(Listing, 0, len(r))
	for _, entry := range r {
		listing = append(listing, entry)
	}
	sort.Sort(listing)
	return listing
}
