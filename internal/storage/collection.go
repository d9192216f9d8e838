package storage

import "fmt"

// Collection tags which logical table a record belongs to. Backends route on
// the tag, never on handle identity.
type Collection int

const (
	Donors Collection = iota + 1
	Requestors
	Requests
	Donations
	Inventory
)

// Collections lists every collection in declaration order.
var Collections = []Collection{Donors, Requestors, Requests, Donations, Inventory}

var collectionNames = map[Collection]string{
	Donors:     "donors",
	Requestors: "requestors",
	Requests:   "blood_requests",
	Donations:  "donations",
	Inventory:  "blood_inventory",
}

var collectionKeys = map[Collection]string{
	Donors:     "donor_id",
	Requestors: "requestor_id",
	Requests:   "request_id",
	Donations:  "donation_id",
	Inventory:  "blood_group",
}

func (c Collection) String() string {
	if name, ok := collectionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("collection(%d)", int(c))
}

// KeyField names the natural identity field of records in the collection.
func (c Collection) KeyField() string {
	return collectionKeys[c]
}

// Valid reports whether c is one of the declared collections.
func (c Collection) Valid() bool {
	_, ok := collectionNames[c]
	return ok
}

// ParseCollection resolves a collection from its stable name.
func ParseCollection(name string) (Collection, error) {
	for c, n := range collectionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown collection %q", name)
}
