package memory

// Bucket is one named section of a Snapshot as persisted by the durable
// stores. Target points into the snapshot so it can be encoded or decoded
// in place.
type Bucket struct {
	Name   string
	Target any
}

// Buckets returns the persisted sections of s in a stable order.
func (s *Snapshot) Buckets() []Bucket {
	return []Bucket{
		{Name: "clients", Target: &s.Clients},
		{Name: "employment", Target: &s.Employment},
		{Name: "active_income", Target: &s.ActiveIncome},
		{Name: "assets", Target: &s.Assets},
		{Name: "real_estate", Target: &s.RealEstate},
		{Name: "former_addresses", Target: &s.FormerAddresses},
		{Name: "seq", Target: &s.Seq},
	}
}
