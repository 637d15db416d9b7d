package domain

// Availability is a laborer's dispatch eligibility.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityBusy        Availability = "busy"
	AvailabilityUnavailable Availability = "unavailable"
)

// Valid reports whether a is a known availability value.
func (a Availability) Valid() bool {
	return a == AvailabilityAvailable || a == AvailabilityBusy || a == AvailabilityUnavailable
}

// LaborerProfile is the slice of a worker profile the dispatcher reads.
type LaborerProfile struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Skills       []string     `json:"skills" db:"-"`
	Availability Availability `json:"availability" db:"availability"`
}

// HasSkill reports whether the profile lists skill.
func (p *LaborerProfile) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
