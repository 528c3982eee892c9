package lifetrack

import "fmt"

// IDScheme selects how instance identifiers are sequenced.
type IDScheme int

const (
	// PerClassIDs numbers each class independently, starting at 1.
	PerClassIDs IDScheme = iota
	// GlobalIDs draws every identifier from one registry-wide sequence.
	GlobalIDs
)

func (s IDScheme) String() string {
	switch s {
	case PerClassIDs:
		return "per-class"
	case GlobalIDs:
		return "global"
	default:
		return "unknown"
	}
}

func ParseIDScheme(s string) (IDScheme, error) {
	switch s {
	case "", "per-class":
		return PerClassIDs, nil
	case "global":
		return GlobalIDs, nil
	default:
		return 0, fmt.Errorf("unknown id scheme %q", s)
	}
}

// OrphanPolicy decides what FindOrphans does with the records it reports.
type OrphanPolicy int

const (
	// ReportOrphans leaves orphan records active; they are reported by every
	// scan until they are retired.
	ReportOrphans OrphanPolicy = iota
	// RetireOrphans retires each orphan as it is reported and flags the
	// record as orphaned.
	RetireOrphans
)

func (p OrphanPolicy) String() string {
	switch p {
	case ReportOrphans:
		return "report"
	case RetireOrphans:
		return "retire"
	default:
		return "unknown"
	}
}

func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch s {
	case "", "report":
		return ReportOrphans, nil
	case "retire":
		return RetireOrphans, nil
	default:
		return 0, fmt.Errorf("unknown orphan policy %q", s)
	}
}

type CloseStatus int

const (
	Closed CloseStatus = iota + 1
	// RedundantClose is returned when the record was already retired. It is
	// not an error.
	RedundantClose
)

func (s CloseStatus) String() string {
	switch s {
	case Closed:
		return "closed"
	case RedundantClose:
		return "redundant"
	default:
		return "unknown"
	}
}
