package lifetrack

import (
	"fmt"
	"time"

	"github.com/danpasecinic/lifetrack/internal/ledger"
)

type ClassStats struct {
	ClassName         string `json:"class_name" yaml:"class_name"`
	TotalCreated      uint64 `json:"total_created" yaml:"total_created"`
	TotalDeleted      uint64 `json:"total_deleted" yaml:"total_deleted"`
	ActiveInstances   uint64 `json:"active_instances" yaml:"active_instances"`
	PendingCollection int    `json:"pending_collection" yaml:"pending_collection"`
	Orphaned          int    `json:"orphaned" yaml:"orphaned"`
}

type GlobalStats struct {
	RegistryID      string       `json:"registry_id" yaml:"registry_id"`
	TotalClasses    int          `json:"total_classes" yaml:"total_classes"`
	TotalInstances  uint64       `json:"total_instances" yaml:"total_instances"`
	ActiveInstances uint64       `json:"active_instances" yaml:"active_instances"`
	Orphaned        int          `json:"orphaned" yaml:"orphaned"`
	Classes         []ClassStats `json:"classes" yaml:"classes"`
}

type Metadata struct {
	Class     string     `json:"class" yaml:"class"`
	ID        uint64     `json:"id" yaml:"id"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
	Active    bool       `json:"is_active" yaml:"is_active"`
	Reachable bool       `json:"reachable" yaml:"reachable"`
	Orphaned  bool       `json:"orphaned" yaml:"orphaned"`
}

type InstanceRef struct {
	Class string `json:"class" yaml:"class"`
	ID    uint64 `json:"id" yaml:"id"`
}

func (r InstanceRef) String() string {
	return fmt.Sprintf("%s#%d", r.Class, r.ID)
}

func classStatsFrom(s ledger.Stats) ClassStats {
	return ClassStats{
		ClassName:         s.Class,
		TotalCreated:      s.TotalCreated,
		TotalDeleted:      s.TotalDeleted,
		ActiveInstances:   s.ActiveInstances,
		PendingCollection: s.PendingCollection,
		Orphaned:          s.Orphaned,
	}
}

func aggregate(registryID string, stats []ledger.Stats) GlobalStats {
	g := GlobalStats{
		RegistryID:   registryID,
		TotalClasses: len(stats),
		Classes:      make([]ClassStats, 0, len(stats)),
	}
	for _, s := range stats {
		g.TotalInstances += s.TotalCreated
		g.ActiveInstances += s.ActiveInstances
		g.Orphaned += s.Orphaned
		g.Classes = append(g.Classes, classStatsFrom(s))
	}
	return g
}

func metadataFrom(s ledger.Snapshot) Metadata {
	m := Metadata{
		Class:     s.Class,
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Active:    s.Active,
		Reachable: s.Reachable,
		Orphaned:  s.Orphaned,
	}
	if !s.DeletedAt.IsZero() {
		deleted := s.DeletedAt
		m.DeletedAt = &deleted
	}
	return m
}
