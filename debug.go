package lifetrack

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func (r *Registry) PrintStats() {
	r.FprintStats(os.Stdout)
}

// FprintStats writes one line per class. A filled marker means the class has
// active instances; a cross means some of them are orphaned.
func (r *Registry) FprintStats(w io.Writer) {
	stats := r.GlobalStats()

	if len(stats.Classes) == 0 {
		_, _ = fmt.Fprintln(w, "(no tracked classes)")
		return
	}

	for _, cls := range stats.Classes {
		status := "○"
		switch {
		case cls.Orphaned > 0:
			status = "✗"
		case cls.ActiveInstances > 0:
			status = "●"
		}

		_, _ = fmt.Fprintf(
			w, "%s %s created=%d deleted=%d active=%d pending=%d orphaned=%d\n",
			status, cls.ClassName, cls.TotalCreated, cls.TotalDeleted,
			cls.ActiveInstances, cls.PendingCollection, cls.Orphaned,
		)
	}

	_, _ = fmt.Fprintf(
		w, "classes=%d instances=%d active=%d\n",
		stats.TotalClasses, stats.TotalInstances, stats.ActiveInstances,
	)
}

func (r *Registry) SprintStats() string {
	var sb strings.Builder
	r.FprintStats(&sb)
	return sb.String()
}
