// Package report renders registry statistics for humans and machines.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/danpasecinic/lifetrack"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatCBOR}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

type Report struct {
	GeneratedAt time.Time                `json:"generated_at" yaml:"generated_at"`
	Stats       lifetrack.GlobalStats    `json:"stats" yaml:"stats"`
	Orphans     []lifetrack.InstanceRef  `json:"orphans" yaml:"orphans"`
	Health      []lifetrack.HealthReport `json:"health" yaml:"health"`
}

// Collect takes statistics first and runs the orphan scan second, so under
// RetireOrphans the stats still show the orphans the scan then retires.
func Collect(ctx context.Context, r *lifetrack.Registry) Report {
	return Report{
		GeneratedAt: time.Now().UTC(),
		Stats:       r.GlobalStatsCtx(ctx),
		Health:      r.Health(),
		Orphans:     r.FindOrphansCtx(ctx),
	}
}

var cborEncMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func Write(w io.Writer, format Format, rep Report) error {
	switch format {
	case FormatText, "":
		return writeText(w, rep)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("report: encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCBOR:
		data, err := cborEncMode.Marshal(rep)
		if err != nil {
			return fmt.Errorf("report: encode cbor: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// Read decodes a report previously produced by Write. Text is not readable.
func Read(r io.Reader, format Format) (Report, error) {
	var rep Report
	var err error

	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&rep)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&rep)
	case FormatCBOR:
		err = cbor.NewDecoder(r).Decode(&rep)
	default:
		return Report{}, fmt.Errorf("report: cannot decode format %q", format)
	}
	if err != nil {
		return Report{}, fmt.Errorf("report: decode %s: %w", format, err)
	}
	return rep, nil
}

func writeText(w io.Writer, rep Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "registry\t%s\n", rep.Stats.RegistryID)
	_, _ = fmt.Fprintf(
		tw, "classes\t%d\tinstances\t%d\tactive\t%d\torphaned\t%d\n",
		rep.Stats.TotalClasses, rep.Stats.TotalInstances, rep.Stats.ActiveInstances, rep.Stats.Orphaned,
	)
	_, _ = fmt.Fprintln(tw)
	_, _ = fmt.Fprintln(tw, "CLASS\tCREATED\tDELETED\tACTIVE\tPENDING\tORPHANED")
	for _, cls := range rep.Stats.Classes {
		_, _ = fmt.Fprintf(
			tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			cls.ClassName, cls.TotalCreated, cls.TotalDeleted,
			cls.ActiveInstances, cls.PendingCollection, cls.Orphaned,
		)
	}

	if len(rep.Orphans) > 0 {
		_, _ = fmt.Fprintln(tw)
		_, _ = fmt.Fprintln(tw, "ORPHANS")
		for _, ref := range rep.Orphans {
			_, _ = fmt.Fprintln(tw, ref.String())
		}
	}

	return tw.Flush()
}
