package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/opsgrove/snapsweep/internal/models"
)

// PrintReportTable prints one row per snapshot considered, in plan
// order: volume by volume, oldest snapshot first.
func PrintReportTable(out io.Writer, report *models.RunReport) {
	if len(report.Records) == 0 {
		fmt.Fprintln(out, "No snapshots found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SNAPSHOT ID\tVOLUME ID\tCREATED\tAGE\tSIZE\tDECISION\tREASON\tOUTCOME")
	for _, rec := range report.Records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d GiB\t%s\t%s\t%s\n",
			rec.SnapshotID,
			rec.VolumeID,
			rec.StartTime.Format("2006-01-02"),
			humanize.RelTime(rec.StartTime, report.StartedAt, "", ""),
			rec.SizeGB,
			rec.Decision,
			rec.Reason,
			rec.OutcomeString(),
		)
	}
	w.Flush()
}

// PrintRunSummary prints the aggregate counts and the kept-by-reason
// breakdown.
func PrintRunSummary(out io.Writer, report *models.RunReport) {
	mode := "live"
	if report.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(out, "\nRun completed at %s in %.2f seconds (%s)\n",
		report.StartedAt.Format("2006-01-02 15:04:05"),
		report.Duration.Seconds(),
		mode,
	)
	fmt.Fprintf(out, "Snapshots considered: %d\n", report.Summary.Considered)
	fmt.Fprintf(out, "  kept:         %d\n", report.Summary.Kept)
	if report.DryRun {
		fmt.Fprintf(out, "  would delete: %d\n", report.Summary.WouldDelete)
	} else {
		fmt.Fprintf(out, "  deleted:      %d\n", report.Summary.Deleted)
	}
	fmt.Fprintf(out, "  failed:       %d\n", report.Summary.Failed)

	if len(report.Summary.KeptByReason) > 0 {
		fmt.Fprintln(out, "\nKept by reason:")
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		for _, reason := range []models.Reason{
			models.ReasonCriticalVolume,
			models.ReasonProtectedTag,
			models.ReasonInUse,
			models.ReasonTooRecent,
			models.ReasonMinRetentionFloor,
		} {
			if n := report.Summary.KeptByReason[reason]; n > 0 {
				fmt.Fprintf(w, "  %s\t%d\n", reason, n)
			}
		}
		w.Flush()
	}
}
