package inventory

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report sections, used as keys of Report.Unavailable.
const (
	SectionZones     = "zones"
	SectionInstances = "instances"
	SectionBuckets   = "buckets"
	SectionObjects   = "objects"
)

// Report is the end-of-run account inventory.
type Report struct {
	Region    string
	Zones     int
	Instances InstanceCounts
	Buckets   int
	Usage     Usage

	// Unavailable maps a section to the error that prevented collecting it.
	Unavailable map[string]error
}

// Complete reports whether every section was collected.
func (r Report) Complete() bool {
	return len(r.Unavailable) == 0
}

func (r Report) value(section string, n int64) string {
	if _, missing := r.Unavailable[section]; missing {
		return "n/a"
	}
	return strconv.FormatInt(n, 10)
}

// Render writes the report as a table.
func (r Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Inventory " + r.Region)
	t.AppendHeader(table.Row{"Resource", "Count"})
	t.AppendRows([]table.Row{
		{"Availability zones", r.value(SectionZones, int64(r.Zones))},
		{"EC2 instances (active)", r.value(SectionInstances, int64(r.Instances.Active))},
		{"EC2 instances (terminated)", r.value(SectionInstances, int64(r.Instances.Terminated))},
		{"S3 buckets", r.value(SectionBuckets, int64(r.Buckets))},
		{"S3 objects", r.value(SectionObjects, r.Usage.Objects)},
		{"S3 bytes", r.value(SectionObjects, r.Usage.Bytes)},
	})
	t.Render()
}
