// Package inventory counts instances, buckets and stored objects for the end-of-run report.
package inventory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ferry/internal/fault"
	"github.com/yairfalse/ferry/pkg/instance"
)

// ObjectPage is one page of an object listing.
type ObjectPage struct {
	Sizes     []int64
	Truncated bool
	NextToken string
}

// ObjectLister fetches object listing pages. An empty token requests the first page.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucket, token string) (ObjectPage, error)
}

// Source is everything the report reads from.
type Source interface {
	ObjectLister
	AvailabilityZones(ctx context.Context) ([]string, error)
	Instances(ctx context.Context) ([]instance.Instance, error)
	Buckets(ctx context.Context) ([]string, error)
}

// Usage is the aggregate object storage usage across buckets.
type Usage struct {
	Objects int64
	Bytes   int64
	Pages   int
}

// InstanceCounts splits a snapshot into live and terminated instances.
type InstanceCounts struct {
	Active     int
	Terminated int
}

// CountInstances counts distinct instances by lifecycle.
func CountInstances(instances []instance.Instance) InstanceCounts {
	var c InstanceCounts
	instance.NewSnapshot(instances).Each(func(i instance.Instance) bool {
		if i.Terminated() {
			c.Terminated++
		} else {
			c.Active++
		}
		return true
	})
	return c
}

// SumObjects walks every page of every bucket and adds up object count and size.
// Paging stops when the provider reports no truncation or hands back no token.
func SumObjects(ctx context.Context, lister ObjectLister, buckets []string) (Usage, error) {
	var u Usage

	for _, bucket := range buckets {
		token := ""
		for {
			page, err := lister.ListObjects(ctx, bucket, token)
			if err != nil {
				return u, fmt.Errorf("list objects in %s: %w", bucket, err)
			}
			u.Pages++

			for _, size := range page.Sizes {
				u.Objects++
				u.Bytes += size
			}

			if !page.Truncated || page.NextToken == "" {
				break
			}
			token = page.NextToken
		}
	}

	return u, nil
}

// Collect gathers a Report. Collection is best-effort: a failed listing is
// logged and its section marked unavailable while the rest still fills in.
func Collect(ctx context.Context, src Source, region string) Report {
	r := Report{Region: region, Unavailable: make(map[string]error)}

	zones, err := src.AvailabilityZones(ctx)
	if err != nil {
		r.markUnavailable(SectionZones, err)
	} else {
		r.Zones = len(zones)
	}

	instances, err := src.Instances(ctx)
	if err != nil {
		r.markUnavailable(SectionInstances, err)
	} else {
		r.Instances = CountInstances(instances)
	}

	buckets, err := src.Buckets(ctx)
	if err != nil {
		r.markUnavailable(SectionBuckets, err)
		r.markUnavailable(SectionObjects, err)
		return r
	}
	r.Buckets = len(buckets)

	usage, err := SumObjects(ctx, src, buckets)
	if err != nil {
		r.markUnavailable(SectionObjects, err)
	} else {
		r.Usage = usage
	}

	return r
}

func (r *Report) markUnavailable(section string, err error) {
	r.Unavailable[section] = err
	fault.Annotate(log.Warn(), err).Str("section", section).Msg("inventory section unavailable")
}
