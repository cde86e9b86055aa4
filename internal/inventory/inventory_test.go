package inventory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ferry/pkg/instance"
)

// fakeSource serves canned pages keyed by bucket, then by token.
type fakeSource struct {
	zones     []string
	zonesErr  error
	instances []instance.Instance
	instErr   error
	buckets   []string
	bucketErr error
	pages     map[string]map[string]ObjectPage
	listErr   error

	calls []string
}

func (f *fakeSource) AvailabilityZones(context.Context) ([]string, error) {
	return f.zones, f.zonesErr
}

func (f *fakeSource) Instances(context.Context) ([]instance.Instance, error) {
	return f.instances, f.instErr
}

func (f *fakeSource) Buckets(context.Context) ([]string, error) {
	return f.buckets, f.bucketErr
}

func (f *fakeSource) ListObjects(_ context.Context, bucket, token string) (ObjectPage, error) {
	f.calls = append(f.calls, bucket+"|"+token)
	if f.listErr != nil {
		return ObjectPage{}, f.listErr
	}
	return f.pages[bucket][token], nil
}

func TestSumObjects_FollowsTruncation(t *testing.T) {
	src := &fakeSource{pages: map[string]map[string]ObjectPage{
		"b1": {
			"":   {Sizes: []int64{10, 20}, Truncated: true, NextToken: "t1"},
			"t1": {Sizes: []int64{5}},
		},
	}}

	u, err := SumObjects(context.Background(), src, []string{"b1"})

	require.NoError(t, err)
	assert.Equal(t, int64(3), u.Objects)
	assert.Equal(t, int64(35), u.Bytes)
	assert.Equal(t, 2, u.Pages)
	assert.Equal(t, []string{"b1|", "b1|t1"}, src.calls)
}

func TestSumObjects_MultipleBuckets(t *testing.T) {
	src := &fakeSource{pages: map[string]map[string]ObjectPage{
		"a":     {"": {Sizes: []int64{1, 2, 3}}},
		"b":     {"": {Sizes: []int64{100}, Truncated: true, NextToken: "n"}, "n": {Sizes: []int64{1}, Truncated: true, NextToken: "m"}, "m": {}},
		"empty": {"": {}},
	}}

	u, err := SumObjects(context.Background(), src, []string{"a", "b", "empty"})

	require.NoError(t, err)
	assert.Equal(t, int64(5), u.Objects)
	assert.Equal(t, int64(107), u.Bytes)
	assert.Equal(t, 5, u.Pages)
}

func TestSumObjects_TruncatedWithoutToken(t *testing.T) {
	src := &fakeSource{pages: map[string]map[string]ObjectPage{
		"b": {"": {Sizes: []int64{4}, Truncated: true}},
	}}

	u, err := SumObjects(context.Background(), src, []string{"b"})

	require.NoError(t, err)
	assert.Equal(t, 1, u.Pages)
	assert.Equal(t, int64(4), u.Bytes)
}

func TestSumObjects_Error(t *testing.T) {
	src := &fakeSource{listErr: errors.New("access denied")}

	_, err := SumObjects(context.Background(), src, []string{"locked"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.Contains(t, err.Error(), "access denied")
}

func TestCountInstances(t *testing.T) {
	c := CountInstances([]instance.Instance{
		{ID: "i-1", State: instance.Running},
		{ID: "i-2", State: instance.Stopped},
		{ID: "i-3", State: instance.Terminated},
		{ID: "i-1", State: instance.Running},
	})

	assert.Equal(t, 2, c.Active)
	assert.Equal(t, 1, c.Terminated)
}

func TestCollect(t *testing.T) {
	src := &fakeSource{
		zones:     []string{"us-east-1a", "us-east-1b"},
		instances: []instance.Instance{{ID: "i-1", State: instance.Running}, {ID: "i-2", State: instance.Terminated}},
		buckets:   []string{"b1"},
		pages: map[string]map[string]ObjectPage{
			"b1": {"": {Sizes: []int64{10, 20}, Truncated: true, NextToken: "t"}, "t": {Sizes: []int64{5}}},
		},
	}

	r := Collect(context.Background(), src, "us-east-1")

	assert.True(t, r.Complete())
	assert.Equal(t, 2, r.Zones)
	assert.Equal(t, InstanceCounts{Active: 1, Terminated: 1}, r.Instances)
	assert.Equal(t, 1, r.Buckets)
	assert.Equal(t, int64(3), r.Usage.Objects)
	assert.Equal(t, int64(35), r.Usage.Bytes)
}

func TestCollect_BestEffort(t *testing.T) {
	src := &fakeSource{
		zonesErr:  errors.New("zones down"),
		instances: []instance.Instance{{ID: "i-1", State: instance.Stopped}},
		bucketErr: errors.New("s3 down"),
	}

	r := Collect(context.Background(), src, "eu-west-1")

	assert.False(t, r.Complete())
	assert.Contains(t, r.Unavailable, SectionZones)
	assert.Contains(t, r.Unavailable, SectionBuckets)
	assert.Contains(t, r.Unavailable, SectionObjects)
	assert.NotContains(t, r.Unavailable, SectionInstances)
	assert.Equal(t, 1, r.Instances.Active)
	assert.Empty(t, src.calls)
}

func TestReport_Render(t *testing.T) {
	r := Report{
		Region:      "us-east-1",
		Zones:       6,
		Instances:   InstanceCounts{Active: 2, Terminated: 1},
		Buckets:     3,
		Usage:       Usage{Objects: 3, Bytes: 35},
		Unavailable: map[string]error{},
	}

	var buf bytes.Buffer
	r.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "Inventory us-east-1")
	assert.Contains(t, out, "Availability zones")
	assert.Contains(t, out, "35")
	assert.NotContains(t, out, "n/a")
}

func TestReport_RenderUnavailable(t *testing.T) {
	r := Report{
		Region:      "us-east-1",
		Unavailable: map[string]error{SectionObjects: errors.New("denied")},
	}

	var buf bytes.Buffer
	r.Render(&buf)

	assert.Contains(t, buf.String(), "n/a")
}
