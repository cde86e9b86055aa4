// Package workflow runs ferry's steps in order: upload, notify, manager check, inventory report.
package workflow

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yairfalse/ferry/internal/fault"
	"github.com/yairfalse/ferry/internal/inventory"
	"github.com/yairfalse/ferry/internal/manager"
	"github.com/yairfalse/ferry/internal/telemetry"
)

// Storage uploads objects.
type Storage interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutFile(ctx context.Context, bucket, key, path string, publicRead bool) error
}

// Queue delivers notifications.
type Queue interface {
	EnsureQueue(ctx context.Context, name string) (string, error)
	LookupQueue(ctx context.Context, name string) (string, error)
	SendMessage(ctx context.Context, queueURL, body string) (string, error)
}

// Cloud is every provider capability a run touches.
type Cloud interface {
	Storage
	Queue
	manager.Compute
	inventory.Source
	Region() string
}

// Runner executes runs against one cloud.
type Runner struct {
	cloud     Cloud
	policy    *manager.Policy
	telemetry *telemetry.Provider
	out       io.Writer
}

// NewRunner creates a Runner. The inventory report is written to out.
func NewRunner(cloud Cloud, policy *manager.Policy, tel *telemetry.Provider, out io.Writer) *Runner {
	return &Runner{
		cloud:     cloud,
		policy:    policy,
		telemetry: tel,
		out:       out,
	}
}

// Run uploads the file, notifies the queue, checks the manager and prints the report.
// A fatal step failure skips everything after it.
func (r *Runner) Run(ctx context.Context, rc *RunContext) *Result {
	res := &Result{StartTime: time.Now()}

	log.Info().
		Str("file", rc.FilePath).
		Str("bucket", rc.Bucket).
		Str("key", rc.Key).
		Str("queue", rc.QueueName).
		Str("region", r.cloud.Region()).
		Msg("starting run")

	if rc.CreateBucket {
		r.step(ctx, res, StepEnsureBucket, Recoverable, func(ctx context.Context) error {
			return r.cloud.EnsureBucket(ctx, rc.Bucket)
		})
	}

	if !r.step(ctx, res, StepUpload, Fatal, func(ctx context.Context) error {
		return r.upload(ctx, rc)
	}) {
		return r.abort(res)
	}

	if !r.step(ctx, res, StepNotify, Fatal, func(ctx context.Context) error {
		return r.notify(ctx, rc, res)
	}) {
		return r.abort(res)
	}

	r.checkManager(ctx, res)
	r.report(ctx, res)

	return r.finish(res)
}

// Manager runs only the manager check.
func (r *Runner) Manager(ctx context.Context) *Result {
	res := &Result{StartTime: time.Now()}
	r.checkManager(ctx, res)
	return r.finish(res)
}

// Inventory runs only the inventory report.
func (r *Runner) Inventory(ctx context.Context) *Result {
	res := &Result{StartTime: time.Now()}
	r.report(ctx, res)
	return r.finish(res)
}

func (r *Runner) upload(ctx context.Context, rc *RunContext) error {
	if err := r.cloud.PutFile(ctx, rc.Bucket, rc.Key, rc.FilePath, rc.PublicRead); err != nil {
		return fmt.Errorf("upload %s to s3://%s/%s: %w", rc.FilePath, rc.Bucket, rc.Key, err)
	}
	log.Info().
		Ctx(ctx).
		Str("bucket", rc.Bucket).
		Str("key", rc.Key).
		Bool("public_read", rc.PublicRead).
		Msg("file uploaded")
	return nil
}

func (r *Runner) notify(ctx context.Context, rc *RunContext, res *Result) error {
	if rc.QueueURL == "" {
		var (
			url string
			err error
		)
		if rc.CreateQueue {
			url, err = r.cloud.EnsureQueue(ctx, rc.QueueName)
		} else {
			url, err = r.cloud.LookupQueue(ctx, rc.QueueName)
		}
		if err != nil {
			return fmt.Errorf("resolve queue %s: %w", rc.QueueName, err)
		}
		rc.QueueURL = url
	}

	id, err := r.cloud.SendMessage(ctx, rc.QueueURL, rc.Key)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	res.MessageID = id

	log.Info().
		Ctx(ctx).
		Str("queue_url", rc.QueueURL).
		Str("message_id", id).
		Str("key", rc.Key).
		Msg("notification sent")
	return nil
}

func (r *Runner) checkManager(ctx context.Context, res *Result) {
	r.step(ctx, res, StepManager, Recoverable, func(ctx context.Context) error {
		mres, err := r.policy.Ensure(ctx)
		if mres.Action != "" {
			res.Manager = &mres
			r.telemetry.RecordManagerAction(ctx, string(mres.Action), mres.DryRun)
		}
		return err
	})
}

func (r *Runner) report(ctx context.Context, res *Result) {
	r.step(ctx, res, StepReport, BestEffort, func(ctx context.Context) error {
		rep := inventory.Collect(ctx, r.cloud, r.cloud.Region())
		res.Report = &rep
		rep.Render(r.out)

		if _, missing := rep.Unavailable[inventory.SectionObjects]; !missing {
			r.telemetry.RecordObjects(ctx, rep.Region, rep.Usage.Objects)
		}
		if !rep.Complete() {
			return fmt.Errorf("report incomplete: %d sections unavailable", len(rep.Unavailable))
		}
		return nil
	})
}

// step runs fn in its own span, records it, and reports whether the run may continue.
func (r *Runner) step(ctx context.Context, res *Result, name string, sev Severity, fn func(context.Context) error) bool {
	ctx, span := r.telemetry.StartSpan(ctx, "ferry."+name, attribute.String("severity", sev.String()))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	r.telemetry.RecordStep(ctx, name, sev.String(), elapsed, err)
	res.Steps = append(res.Steps, StepResult{Name: name, Severity: sev, Duration: elapsed, Err: err})

	if err == nil {
		log.Debug().Ctx(ctx).Str("step", name).Dur("duration", elapsed).Msg("step complete")
		return true
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var event *zerolog.Event
	if sev == BestEffort {
		event = log.Warn()
	} else {
		event = log.Error()
	}
	fault.Annotate(event.Ctx(ctx), err).
		Str("step", name).
		Str("severity", sev.String()).
		Dur("duration", elapsed).
		Msg("step failed")

	return sev != Fatal
}

func (r *Runner) abort(res *Result) *Result {
	res.Aborted = true
	return r.finish(res)
}

func (r *Runner) finish(res *Result) *Result {
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)

	log.Info().
		Int("steps", len(res.Steps)).
		Bool("failed", res.Failed()).
		Bool("aborted", res.Aborted).
		Dur("duration", res.Duration).
		Msg("run complete")

	return res
}
