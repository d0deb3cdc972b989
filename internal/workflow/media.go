package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/internal/draft"
	"github.com/prohmpiriya/event-studio/pkg/telemetry"
)

// resolveMedia uploads every pending item concurrently and returns the
// remote references in media order. It returns only after every started
// upload has settled. On failure refs holds the references of the uploads
// that did succeed and "" for the rest.
func (e *Engine) resolveMedia(ctx context.Context, d *draft.Draft) (refs []string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "workflow.resolve_media")
	defer func() { telemetry.EndSpan(span, err) }()

	refs = make([]string, len(d.Media))
	if len(d.Media) == 0 {
		return refs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.UploadConcurrency > 0 {
		g.SetLimit(e.opts.UploadConcurrency)
	}

	for i, m := range d.Media {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref, err := e.gw.UploadMedia(gctx, m.Item())
			e.recordUpload(gctx, err)
			if err != nil {
				return domain.WrapError(domain.KindUploadFailed, err, fmt.Sprintf("uploading %q", m.Name))
			}
			refs[i] = ref
			e.log.DebugContext(gctx, "media uploaded",
				zap.String("handle", m.Handle),
				zap.String("ref", ref),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if domain.KindOf(err) != domain.KindUploadFailed {
			// Cancelled before the upload started
			err = domain.WrapError(domain.KindUploadFailed, err, "media upload aborted")
		}
		return refs, err
	}
	return refs, nil
}

func (e *Engine) recordUpload(ctx context.Context, err error) {
	if e.opts.Metrics == nil {
		return
	}
	e.opts.Metrics.MediaUploads.Inc(ctx, telemetry.OutcomeAttr(err))
}
