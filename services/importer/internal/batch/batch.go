package batch

import (
	"context"
	"log/slog"

	"github.com/02loveslollipop/estufa-iot/services/api/ingest"
	"github.com/02loveslollipop/estufa-iot/services/api/validation"
	"github.com/02loveslollipop/estufa-iot/services/importer/internal/source"
)

// Ingester is the part of ingest.Service the importer needs.
type Ingester interface {
	Submit(ctx context.Context, raw []byte) (ingest.Receipt, error)
	Check(raw []byte) (*validation.Document, error)
}

// Outcome is the result for one document.
type Outcome struct {
	Name string
	ID   string
	Kind validation.Kind
	Err  error
}

// Summary counts outcomes over a run.
type Summary struct {
	Accepted int
	Rejected int
	Failed   int
	Outcomes []Outcome
}

// OK reports whether every document was accepted.
func (s Summary) OK() bool {
	return s.Rejected == 0 && s.Failed == 0
}

// Importer submits documents one at a time.
type Importer struct {
	svc    Ingester
	dryRun bool
	log    *slog.Logger
	sum    Summary
}

// New returns an importer. In dry-run mode documents are only validated.
func New(svc Ingester, dryRun bool, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{svc: svc, dryRun: dryRun, log: log}
}

// Import processes one document and records its outcome.
func (im *Importer) Import(ctx context.Context, doc source.Document) Outcome {
	out := Outcome{Name: doc.Name}

	if im.dryRun {
		if _, err := im.svc.Check(doc.Raw); err != nil {
			out.Err = err
		}
	} else {
		receipt, err := im.svc.Submit(ctx, doc.Raw)
		out.ID = receipt.ID
		out.Err = err
	}
	out.Kind = validation.KindOf(out.Err)

	im.record(out)
	return out
}

// Fail records a document that could not be read at all.
func (im *Importer) Fail(name string, err error) {
	im.record(Outcome{Name: name, Err: err})
}

// Summary returns the counts so far.
func (im *Importer) Summary() Summary {
	return im.sum
}

func (im *Importer) record(out Outcome) {
	im.sum.Outcomes = append(im.sum.Outcomes, out)

	switch {
	case out.Err == nil:
		im.sum.Accepted++
		if im.dryRun {
			im.log.Info("dry-run: document valid", slog.String("file", out.Name))
		} else {
			im.log.Info("document imported", slog.String("file", out.Name), slog.String("id", out.ID))
		}
	case out.Kind != "" && validation.ClientFault(out.Kind):
		im.sum.Rejected++
		im.log.Warn("document rejected", slog.String("file", out.Name), slog.String("kind", string(out.Kind)), slog.String("reason", out.Err.Error()))
	default:
		im.sum.Failed++
		im.log.Error("document failed", slog.String("file", out.Name), slog.Any("error", out.Err))
	}
}
