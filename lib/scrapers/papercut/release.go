package papercut

import (
	"context"
	"fmt"
	"strings"
	"time"
	"tsprint/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const releaseJobsPage = "/app?service=page/UserReleaseJobs"

var (
	ErrNoPrinterAvailable = fmt.Errorf("no available printer found")
	ErrJobNotFound        = fmt.Errorf("job did not appear in the release queue")
)

// Job is a held document waiting in the release queue. ReleaseHref
// points at the page listing the release stations it can go to.
type Job struct {
	Name        string
	ReleaseHref string
}

// Printer is a physical release station as listed on a job's release
// page. Status is the raw status cell text, "OK" marks it available.
type Printer struct {
	Name   string
	Status string
	Href   string
}

func (p Printer) Available() bool {
	return strings.Contains(p.Status, "OK")
}

// PendingJobs lists the documents currently held in the release
// queue, in page order.
func (c *Client) PendingJobs(ctx context.Context) ([]Job, error) {
	ctx, span := tracer.Start(ctx, "client:PendingJobs")
	defer span.End()

	doc, _, err := c.getDocument(ctx, releaseJobsPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch release queue")
		return nil, err
	}

	var jobs []Job
	doc.Find("table#jobs-table tr").Each(func(_ int, row *goquery.Selection) {
		name := htmlutil.CleanText(
			row.Find("td.documentColumnValue span.smallText").First().Text(),
		)
		if name == "" {
			return
		}

		href := ""
		row.Find("td.actionColumnValue a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if htmlutil.CleanText(a.Text()) == "Imprimer" {
				href = a.AttrOr("href", "")
				return false
			}
			return true
		})
		if href == "" {
			return
		}

		jobs = append(jobs, Job{Name: name, ReleaseHref: href})
	})

	span.SetAttributes(attribute.Int("count", len(jobs)))
	return jobs, nil
}

// ReleasePrinters lists the release stations a held job can be sent
// to, including the unavailable ones.
func (c *Client) ReleasePrinters(ctx context.Context, job Job) ([]Printer, error) {
	ctx, span := tracer.Start(ctx, "client:ReleasePrinters")
	defer span.End()
	span.SetAttributes(attribute.String("job", job.Name))

	doc, _, err := c.getDocument(ctx, htmlutil.ResolveHref(c.BaseUrl, job.ReleaseHref))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch job release page")
		return nil, err
	}

	var printers []Printer
	doc.Find(`a[href*='$ReleaseStationJobs.$DirectLink']`).Each(func(_ int, a *goquery.Selection) {
		row := a.Closest("tr")
		if row.Length() == 0 {
			return
		}
		printers = append(printers, Printer{
			Name:   htmlutil.CleanText(a.Text()),
			Status: htmlutil.CleanText(row.Find("td").Last().Text()),
			Href:   a.AttrOr("href", ""),
		})
	})

	span.SetAttributes(attribute.Int("count", len(printers)))
	return printers, nil
}

// Release sends a held job to the first available release station,
// optionally restricted to stations whose name contains
// printerFilter (case-insensitive).
func (c *Client) Release(ctx context.Context, job Job, printerFilter string) error {
	ctx, span := tracer.Start(ctx, "client:Release")
	defer span.End()
	span.SetAttributes(
		attribute.String("job", job.Name),
		attribute.String("printer_filter", printerFilter),
	)

	printers, err := c.ReleasePrinters(ctx, job)
	if err != nil {
		return err
	}

	var target *Printer
	var available []string
	for i, p := range printers {
		if !p.Available() {
			continue
		}
		available = append(available, p.Name)
		if printerFilter != "" &&
			!strings.Contains(strings.ToLower(p.Name), strings.ToLower(printerFilter)) {
			continue
		}
		target = &printers[i]
		break
	}
	if target == nil {
		span.SetStatus(codes.Error, ErrNoPrinterAvailable.Error())
		if len(available) > 0 {
			return fmt.Errorf("%w matching %q, available: %s",
				ErrNoPrinterAvailable, printerFilter, strings.Join(available, ", "))
		}
		return ErrNoPrinterAvailable
	}
	span.SetAttributes(attribute.String("printer", target.Name))

	res, err := c.Http.R().
		SetContext(ctx).
		Get(htmlutil.ResolveHref(c.BaseUrl, target.Href))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release request failed")
		return err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "release request rejected")
		return fmt.Errorf("release request failed with status %d", res.StatusCode())
	}

	return nil
}

// WaitForJob polls the release queue until a held job whose name
// contains filename shows up. The portal ingests uploads
// asynchronously so a freshly submitted document takes a few seconds
// to appear, this is the only retried operation in the whole
// workflow.
func (c *Client) WaitForJob(ctx context.Context, filename string) (Job, error) {
	ctx, span := tracer.Start(ctx, "client:WaitForJob")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		jobs, err := c.PendingJobs(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to list pending jobs")
			return Job{}, err
		}

		for _, job := range jobs {
			if strings.Contains(job.Name, filename) {
				span.SetAttributes(attribute.Int("attempts", attempt+1))
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "cancelled")
			return Job{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	span.SetStatus(codes.Error, ErrJobNotFound.Error())
	return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, filename)
}
