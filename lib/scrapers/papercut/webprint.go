package papercut

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"tsprint/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const webPrintPage = "/app?service=page/UserWebPrint"

// WebPrintPrinter is one of the virtual queues offered on the web
// print printer-selection form (typically black & white vs. color).
// Index is the value of its radio button, which is what the form
// chain wants back.
type WebPrintPrinter struct {
	Index int
	Label string
}

var submitJobHrefRegex = regexp.MustCompile(`UserWebPrint.*\$ActionLink`)

// findSubmitJobHref locates the "Envoyer un travail" action on the
// web print summary page. The label is looked for first since the
// action link's position in the markup moves between portal versions.
func findSubmitJobHref(ctx context.Context, doc *goquery.Document) string {
	anchors := htmlutil.GetAnchors(ctx, doc.Find("a"))
	for _, a := range anchors {
		if strings.Contains(a.Name, "Envoyer un travail") {
			return a.Href
		}
	}
	for _, a := range anchors {
		if submitJobHrefRegex.MatchString(a.Href) {
			return a.Href
		}
	}
	return ""
}

// printerSelection walks web print page -> submit-a-job link and
// returns the printer selection page.
func (c *Client) printerSelection(ctx context.Context) (*goquery.Document, *resty.Response, error) {
	doc, _, err := c.getDocument(ctx, webPrintPage)
	if err != nil {
		return nil, nil, err
	}

	href := findSubmitJobHref(ctx, doc)
	if href == "" {
		return nil, nil, fmt.Errorf("could not find the submit-a-job link on the web print page")
	}

	return c.getDocument(ctx, htmlutil.ResolveHref(c.BaseUrl, href))
}

func printersFromSelectionForm(form *goquery.Selection) []WebPrintPrinter {
	var printers []WebPrintPrinter
	form.Find("input[type=radio][name='$RadioGroup']").Each(func(_ int, radio *goquery.Selection) {
		index, err := strconv.Atoi(radio.AttrOr("value", ""))
		if err != nil {
			return
		}

		// the queue name lives in the radio's table row, or in a
		// sibling label on older portal versions
		label := ""
		row := radio.Closest("tr")
		if row.Length() > 0 {
			label = htmlutil.CleanText(row.Text())
		} else {
			label = htmlutil.CleanText(radio.Parent().Find("label").First().Text())
		}
		if label == "" {
			label = fmt.Sprintf("Printer %d", index)
		}

		printers = append(printers, WebPrintPrinter{
			Index: index,
			Label: label,
		})
	})
	return printers
}

// WebPrintPrinters lists the virtual queues a job can be submitted
// to, in radio-button order.
func (c *Client) WebPrintPrinters(ctx context.Context) ([]WebPrintPrinter, error) {
	ctx, span := tracer.Start(ctx, "client:WebPrintPrinters")
	defer span.End()

	doc, _, err := c.printerSelection(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach printer selection")
		return nil, err
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "no form on printer selection page")
		return nil, fmt.Errorf("no form on the printer selection page")
	}

	printers := printersFromSelectionForm(form)
	span.SetAttributes(attribute.Int("count", len(printers)))
	return printers, nil
}

type UploadOptions struct {
	File         string
	Copies       int
	PrinterIndex int
}

var uploadEndpointRegexes = []*regexp.Regexp{
	regexp.MustCompile(`url\s*:\s*["'](/upload/\d+)["']`),
	regexp.MustCompile(`["'](/upload/\d+)["']`),
}

func findUploadEndpoint(body string) string {
	for _, re := range uploadEndpointRegexes {
		groups := re.FindStringSubmatch(body)
		if len(groups) == 2 {
			return groups[1]
		}
	}
	return ""
}

var optionsNextRegex = regexp.MustCompile(`Document.*envoyer`)

// Upload submits a document to a web print queue by replaying the
// portal's wizard: printer selection, print options, file upload,
// completion. Each step's form supplies the hidden state the next
// POST must echo back.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) error {
	ctx, span := tracer.Start(ctx, "client:Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("file", opts.File),
		attribute.Int("copies", opts.Copies),
		attribute.Int("printer_index", opts.PrinterIndex),
	)

	file, err := os.Open(opts.File)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open file")
		return err
	}
	defer file.Close()

	copies := opts.Copies
	if copies <= 0 {
		copies = 1
	}

	// step 1: printer selection
	doc, res, err := c.printerSelection(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach printer selection")
		return err
	}
	pageUrl := res.Request.URL

	form := doc.Find("form").First()
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "no form on printer selection page")
		return fmt.Errorf("no form on the printer selection page")
	}

	data := htmlutil.FormData(form)
	data.Set("$RadioGroup", strconv.Itoa(opts.PrinterIndex))
	// the page preloads these with placeholder text the server
	// rejects when echoed back
	for _, key := range []string{"$Hidden", "$Hidden$0", "$TextField"} {
		if data.Has(key) {
			data.Set(key, "")
		}
	}
	stripSubmits(data)
	nextBtn := form.Find("input[name='$Submit$1']").First()
	if nextBtn.Length() > 0 {
		data.Set("$Submit$1", nextBtn.AttrOr("value", ""))
	} else {
		data.Set("$Submit$1", "2. Options d'impression et sélection de compte >>")
	}

	c.extractCsrf(res.String())

	action := htmlutil.ResolveHref(c.BaseUrl, form.AttrOr("action", ""))
	res, err = c.Http.R().
		SetContext(ctx).
		SetHeaders(c.chainHeaders(pageUrl)).
		SetFormDataFromValues(data).
		Post(action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "printer selection POST failed")
		return err
	}

	// step 2: print options
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse options page")
		return err
	}
	form = doc.Find("form").First()
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "no form on options page")
		return fmt.Errorf("no form on the print options page")
	}

	data = htmlutil.FormData(form)
	data.Set("copies", strconv.Itoa(copies))
	stripSubmits(data)
	if next := findSubmitByValue(form, optionsNextRegex); next != nil {
		name := next.AttrOr("name", "$Submit")
		if name == "" {
			name = "$Submit"
		}
		data.Set(name, next.AttrOr("value", ""))
	} else {
		data.Set("$Submit", "3. Document a envoyer >>")
	}

	action = htmlutil.ResolveHref(c.BaseUrl, form.AttrOr("action", ""))
	res, err = c.Http.R().
		SetContext(ctx).
		SetHeaders(c.chainHeaders(res.Request.URL)).
		SetFormDataFromValues(data).
		Post(action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "options POST failed")
		return err
	}

	// step 3: the upload page embeds the upload endpoint in inline js
	uploadPage := res
	endpoint := findUploadEndpoint(uploadPage.String())
	if endpoint == "" {
		span.SetStatus(codes.Error, "no upload endpoint")
		return fmt.Errorf("could not find the upload endpoint on the upload page")
	}

	uploadRes, err := c.Http.R().
		SetContext(ctx).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Referer", uploadPage.Request.URL).
		SetHeader("Origin", strings.TrimSuffix(c.BaseUrl.String(), "/")).
		SetFileReader("file", filepath.Base(opts.File), file).
		Post(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "file upload failed")
		return err
	}
	if uploadRes.StatusCode() != 200 {
		span.SetStatus(codes.Error, "file upload rejected")
		return fmt.Errorf("upload failed with status %d", uploadRes.StatusCode())
	}

	// step 4: the upload page also carries the completion form that
	// the portal's javascript would auto-submit
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(uploadPage.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse upload page")
		return err
	}
	form = doc.Find("form#upload-complete").First()
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	if form.Length() > 0 {
		data = htmlutil.FormData(form)
		stripSubmits(data)

		action = htmlutil.ResolveHref(c.BaseUrl, form.AttrOr("action", ""))
		_, err = c.Http.R().
			SetContext(ctx).
			SetHeaders(c.chainHeaders(uploadPage.Request.URL)).
			SetFormDataFromValues(data).
			Post(action)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "completion POST failed")
			return err
		}
	}

	return nil
}

func findSubmitByValue(form *goquery.Selection, valuePattern *regexp.Regexp) *goquery.Selection {
	var match *goquery.Selection
	form.Find("input[type=submit]").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		if valuePattern.MatchString(input.AttrOr("value", "")) {
			match = input
			return false
		}
		return true
	})
	return match
}
