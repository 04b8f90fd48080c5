package papercut

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
	"tsprint/lib/htmlutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var ErrLoginFailed = fmt.Errorf("Failed to login to your account.")

const (
	loginPage   = "/user"
	summaryPage = "/app?service=page/UserSummary"
)

// Client drives the portal's multi-page form workflow. Every
// operation depends on the cookie jar carrying the session
// established by Login, and on nothing else.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	// csrf token scraped from inline javascript, required by the web
	// print form chain
	csrf string

	pollAttempts int
	pollInterval time.Duration
}

type ClientOptions struct {
	BaseUrl string
	// overrides for the held-job poll in WaitForJob, zero values mean
	// 10 attempts every 3 seconds
	PollAttempts int
	PollInterval time.Duration
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36")
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("accept-language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	instrument(client)

	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = 10
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second * 3
	}

	c := &Client{
		BaseUrl:      baseUrl,
		Http:         client,
		pollAttempts: attempts,
		pollInterval: interval,
	}
	return c, nil
}

func (c *Client) getDocument(ctx context.Context, endpoint string) (*goquery.Document, *resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, nil, err
	}
	if res.StatusCode() != 200 {
		return nil, nil, fmt.Errorf("fetching %s: unexpected status %d", endpoint, res.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, nil, err
	}
	return doc, res, nil
}

// the logout anchor only renders for authenticated sessions, it is
// the cheapest marker of being logged in. the portal serves it
// entity-encoded or not depending on the page.
func loggedIn(body string) bool {
	return strings.Contains(body, "Déconnexion") ||
		strings.Contains(body, "D&#233;connexion")
}

func isLoginPage(body string) bool {
	return strings.Contains(body, "inputPassword")
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	doc, res, err := c.getDocument(ctx, loginPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}

	if loggedIn(res.String()) {
		span.AddEvent("already logged in")
		return nil
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "no login form")
		return fmt.Errorf("could not find login form")
	}

	data := htmlutil.FormData(form)
	data.Set("inputUsername", username)
	data.Set("inputPassword", password)

	submit := form.Find("input[type=submit]").First()
	if name := submit.AttrOr("name", ""); name != "" {
		data.Set(name, submit.AttrOr("value", ""))
	} else {
		data.Set("$Submit$0", "Connexion")
	}

	action := htmlutil.ResolveHref(c.BaseUrl, form.AttrOr("action", ""))
	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", htmlutil.ResolveHref(c.BaseUrl, loginPage)).
		SetFormDataFromValues(data).
		Post(action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}

	if isLoginPage(res.String()) {
		msg := scrapeLoginError(res.Body())
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrLoginFailed, msg)
		}
		return ErrLoginFailed
	}

	// the login POST redirecting away from the form is not proof of a
	// session, only the summary page rendering without one is
	_, res, err = c.getDocument(ctx, summaryPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to verify session")
		return err
	}
	if isLoginPage(res.String()) {
		span.SetStatus(codes.Error, "session check failed after login")
		return fmt.Errorf("%w: session check failed after login", ErrLoginFailed)
	}

	return nil
}

func scrapeLoginError(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return ""
	}
	msg := doc.Find(".error").First()
	if msg.Length() == 0 {
		msg = doc.Find(".errorMessage").First()
	}
	return htmlutil.CleanText(msg.Text())
}

var csrfTokenRegex = regexp.MustCompile(`var csrfToken = ['"]([^'"]+)['"]`)

func (c *Client) extractCsrf(body string) {
	groups := csrfTokenRegex.FindStringSubmatch(body)
	if len(groups) == 2 {
		c.csrf = groups[1]
	}
}

// chainHeaders returns the headers the portal expects on the POSTs of
// a form chain: the page the form came from as referer, plus the csrf
// token once one has been scraped.
func (c *Client) chainHeaders(referer string) map[string]string {
	headers := map[string]string{
		"Referer": referer,
		"Origin":  strings.TrimSuffix(c.BaseUrl.String(), "/"),
	}
	if c.csrf != "" {
		headers["X-Csrf-Token"] = c.csrf
	}
	return headers
}

func stripSubmits(data url.Values) {
	for key := range data {
		if strings.HasPrefix(key, "$Submit") {
			data.Del(key)
		}
	}
}
