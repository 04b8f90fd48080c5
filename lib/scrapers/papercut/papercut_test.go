package papercut

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"tsprint/lib/telemetry"

	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed testdata/login.html
var loginHtml string

//go:embed testdata/login_failed.html
var loginFailedHtml string

//go:embed testdata/summary.html
var summaryHtml string

//go:embed testdata/webprint.html
var webprintHtml string

//go:embed testdata/printer_select.html
var printerSelectHtml string

//go:embed testdata/options.html
var optionsHtml string

//go:embed testdata/upload.html
var uploadHtml string

//go:embed testdata/jobs.html
var jobsHtml string

//go:embed testdata/jobs_empty.html
var jobsEmptyHtml string

//go:embed testdata/release.html
var releaseHtml string

type uploadRecord struct {
	filename string
	contents []byte
}

// fakePortal replays the portal's page sequence from fixtures and
// records what the client posts at each step.
type fakePortal struct {
	t   testing.TB
	srv *httptest.Server

	authed bool

	// number of UserReleaseJobs fetches to serve an empty queue for
	// before the held jobs show up
	emptyJobsPages int

	loginPosts         []url.Values
	printerSelectPosts []url.Values
	printerSelectCsrf  []string
	optionsPosts       []url.Values
	uploads            []uploadRecord
	completePosts      []url.Values
	releaseHits        []string
}

func newFakePortal(t testing.TB) *fakePortal {
	p := &fakePortal{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if p.authed {
			io.WriteString(w, summaryHtml)
			return
		}
		io.WriteString(w, loginHtml)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.loginPosts = append(p.loginPosts, r.PostForm)

		if r.PostFormValue("inputUsername") == "durand_a" &&
			r.PostFormValue("inputPassword") == "s3cret" {
			p.authed = true
			io.WriteString(w, summaryHtml)
			return
		}
		io.WriteString(w, loginFailedHtml)
	})
	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		service := r.URL.Query().Get("service")
		switch {
		case service == "page/UserSummary":
			if p.authed {
				io.WriteString(w, summaryHtml)
			} else {
				io.WriteString(w, loginHtml)
			}
		case service == "page/UserWebPrint":
			io.WriteString(w, webprintHtml)
		case service == "page/UserReleaseJobs":
			if p.emptyJobsPages > 0 {
				p.emptyJobsPages--
				io.WriteString(w, jobsEmptyHtml)
				return
			}
			io.WriteString(w, jobsHtml)
		case strings.Contains(service, "UserWebPrint/$ActionLink"):
			io.WriteString(w, printerSelectHtml)
		case strings.Contains(service, "$ReleaseStationJobs.$DirectLink"):
			p.releaseHits = append(p.releaseHits, r.URL.Query().Get("sp"))
			io.WriteString(w, summaryHtml)
		default:
			t.Errorf("unexpected service %q", service)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/printer-select-submit", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.printerSelectPosts = append(p.printerSelectPosts, r.PostForm)
		p.printerSelectCsrf = append(p.printerSelectCsrf, r.Header.Get("X-Csrf-Token"))
		io.WriteString(w, optionsHtml)
	})
	mux.HandleFunc("/options-submit", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.optionsPosts = append(p.optionsPosts, r.PostForm)
		io.WriteString(w, uploadHtml)
	})
	mux.HandleFunc("/upload/291", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		contents, err := io.ReadAll(file)
		require.NoError(t, err)
		p.uploads = append(p.uploads, uploadRecord{
			filename: header.Filename,
			contents: contents,
		})
		io.WriteString(w, `{"success": true}`)
	})
	mux.HandleFunc("/upload-complete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.completePosts = append(p.completePosts, r.PostForm)
		io.WriteString(w, webprintHtml)
	})
	mux.HandleFunc("/release/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, releaseHtml)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePortal) client(t testing.TB, opts ClientOptions) *Client {
	opts.BaseUrl = p.srv.URL
	client, err := NewClient(context.Background(), opts)
	require.NoError(t, err)
	return client
}

func (p *fakePortal) login(t testing.TB) *Client {
	client := p.client(t, ClientOptions{})
	err := client.Login(context.Background(), "durand_a", "s3cret")
	require.NoError(t, err)
	return client
}

func TestLogin(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/papercut")
	defer cleanup()

	portal := newFakePortal(t)
	portal.login(t)

	require.Len(t, portal.loginPosts, 1)
	form := portal.loginPosts[0]
	// hidden form state must be echoed back
	require.Equal(t, "direct/1/Home/$Form", form.Get("service"))
	require.Equal(t, "true", form.Get("$Hidden$0"))
	// the first option of the language select counts as selected
	require.Equal(t, "fr", form.Get("$PropertySelection"))
	require.Equal(t, "Connexion", form.Get("$Submit$0"))
}

func TestLoginAlreadyAuthenticated(t *testing.T) {
	portal := newFakePortal(t)
	portal.authed = true

	client := portal.client(t, ClientOptions{})
	err := client.Login(context.Background(), "durand_a", "s3cret")
	require.NoError(t, err)
	require.Empty(t, portal.loginPosts)
}

func TestLoginBadCredentials(t *testing.T) {
	portal := newFakePortal(t)

	client := portal.client(t, ClientOptions{})
	err := client.Login(context.Background(), "durand_a", "wrong")
	require.ErrorIs(t, err, ErrLoginFailed)
	require.Contains(t, err.Error(), "Nom d'utilisateur ou mot de passe invalide.")
}

func TestWebPrintPrinters(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	printers, err := client.WebPrintPrinters(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 2)
	require.Equal(t, 0, printers[0].Index)
	require.Contains(t, printers[0].Label, "imp-nb")
	require.Equal(t, 1, printers[1].Index)
	require.Contains(t, printers[1].Label, "imp-couleur")
}

func TestUpload(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	file := filepath.Join(t.TempDir(), "rapport-stage.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-1.4 fake"), 0600))

	err := client.Upload(context.Background(), UploadOptions{
		File:         file,
		Copies:       2,
		PrinterIndex: 1,
	})
	require.NoError(t, err)

	require.Len(t, portal.printerSelectPosts, 1)
	selection := portal.printerSelectPosts[0]
	require.Equal(t, "1", selection.Get("$RadioGroup"))
	// placeholder text must be blanked, not echoed
	require.Equal(t, "", selection.Get("$Hidden"))
	require.Equal(t, "", selection.Get("$TextField"))
	// only the "next step" button may be submitted
	require.False(t, selection.Has("$Submit"))
	require.Contains(t, selection.Get("$Submit$1"), "2. Options")
	require.Equal(t, []string{"csrf-5f2c1a"}, portal.printerSelectCsrf)

	require.Len(t, portal.optionsPosts, 1)
	options := portal.optionsPosts[0]
	require.Equal(t, "2", options.Get("copies"))
	require.Contains(t, options.Get("$Submit$0"), "Document a envoyer")
	require.False(t, options.Has("$Submit"))

	require.Len(t, portal.uploads, 1)
	require.Equal(t, "rapport-stage.pdf", portal.uploads[0].filename)
	require.Equal(t, []byte("%PDF-1.4 fake"), portal.uploads[0].contents)

	require.Len(t, portal.completePosts, 1)
	complete := portal.completePosts[0]
	require.Equal(t, "291", complete.Get("uploadUID"))
	require.False(t, complete.Has("$Submit"))
}

func TestUploadMissingFile(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	err := client.Upload(context.Background(), UploadOptions{
		File: filepath.Join(t.TempDir(), "nope.pdf"),
	})
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, portal.printerSelectPosts)
}

func TestPendingJobs(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	jobs, err := client.PendingJobs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Job{
		{Name: "rapport-stage.pdf", ReleaseHref: "/release/rapport-stage"},
		{Name: "Microsoft Word - notes.docx", ReleaseHref: "/release/notes"},
	}, jobs)
}

func TestPendingJobsEmpty(t *testing.T) {
	portal := newFakePortal(t)
	portal.emptyJobsPages = 1
	client := portal.login(t)

	jobs, err := client.PendingJobs(context.Background())
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestReleasePrinters(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	printers, err := client.ReleasePrinters(context.Background(), Job{
		Name:        "rapport-stage.pdf",
		ReleaseHref: "/release/rapport-stage",
	})
	require.NoError(t, err)
	require.Len(t, printers, 3)

	require.Contains(t, printers[0].Name, "imp-2a-nb")
	require.Equal(t, "Hors ligne", printers[0].Status)
	require.False(t, printers[0].Available())

	require.Contains(t, printers[1].Name, "imp-4b-nb")
	require.True(t, printers[1].Available())
	require.True(t, printers[2].Available())
}

func TestRelease(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	job := Job{Name: "rapport-stage.pdf", ReleaseHref: "/release/rapport-stage"}

	// no filter picks the first available station, skipping the
	// offline one
	err := client.Release(context.Background(), job, "")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, portal.releaseHits)

	// the filter is a case-insensitive substring
	err = client.Release(context.Background(), job, "COULEUR")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, portal.releaseHits)

	err = client.Release(context.Background(), job, "sous-sol")
	require.ErrorIs(t, err, ErrNoPrinterAvailable)
	require.Contains(t, err.Error(), "imp-4b-nb")
}

func TestWaitForJob(t *testing.T) {
	portal := newFakePortal(t)
	portal.emptyJobsPages = 2

	client := portal.client(t, ClientOptions{
		PollAttempts: 5,
		PollInterval: time.Millisecond * 10,
	})
	require.NoError(t, client.Login(context.Background(), "durand_a", "s3cret"))

	job, err := client.WaitForJob(context.Background(), "rapport-stage.pdf")
	require.NoError(t, err)
	require.Equal(t, "rapport-stage.pdf", job.Name)
}

func TestWaitForJobTimeout(t *testing.T) {
	portal := newFakePortal(t)
	portal.emptyJobsPages = 100

	client := portal.client(t, ClientOptions{
		PollAttempts: 3,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, client.Login(context.Background(), "durand_a", "s3cret"))

	_, err := client.WaitForJob(context.Background(), "rapport-stage.pdf")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestWaitForJobCancelled(t *testing.T) {
	portal := newFakePortal(t)
	portal.emptyJobsPages = 100

	client := portal.client(t, ClientOptions{
		PollAttempts: 100,
		PollInterval: time.Second,
	})
	require.NoError(t, client.Login(context.Background(), "durand_a", "s3cret"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.WaitForJob(ctx, "rapport-stage.pdf")
	require.True(t, errors.Is(err, context.Canceled))
}
