package commands

import (
	"testing"
	"tsprint/lib/scrapers/papercut"

	"github.com/stretchr/testify/require"
)

func TestSelectJob(t *testing.T) {
	jobs := []papercut.Job{
		{Name: "rapport-stage.pdf", ReleaseHref: "/release/1"},
		{Name: "Microsoft Word - notes.docx", ReleaseHref: "/release/2"},
	}

	_, err := selectJob(nil, "")
	require.ErrorContains(t, err, "no jobs")

	job, err := selectJob(jobs[:1], "")
	require.NoError(t, err)
	require.Equal(t, "rapport-stage.pdf", job.Name)

	_, err = selectJob(jobs, "")
	require.ErrorContains(t, err, "multiple jobs")
	require.ErrorContains(t, err, "notes.docx")

	job, err = selectJob(jobs, "notes")
	require.NoError(t, err)
	require.Equal(t, "Microsoft Word - notes.docx", job.Name)

	// a typo'd filter should point at the closest-named job
	_, err = selectJob(jobs, "raport-stage.pdf")
	require.ErrorContains(t, err, `did you mean "rapport-stage.pdf"`)
}
