package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"tsprint/lib/scrapers/papercut"

	"github.com/antzucaro/matchr"
	"github.com/spf13/cobra"
)

var releaseJobName *string
var releasePrinter *string

func init() {
	releaseJobName = releaseCmd.Flags().String("job-name", "", "Substring of the job to release.")
	releasePrinter = releaseCmd.Flags().String("printer", "", "Substring of the printer to release to.")
	rootCmd.AddCommand(releaseCmd)
}

// selectJob picks the held job matching the name filter. Without a
// filter it only proceeds when the queue holds exactly one job, a
// guess between several documents would print the wrong one.
func selectJob(jobs []papercut.Job, nameFilter string) (papercut.Job, error) {
	if len(jobs) == 0 {
		return papercut.Job{}, fmt.Errorf("no jobs in the release queue")
	}

	if nameFilter == "" {
		if len(jobs) == 1 {
			return jobs[0], nil
		}
		names := make([]string, len(jobs))
		for i, job := range jobs {
			names[i] = job.Name
		}
		return papercut.Job{}, fmt.Errorf(
			"multiple jobs found, specify --job-name:\n- %s",
			strings.Join(names, "\n- "),
		)
	}

	for _, job := range jobs {
		if strings.Contains(job.Name, nameFilter) {
			return job, nil
		}
	}

	// no match, point at the closest-named job instead of leaving the
	// user to re-run `jobs` and eyeball the list
	closest := ""
	var similarity float64
	for _, job := range jobs {
		sim := matchr.JaroWinkler(job.Name, nameFilter, false)
		if sim > similarity {
			similarity = sim
			closest = job.Name
		}
	}
	if closest != "" {
		return papercut.Job{}, fmt.Errorf(
			"no job matching %q, did you mean %q?", nameFilter, closest,
		)
	}
	return papercut.Job{}, fmt.Errorf("no job matching %q", nameFilter)
}

var releaseCmd = &cobra.Command{
	Use:   "release [--job-name <substring>] [--printer <substring>]",
	Short: "Releases a held job to a physical printer.",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd.Context())

		jobs, err := client.PendingJobs(cmd.Context())
		if err != nil {
			fatal("failed to list pending jobs", err)
		}
		if len(jobs) == 0 {
			slog.Info("no jobs to release")
			return
		}

		job, err := selectJob(jobs, *releaseJobName)
		if err != nil {
			fatal("could not pick a job to release", err)
		}

		slog.Info("releasing job", "job", job.Name)
		err = client.Release(cmd.Context(), job, *releasePrinter)
		if err != nil {
			fatal("release failed", err)
		}
		slog.Info("release command sent", "job", job.Name)
	},
}
