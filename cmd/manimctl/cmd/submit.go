package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit [prompt]",
	Short: "Submit a prompt for rendering",
	Long: `Submit a prompt and print the job id. If this client already has a job in
flight, that job is returned instead of starting a new one.

With --wait the command polls until the job finishes and, when --output is
given, downloads the video.

Example:
  manimctl submit "why is the sky blue"
  manimctl submit "fourier series of a square wave" --wait -o fourier.mp4`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		wait, _ := flags.GetBool("wait")
		interval, _ := flags.GetDuration("interval")
		timeout, _ := flags.GetDuration("timeout")
		output, _ := flags.GetString("output")

		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt == "" {
			cmd.Println("Error: prompt is required")
			return
		}

		client := newClient()
		started, err := client.Start(prompt, clientID())
		if err != nil {
			printAPIError(cmd, "Submit", err)
			return
		}
		if started.Reused {
			cmd.Printf("↻ Job already in flight for this client\nJob ID: %s\nStatus: %s\n", started.JobID, started.Status)
		} else {
			cmd.Printf("✓ Job submitted!\nJob ID: %s\nStatus: %s\n", started.JobID, started.Status)
		}
		if !wait {
			return
		}

		deadline := time.Now().Add(timeout)
		lastStep := ""
		for {
			job, err := client.Status(started.JobID)
			if err != nil {
				printAPIError(cmd, "Status", err)
				return
			}
			if job.Step != lastStep {
				cmd.Printf("  → %s\n", job.Step)
				lastStep = job.Step
			}
			switch job.Status {
			case "succeeded":
				cmd.Printf("%s Finished in %s\n", statusIcon(job.Status), formatDuration(job.UpdatedAt.Sub(job.CreatedAt)))
				if output != "" {
					n, err := download(job.ID, output)
					if err != nil {
						printAPIError(cmd, "Fetch", err)
						return
					}
					cmd.Printf("✓ Saved %s (%s)\n", output, formatBytes(n))
				}
				return
			case "failed":
				cmd.Printf("%s Job failed: %s\n", statusIcon(job.Status), job.Error)
				return
			}
			if timeout > 0 && time.Now().After(deadline) {
				cmd.Printf("Timed out waiting for job %s (still %s)\n", job.ID, job.Status)
				return
			}
			time.Sleep(interval)
		}
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.BoolP("wait", "w", false, "poll until the job finishes")
	flags.Duration("interval", 2*time.Second, "poll interval with --wait")
	flags.Duration("timeout", 30*time.Minute, "give up waiting after this long (0 waits forever)")
	flags.StringP("output", "o", "", "download the video here once finished (with --wait)")

	rootCmd.AddCommand(submitCmd)
}
