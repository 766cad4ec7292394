package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [job_id]",
	Short: "Download the finished video of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = args[0] + ".mp4"
		}

		n, err := download(args[0], output)
		if err != nil {
			printAPIError(cmd, "Fetch", err)
			return
		}
		cmd.Printf("✓ Saved %s (%s)\n", output, formatBytes(n))
	},
}

// download writes the video to path; a partial file is removed on failure.
func download(jobID, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := newClient().Video(jobID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	fetchCmd.Flags().StringP("output", "o", "", "output file (default <job_id>.mp4)")
	rootCmd.AddCommand(fetchCmd)
}
