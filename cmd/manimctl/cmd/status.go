package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"manim-service/ddd/application/dto"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a render job",
	Long:  `Show the current status and step of a render job (queued, running, succeeded, failed), its error if any, and the most recent progress lines.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tail, _ := cmd.Flags().GetInt("logs")

		job, err := newClient().Status(args[0])
		if err != nil {
			printAPIError(cmd, "Status", err)
			return
		}
		printStatus(cmd, job, tail)
	},
}

func printStatus(cmd *cobra.Command, job *dto.RenderJobDTO, tail int) {
	cmd.Printf("%s %sRender Job%s\n", statusIcon(job.Status), colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, job.ID)
	cmd.Printf("%sClient:%s      %s\n", colorDim, colorReset, job.ClientID)
	cmd.Printf("%sPrompt:%s      %s\n", colorDim, colorReset, job.Prompt)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(job.Status))
	cmd.Printf("%sStep:%s        %s\n", colorDim, colorReset, job.Step)
	if job.Error != "" {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, job.Error, colorReset)
	}
	cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTime(job.CreatedAt))
	cmd.Printf("%sUpdated:%s     %s %s(%s)%s\n", colorDim, colorReset,
		formatTime(job.UpdatedAt), colorCyan, formatDuration(job.UpdatedAt.Sub(job.CreatedAt)), colorReset)
	if job.HasVideo {
		cmd.Printf("%sVideo:%s       ready (manimctl fetch %s)\n", colorDim, colorReset, job.ID)
	}

	logs := job.Logs
	if tail >= 0 && len(logs) > tail {
		logs = logs[len(logs)-tail:]
	}
	if len(logs) > 0 {
		cmd.Printf("\n%sLogs:%s\n", colorBold, colorReset)
		for _, line := range logs {
			cmd.Printf("  %s\n", line)
		}
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "succeeded":
		return colorGreen + "✓" + colorReset
	case "failed":
		return colorRed + "✗" + colorReset
	case "running":
		return colorYellow + "⏳" + colorReset
	case "queued":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "succeeded":
		return icon + " " + colorGreen + status + colorReset
	case "failed":
		return icon + " " + colorRed + status + colorReset
	case "running":
		return icon + " " + colorYellow + status + colorReset
	case "queued":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Mon, 02 Jan 2006 15:04:05 MST")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

func init() {
	statusCmd.Flags().Int("logs", 10, "number of trailing log lines to show (-1 for all)")
	rootCmd.AddCommand(statusCmd)
}
