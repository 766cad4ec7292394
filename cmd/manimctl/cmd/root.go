package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "manimctl",
	Short: "manimctl submits prompts to the manim render service and fetches the videos",
	Long: `manimctl is the command-line client of the manim render service.

A prompt is turned into a narrated explainer video: the service writes a
script, synthesizes speech, generates and renders Manim scenes and stitches
everything into one mp4.

Common workflows:

  Submit a prompt and wait for the video:
    manimctl submit "explain the unit circle" --wait -o unit-circle.mp4

  Check a job:
    manimctl status <job-id>

  Download a finished video:
    manimctl fetch <job-id> -o out.mp4

Configuration:
  MANIMCTL_SERVER     API base URL (default: http://localhost:8083/api/manim)
  MANIMCTL_CLIENT_ID  client identifier used for per-client dedup`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// $HOME/.manimctl.yaml
		viper.AddConfigPath(home)
		viper.SetConfigName(".manimctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MANIMCTL")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.manimctl.yaml)")

	rootCmd.PersistentFlags().String("server", "http://localhost:8083/api/manim", "manim service API base URL")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("client-id", "", "client identifier (default: user@host)")
	_ = viper.BindPFlag("client_id", rootCmd.PersistentFlags().Lookup("client-id"))
}

// clientID falls back to user@host so repeated submissions from one terminal
// share a dedup slot.
func clientID() string {
	if id := viper.GetString("client_id"); id != "" {
		return id
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "manimctl"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return user
	}
	return user + "@" + host
}

func newClient() *RenderClient {
	return NewRenderClient(viper.GetString("server"))
}

func printAPIError(cmd *cobra.Command, action string, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("%s failed (%d): %s\n", action, apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("%s failed: %v\n", action, err)
}
