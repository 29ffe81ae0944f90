package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tsanev/camguard-go/cmd/prune"
	"github.com/tsanev/camguard-go/cmd/watch"
	"github.com/tsanev/camguard-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "camguard",
		Short: "CamGuard multi-camera surveillance core",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		watch.Command(settings),
		prune.Command(settings),
	)

	return rootCmd
}

// setupFlags defines global flags and binds them through viper so they
// override the config file.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.FFmpegPath, "ffmpeg", settings.FFmpegPath, "Path to the ffmpeg binary")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.Path, "storage-path", settings.Storage.Path, "Recordings root directory")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("ffmpegpath", rootCmd.PersistentFlags().Lookup("ffmpeg"))
	_ = viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("storage-path"))
}
