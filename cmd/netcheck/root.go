package main

import (
	"flag"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/netbuilder/internal/config"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/netbuilder/backends/default"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "netcheck",
		Short:         "Differential tests of netbuilder operations against the eager reference",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			if loaded.NoColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	// klog flags (-v, -logtostderr, ...).
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newLowerCmd())
	return cmd
}
