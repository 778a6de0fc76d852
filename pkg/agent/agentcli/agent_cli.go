package agentcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/padforge/padforge/internal/devsvc"
	"github.com/padforge/padforge/internal/mapsvc"
	"github.com/padforge/padforge/padapi"
	"github.com/padforge/padforge/pkg/agent"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "padforge"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:        filepath.Join(configDir, "data"),
		ProfilesConfig: filepath.Join(configDir, "profiles.yml"),
		QuirksDir:      filepath.Join(configDir, "quirks"),
	}
	rootCmd := &cobra.Command{
		Use:   "padforge",
		Short: "PadForge Agent",
		Long:  `The PadForge agent maps physical input devices onto a virtual game controller.`,
	}
	var a *agent.Agent
	agentProvider := func() *agent.Agent {
		return a
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.ProfilesConfig, "profiles", cfg.ProfilesConfig, "profiles config file")
	rootCmd.PersistentFlags().StringVar(&cfg.QuirksDir, "quirks-dir", cfg.QuirksDir, "device quirks directory")
	rootCmd.PersistentFlags().StringVar(&cfg.Pad.Type, "pad-type", "uhid", "virtual controller sink type")
	rootCmd.PersistentFlags().StringVar(&cfg.Pad.UDC, "udc", "", "USB device controller for the gadget sink")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = agent.NewAgent(cfg)
		return err
	}
	rootCmd.AddCommand(NewRun(agentProvider))
	rootCmd.AddCommand(NewListDevices(agentProvider))
	rootCmd.AddCommand(NewShowProfile(agentProvider, &cfg))
	return rootCmd
}

func NewRun(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the PadForge agent",
		Long:  `Runs the mapping engine until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent().Run(cmd.Context())
		},
	}
}

func NewListDevices(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List known input devices",
		Long:  `Lists every input device the agent has seen, connected or not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := agent().Devices().ListDevices()
			if err != nil {
				return err
			}
			type listed struct {
				devsvc.DeviceRecord
				Connected bool `json:"connected"`
			}
			out := make([]listed, 0, len(devices))
			for _, dev := range devices {
				out = append(out, listed{
					DeviceRecord: dev,
					Connected:    agent().Devices().IsConnected(dev.ID),
				})
			}
			jsonB, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}

func NewShowProfile(agent agentProvider, cfg *agent.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show-profile [name]",
		Short: "Show a compiled mapping profile",
		Long:  `Compiles a profile from the profiles file and prints its bindings per output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(cfg.ProfilesConfig)
			if err != nil {
				return err
			}
			var fileCfg mapsvc.FileConfig
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return err
			}
			name := fileCfg.Active
			if len(args) == 1 {
				name = args[0]
			}
			for _, pc := range fileCfg.Profiles {
				if pc.Name != name {
					continue
				}
				profile, err := mapsvc.CompileProfile(pc)
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), profile)
				return nil
			}
			return fmt.Errorf("profile %q not found", name)
		},
	}
}

func printProfile(w io.Writer, profile *mapsvc.Profile) {
	fmt.Fprintf(w, "profile: %s\n", profile.Name)
	outputs := make([]padapi.VirtualOutput, 0, len(profile.Mappings))
	for output := range profile.Mappings {
		outputs = append(outputs, output)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i] < outputs[j] })
	for _, output := range outputs {
		fmt.Fprintf(w, "  %s:\n", output)
		for _, b := range profile.Mappings[output].Bindings {
			line := fmt.Sprintf("%s.%d", b.Device, b.Source)
			if b.Label != "" {
				line += fmt.Sprintf(" (%s)", b.Label)
			}
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}
