package agentcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/pkg/agent"
	"github.com/spf13/cobra"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "jc2"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:       filepath.Join(configDir, "data"),
		DevicesConfig: filepath.Join(configDir, "devices.yml"),
	}
	rootCmd := &cobra.Command{
		Use:   "jc2-agent",
		Short: "Joy-Con 2 agent",
		Long:  `jc2-agent connects to a pair of Joy-Con 2 controllers, decodes their input reports and serves the reconstructed button and pointer state.`,
	}
	var a *agent.Agent
	agentProvider := func() *agent.Agent {
		return a
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.DevicesConfig, "devices-config", cfg.DevicesConfig, "devices config file")
	rootCmd.PersistentFlags().BoolVar(&cfg.EnablePointer, "pointer", false, "forward decoded state to a virtual pointer")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = agent.NewAgent(cfg)
		return err
	}
	rootCmd.AddCommand(NewRun(agentProvider))
	rootCmd.AddCommand(NewWatch(agentProvider))
	rootCmd.AddCommand(NewListDevices(agentProvider))
	return rootCmd
}

func parseSides(args []string) ([]joycon.Side, error) {
	if len(args) == 0 {
		return []joycon.Side{joycon.SideLeft, joycon.SideRight}, nil
	}
	sides := make([]joycon.Side, 0, len(args))
	for _, s := range args {
		side, err := joycon.ParseSide(s)
		if err != nil {
			return nil, err
		}
		sides = append(sides, side)
	}
	return sides, nil
}

func NewRun(agent agentProvider) *cobra.Command {
	var sides []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent",
		Long:  `Run the agent: start the transport backends and connect the requested controller sides as they appear.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseSides(sides)
			if err != nil {
				return err
			}
			a := agent()
			go a.ConnectSides(cmd.Context(), parsed)
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringSliceVar(&sides, "sides", nil, "sides to connect (left, right)")
	return cmd
}

func NewWatch(agent agentProvider) *cobra.Command {
	var sides []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch decoded state",
		Long:  `Run the agent and print every decoded state snapshot as a JSON line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseSides(sides)
			if err != nil {
				return err
			}
			a := agent()
			ctx := cmd.Context()
			go a.ConnectSides(ctx, parsed)
			go func() {
				select {
				case <-ctx.Done():
					return
				case <-a.Sessions().Ready():
				}
				for msg := range a.Sessions().SubscribeState(ctx, parsed...) {
					b, err := json.Marshal(msg.Message)
					if err != nil {
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(b))
				}
			}()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringSliceVar(&sides, "sides", nil, "sides to watch (left, right)")
	return cmd
}

func NewListDevices(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List known controllers",
		Long:  `List every controller the agent has seen, with first and last seen timestamps.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := agent().Sessions().ListControllers()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}
