package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/Pharbi/arachnid/internal/capability"
	"github.com/Pharbi/arachnid/internal/coordination"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/events"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/providers"
	"github.com/Pharbi/arachnid/internal/store"
)

func newRunCommand(c *cli) *cobra.Command {
	var capName string
	var tickInterval time.Duration

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Create a web for a task and drive it to completion in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := resolveTask(args)
			if err != nil {
				return err
			}

			st := store.NewMemStore()
			bus := events.NewBus()
			loop := coordination.New(st, ports.Providers{
				LLM:       providers.Echo{},
				Embedding: providers.HashEmbedding{Dim: c.cfg.TuningDimension},
			}, capability.Default(), bus).WithLogger(c.logger)

			ctx := cmd.Context()
			web, err := loop.CreateWeb(ctx, task, c.cfg, capName)
			if err != nil {
				return fmt.Errorf("create web: %w", err)
			}
			fmt.Println(statusColor(fmt.Sprintf("web %s created for task %q", web.ID, task)))

			final, err := driveToCompletion(ctx, loop, web.ID, tickInterval)
			if err != nil {
				return err
			}

			switch final.State {
			case domain.Converged:
				fmt.Println(okColor("web converged"))
			case domain.Failed:
				fmt.Println(warnColor("web failed to converge"))
			default:
				fmt.Println(warnColor(fmt.Sprintf("web left in state %s after tick budget", final.State)))
			}

			root, err := loop.GetWeb(ctx, web.ID)
			if err != nil {
				return err
			}
			return renderFinalOutput(st, root.RootID)
		},
	}

	cmd.Flags().StringVar(&capName, "capability", "general", "root agent's capability tag")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", 0, "pause between ticks (0 = as fast as possible)")
	return cmd
}

// resolveTask returns the task from args, or prompts interactively via
// promptui when none was given.
func resolveTask(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	prompt := promptui.Prompt{Label: "Task for the root agent"}
	result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt for task: %w", err)
	}
	return result, nil
}

// driveToCompletion ticks webID until it leaves Running or hits a generous
// tick ceiling, guarding against a misconfigured web spinning forever.
func driveToCompletion(ctx context.Context, loop *coordination.Loop, webID string, interval time.Duration) (*domain.Web, error) {
	const maxTicks = 10_000
	var web *domain.Web
	for i := 0; i < maxTicks; i++ {
		var err error
		web, err = loop.Tick(ctx, webID)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", i, err)
		}
		if web.State != domain.Running {
			return web, nil
		}
		if interval > 0 {
			time.Sleep(interval)
		}
	}
	return web, nil
}

func renderFinalOutput(st *store.MemStore, rootID string) error {
	agent, err := st.GetAgent(context.Background(), rootID)
	if err != nil {
		return err
	}
	if len(agent.Context.Knowledge) == 0 {
		fmt.Println(warnColor("root agent produced no output"))
		return nil
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithEmoji())
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := renderer.Render(agent.Context.Knowledge[len(agent.Context.Knowledge)-1])
	if err != nil {
		return fmt.Errorf("render output: %w", err)
	}
	fmt.Print(out)
	return nil
}
