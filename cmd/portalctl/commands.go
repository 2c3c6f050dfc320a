package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// run resolves the portal and hands it to fn with the command context
func (o *options) run(fn func(ctx context.Context, p *portal) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		p, err := o.newPortal()
		if err != nil {
			return err
		}
		defer p.close()
		return fn(cmd.Context(), p)
	}
}

// render prints v as JSON with --json, otherwise through the table printer
func render[T any](cmd *cobra.Command, opts *options, v T, table func(T) error) error {
	if opts.jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}
	return table(v)
}

func camerasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cameras [ID...]",
		Short: "List cameras with their transcoder, settings and group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				items, err := p.views.ListCameras(ctx, args)
				if err != nil {
					return err
				}
				return render(cmd, opts, items, func(items []aggregate.CameraItem) error {
					return printCameras(cmd.OutOrStdout(), items)
				})
			})(cmd, args)
		},
	}
}

func cameraCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "camera ID",
		Short: "Show the full camera view as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				view, err := p.views.CameraView(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})(cmd, args)
		},
	}
}

func updatesCmd(opts *options) *cobra.Command {
	var q aggregate.UpdateQuery
	cmd := &cobra.Command{
		Use:   "updates ID",
		Short: "Show recent events and stats of a camera",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 10, "Maximum number of events")
	cmd.Flags().DurationVar(&q.Within, "within", 0, "Only events started within this window")
	cmd.Flags().BoolVar(&q.Latest, "latest", false, "Only the latest event")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		q.CameraID = args[0]
		return opts.run(func(ctx context.Context, p *portal) error {
			info, err := p.views.UpdatedInfo(ctx, q)
			if err != nil {
				return err
			}
			return render(cmd, opts, info, func(info *aggregate.UpdatedInfo) error {
				return printUpdatedInfo(cmd.OutOrStdout(), info)
			})
		})(cmd, args)
	}
	return cmd
}

func transcodersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transcoders [ID...]",
		Short: "List transcoders with their OpenGate integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				items, err := p.views.ListTranscoders(ctx, args)
				if err != nil {
					return err
				}
				return render(cmd, opts, items, func(items []aggregate.TranscoderItem) error {
					return printTranscoders(cmd.OutOrStdout(), items)
				})
			})(cmd, args)
		},
	}
}

func peopleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "people [ID...]",
		Short: "List known people",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				items, err := p.views.ListPeople(ctx, args)
				if err != nil {
					return err
				}
				return render(cmd, opts, items, func(items []aggregate.PersonItem) error {
					return printPeople(cmd.OutOrStdout(), items)
				})
			})(cmd, args)
		},
	}
}

func personCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "person ID",
		Short: "Show a person with image URL and history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				info, err := p.views.PersonInfo(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), info)
			})(cmd, args)
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history PERSON_ID",
		Short: "Show where a person was seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				view, err := p.views.PersonHistory(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd, opts, view, func(view *aggregate.PersonHistoryView) error {
					return printHistory(cmd.OutOrStdout(), view)
				})
			})(cmd, args)
		},
	}
}

func eventsCmd(opts *options) *cobra.Command {
	var q backend.EventQuery
	cmd := &cobra.Command{
		Use:   "events [ID...]",
		Short: "List tracking events with snapshot and recognised person",
	}
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 20, "Maximum number of events")
	cmd.Flags().StringVar(&q.CameraID, "camera", "", "Only events of this camera")
	cmd.Flags().DurationVar(&q.Within, "within", 0, "Only events started within this window")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		q.IDs = args
		return opts.run(func(ctx context.Context, p *portal) error {
			items, err := p.views.ListEvents(ctx, q)
			if err != nil {
				return err
			}
			return render(cmd, opts, items, func(items []aggregate.SummarizedEvent) error {
				return printEvents(cmd.OutOrStdout(), items)
			})
		})(cmd, args)
	}
	return cmd
}

func groupsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "groups [ID...]",
		Short: "List camera groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				groups, err := p.views.ListGroups(ctx, args)
				if err != nil {
					return err
				}
				return render(cmd, opts, groups, func(groups []backend.CameraGroup) error {
					return printGroups(cmd.OutOrStdout(), groups)
				})
			})(cmd, args)
		},
	}
}

func ptzCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ptz CAMERA_ID up|down|left|right",
		Short: "Move a camera one step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := aggregate.ParseDirection(args[1])
			if err != nil {
				return err
			}
			return opts.run(func(ctx context.Context, p *portal) error {
				rc, err := p.views.PTZ(ctx, args[0], direction)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s: pan %d, tilt %d\n", rc.CameraID, rc.Pan, rc.Tilt)
				return nil
			})(cmd, args)
		},
	}
}

func streamCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stream CAMERA_ID on|off",
		Short: "Enable or disable a camera stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[1])
			if err != nil {
				return err
			}
			return opts.run(func(ctx context.Context, p *portal) error {
				if err := p.client.ToggleStream(ctx, args[0], enabled); err != nil {
					return err
				}
				state := "disabled"
				if enabled {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stream of %s %s\n", args[0], state)
				return nil
			})(cmd, args)
		},
	}
}

func healthcheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck TRANSCODER_ID",
		Short: "Ask a transcoder to report its health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(ctx context.Context, p *portal) error {
				resp, err := p.client.Healthcheck(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], resp.Status)
				return nil
			})(cmd, args)
		},
	}
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
