package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"safeshipper/manifests/internal/client"
)

func newShipmentCommand(ctx *commandContext) *cobra.Command {
	shipmentCmd := &cobra.Command{
		Use:   "shipment",
		Short: "Create and inspect shipments",
	}

	var customer string
	createCmd := &cobra.Command{
		Use:   "create <tracking-number>",
		Short: "Create a shipment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shipment, err := ctx.client.CreateShipment(cmd.Context(), args[0], customer)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, shipment)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created shipment %s (%s)\n", shipment.ID, shipment.TrackingNumber)
			return nil
		},
	}
	createCmd.Flags().StringVar(&customer, "customer", "", "Customer name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			shipments, err := ctx.client.ListShipments(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, shipments)
			}
			if len(shipments) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No shipments")
				return nil
			}
			rows := make([][]string, 0, len(shipments))
			for _, s := range shipments {
				rows = append(rows, []string{s.ID, s.TrackingNumber, s.CustomerName, s.Status, strconv.Itoa(s.ItemCount)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Shipment", "Tracking", "Customer", "Status", "Items"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <shipment-id>",
		Short: "Show a shipment and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shipment, err := ctx.client.GetShipment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, shipment)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", shipment.TrackingNumber, shipment.CustomerName, shipment.Status)
			rows := make([][]string, 0, len(shipment.Items))
			for _, item := range shipment.Items {
				un := ""
				if item.UNNumber != nil {
					un = *item.UNNumber
				}
				rows = append(rows, []string{
					un,
					item.Description,
					strconv.Itoa(item.Quantity),
					strconv.FormatFloat(item.WeightKg, 'f', -1, 64),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"UN", "Description", "Qty", "Kg"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}

	shipmentCmd.AddCommand(createCmd, listCmd, showCmd)
	return shipmentCmd
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect uploaded manifests",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent manifests across shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ctx.client.ListManifests(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No manifests")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobs(jobs))
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <manifest-id>",
		Short: "Show a manifest and its detected dangerous goods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client.GetManifest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderJobs([]client.ManifestJob{*job}))
			if job.MatchesReady() && len(job.DGMatches) > 0 {
				fmt.Fprint(out, renderMatches(job.DGMatches))
			}
			if job.ErrorMessage != nil {
				fmt.Fprintf(out, "failed: %s\n", *job.ErrorMessage)
			}
			return nil
		},
	}

	manifestCmd.AddCommand(listCmd, showCmd)
	return manifestCmd
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <shipment-id> <file>",
		Short: "Upload a manifest and queue it for analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			defer f.Close()

			result, err := ctx.client.UploadManifest(cmd.Context(), args[0], args[1], f)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded manifest %s (%s)\n", result.ID, result.Status)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <shipment-id>",
		Short: "Show the analysis status of a shipment's manifests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status *client.ManifestStatusResponse
			var err error
			if wait {
				poller := client.NewPoller(ctx.client, args[0],
					client.WithInterval(ctx.pollInterval),
					client.WithPollLogger(ctx.log),
					client.WithOnUpdate(func(r *client.ManifestStatusResponse) {
						if !ctx.jsonOutput {
							fmt.Fprintf(cmd.ErrOrStderr(), "%s  %s\n", time.Now().Format("15:04:05"), r.OverallStatus)
						}
					}))
				status, err = poller.Run(cmd.Context())
			} else {
				status, err = ctx.client.GetManifestStatus(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shipment %s: %s\n", status.Shipment.TrackingNumber, status.OverallStatus)
			if len(status.Manifests) > 0 {
				fmt.Fprint(out, renderJobs(status.Manifests))
			}
			for _, job := range status.Manifests {
				if job.MatchesReady() && len(job.DGMatches) > 0 {
					fmt.Fprintf(out, "\n%s\n", job.FileName)
					fmt.Fprint(out, renderMatches(job.DGMatches))
				}
				if job.ErrorMessage != nil {
					fmt.Fprintf(out, "%s failed: %s\n", job.FileName, *job.ErrorMessage)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until analysis settles")
	return cmd
}

func newConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <manifest-id> <UN number>...",
		Short: "Confirm detected dangerous goods",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client.GetManifest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := ctx.coordinator().Confirm(cmd.Context(), *job, normalizeUNArgs(args[1:]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			renderCompatibility(cmd, result.CompatibilityResult)
			return nil
		},
	}
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var viaShipment bool
	var quantities, weights []string

	cmd := &cobra.Command{
		Use:   "finalize <manifest-id> [UN number...]",
		Short: "Commit confirmed dangerous goods to the shipment",
		Long: "Finalize the listed UN numbers, or every confirmed match when none are given.\n" +
			"Use --qty UN1203=4 and --weight UN1203=20.5 to override extracted values.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client.GetManifest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := applyEdits(job, quantities, weights); err != nil {
				return err
			}

			selected := normalizeUNArgs(args[1:])
			if len(selected) == 0 {
				for _, m := range job.DGMatches {
					if m.IsConfirmed {
						selected = append(selected, m.UNNumber)
					}
				}
			}
			if len(selected) == 0 {
				return errors.New("no UN numbers given and none confirmed")
			}

			target := client.ManifestTarget(job.ID)
			if viaShipment {
				target = client.ShipmentDocumentTarget(job.ShipmentID, job.DocumentID)
			}

			result, err := ctx.coordinator().Finalize(cmd.Context(), target, client.BuildConfirmations(job.DGMatches, selected))
			if err != nil {
				var compat *client.CompatibilityError
				if errors.As(err, &compat) && !ctx.jsonOutput {
					renderCompatibility(cmd, compat.Result)
				}
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d items created)\n", result.Message, result.CreatedItemsCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaShipment, "via-shipment", false, "Finalize through the shipment endpoint")
	cmd.Flags().StringArrayVar(&quantities, "qty", nil, "Quantity override as UN=count")
	cmd.Flags().StringArrayVar(&weights, "weight", nil, "Weight override as UN=kg")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var minConfidence float64
	cmd := &cobra.Command{
		Use:   "run <shipment-id> <file>",
		Short: "Upload, wait for analysis, confirm and finalize in one go",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			defer f.Close()

			result, err := ctx.coordinator().RunWorkflow(cmd.Context(), client.WorkflowRequest{
				ShipmentID:   args[0],
				FileName:     args[1],
				File:         f,
				PollInterval: ctx.pollInterval,
				Select:       client.SelectAbove(minConfidence),
				OnStatus: func(r *client.ManifestStatusResponse) {
					if !ctx.jsonOutput {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s  %s\n", time.Now().Format("15:04:05"), r.OverallStatus)
					}
				},
			})
			if err != nil {
				var compat *client.CompatibilityError
				if errors.As(err, &compat) && !ctx.jsonOutput {
					renderCompatibility(cmd, compat.Result)
				}
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderMatches(result.Job.DGMatches))
			fmt.Fprintf(out, "Confirmed %s\n", strings.Join(result.Confirmed, ", "))
			fmt.Fprintf(out, "%s (%d items created)\n", result.Finalize.Message, result.Finalize.CreatedItemsCount)
			return nil
		},
	}
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.8, "Confirm matches scoring at least this")
	return cmd
}

func normalizeUNArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if un := client.NormalizeUNNumber(a); un != "" {
			out = append(out, un)
		}
	}
	return out
}

// applyEdits parses UN=value overrides and applies them to job's matches.
func applyEdits(job *client.ManifestJob, quantities, weights []string) error {
	for _, q := range quantities {
		un, raw, err := parseOverride("--qty", q)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid --qty %q: %w", q, err)
		}
		if err := job.EditMatch(un, &n, nil); err != nil {
			return err
		}
	}
	for _, w := range weights {
		un, raw, err := parseOverride("--weight", w)
		if err != nil {
			return err
		}
		kg, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid --weight %q: %w", w, err)
		}
		if err := job.EditMatch(un, nil, &kg); err != nil {
			return err
		}
	}
	return nil
}

func parseOverride(flag, value string) (string, string, error) {
	un, raw, ok := strings.Cut(value, "=")
	normalized := normalizeUNArgs([]string{un})
	if !ok || len(normalized) == 0 {
		return "", "", fmt.Errorf("invalid %s %q, want UN=value", flag, value)
	}
	return normalized[0], strings.TrimSpace(raw), nil
}
