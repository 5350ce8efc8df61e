package client

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Selector chooses which of a job's matches to confirm and finalize.
type Selector func(job ManifestJob) []string

// SelectAll confirms every detected UN number.
func SelectAll(job ManifestJob) []string {
	return job.UNNumbers()
}

// SelectAbove confirms matches scoring at least min.
func SelectAbove(min float64) Selector {
	return func(job ManifestJob) []string {
		var out []string
		for _, m := range job.DGMatches {
			if m.ConfidenceScore >= min {
				out = append(out, m.UNNumber)
			}
		}
		return out
	}
}

type WorkflowRequest struct {
	ShipmentID   string
	FileName     string
	File         io.Reader
	PollInterval time.Duration
	Select       Selector
	// OnStatus receives every successful status poll.
	OnStatus func(*ManifestStatusResponse)
}

type WorkflowResult struct {
	Upload    *UploadResult
	Job       ManifestJob
	Confirmed []string
	Confirm   *ConfirmResult
	Finalize  *FinalizeResult
}

// RunWorkflow uploads a manifest, waits for its analysis, confirms the
// selected goods and finalizes them. The partial result is returned with
// any error.
func (co *Coordinator) RunWorkflow(ctx context.Context, req WorkflowRequest) (*WorkflowResult, error) {
	if req.Select == nil {
		req.Select = SelectAll
	}
	result := &WorkflowResult{}

	upload, err := co.client.UploadManifest(ctx, req.ShipmentID, req.FileName, req.File)
	if err != nil {
		return result, err
	}
	result.Upload = upload

	opts := []PollerOption{WithInterval(req.PollInterval), WithPollLogger(co.log)}
	if req.OnStatus != nil {
		opts = append(opts, WithOnUpdate(req.OnStatus))
	}
	status, err := NewPoller(co.client, req.ShipmentID, opts...).Run(ctx)
	if err != nil {
		return result, fmt.Errorf("waiting for analysis: %w", err)
	}

	job, ok := status.Job(upload.ID)
	if !ok {
		return result, fmt.Errorf("manifest %s is no longer listed for shipment %s", upload.ID, req.ShipmentID)
	}
	result.Job = job
	if job.Status != StatusAwaitingConfirmation && job.Status != StatusConfirmed {
		reason := string(job.Status)
		if job.ErrorMessage != nil {
			reason += ": " + *job.ErrorMessage
		}
		return result, fmt.Errorf("%w: %s", ErrAnalysisEnded, reason)
	}

	selected := req.Select(job)
	if len(selected) == 0 {
		return result, &ContractViolationError{Operation: "workflow", Reason: "no dangerous goods selected for confirmation"}
	}
	result.Confirmed = selected

	confirm, err := co.Confirm(ctx, job, selected)
	if err != nil {
		return result, err
	}
	result.Confirm = confirm

	matches := confirm.Manifest.DGMatches
	if len(matches) == 0 {
		matches = job.DGMatches
	}
	confirmations := BuildConfirmations(matches, selected)
	final, err := co.Finalize(ctx, ManifestTarget(job.ID), confirmations)
	if err != nil {
		return result, err
	}
	result.Finalize = final
	return result, nil
}
