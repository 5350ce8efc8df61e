package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// UploadManifest sends a manifest file for a shipment. Any refusal by the
// server other than an authentication failure is an *UploadRejectedError.
func (c *Client) UploadManifest(ctx context.Context, shipmentID, filename string, file io.Reader) (*UploadResult, error) {
	if strings.TrimSpace(shipmentID) == "" {
		return nil, &ContractViolationError{Operation: "upload", Reason: "shipment id is required"}
	}
	if file == nil {
		return nil, &ContractViolationError{Operation: "upload", Reason: "file is required"}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("shipment_id", shipmentID); err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/manifests/upload-and-analyze/", &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	status, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		apiErr := newAPIError(status, body)
		if errors.Is(apiErr, ErrUnauthorized) {
			return nil, apiErr
		}
		return nil, &UploadRejectedError{StatusCode: status, Message: apiErr.Message}
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.cache.InvalidateFor(MutationUpload, shipmentID)
	c.log.Info("manifest uploaded",
		zap.String("shipment_id", shipmentID),
		zap.String("manifest_id", result.ID))
	return &result, nil
}
