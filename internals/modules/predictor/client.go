package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pulsewatch/pkg/apperror"

	"github.com/google/uuid"
)

// HTTPClient reads predictions from the prediction service:
// GET {base}/v1/predictions/{endpoint_id}.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPClient) Predict(ctx context.Context, endpointID uuid.UUID) (Prediction, error) {
	const op string = "client.predictor.predict"

	u := c.baseURL + "/v1/predictions/" + url.PathEscape(endpointID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Prediction{}, apperror.New(apperror.Internal, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Prediction{}, apperror.New(apperror.Dependency, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Prediction{}, &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "no model for endpoint"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, &apperror.Error{
			Kind:    apperror.Dependency,
			Op:      op,
			Err:     fmt.Errorf("prediction service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Message: "prediction service unavailable",
		}
	}

	var p Prediction
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return Prediction{}, apperror.New(apperror.Dependency, op, fmt.Errorf("decode prediction: %w", err))
	}
	if p.EndpointID == uuid.Nil {
		p.EndpointID = endpointID
	}
	return p.Normalized(), nil
}
