// Package apiclient talks to the ride server over its JSON/HTTP surface.
//
// Every response is checked for an explicit success indicator; a 2xx status
// with an unexpected body is a protocol failure, never a silent success.
// Calls have no mid-flight cancellation semantics on the server: abandoning
// the context stops waiting for the answer, it does not undo a ride that was
// already created or transitioned.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"ridehail/internal/domain"
	"ridehail/internal/failure"
)

const (
	// DefaultTimeout bounds every call when the caller does not configure one.
	DefaultTimeout = 15 * time.Second

	// IdempotencyHeader carries the per-submission key on ride creation.
	IdempotencyHeader = "Idempotency-Key"

	maxBodyBytes = 1 << 20
)

// Client is a ride API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNewRelic instruments outgoing calls as external segments of the
// transaction found in the request context.
func WithNewRelic(app *newrelic.Application) Option {
	return func(c *Client) {
		if app == nil {
			return
		}
		hc := *c.httpClient
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = newrelic.NewRoundTripper(base)
		c.httpClient = &hc
	}
}

// New creates a Client for the server at baseURL. A non-positive timeout
// falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRide submits a ride request and returns the new ride identifier.
func (c *Client) CreateRide(ctx context.Context, req domain.RideRequest, idempotencyKey string) (string, error) {
	const op = "create ride"

	if req.UserID == "" {
		return "", failure.Validation(op, "Please log in before booking a ride.", ErrMissingID)
	}
	if !req.Source.Valid() || !req.Destination.Valid() {
		return "", failure.Validation(op, "Pickup and drop-off must be valid locations.", domain.ErrInvalidLocation)
	}

	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(IdempotencyHeader, idempotencyKey)
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, "/api/v1/rides", createRideRequest{
		UserID:      req.UserID,
		Source:      toGeopointJSON(req.Source),
		Destination: toGeopointJSON(req.Destination),
	}, header)
	if err != nil {
		return "", err
	}

	env, err := decodeEnvelope(op, status, raw)
	if err != nil {
		return "", err
	}

	id := env.rideID()
	if id == "" {
		return "", failure.Protocol(op, "The server did not return a ride number.", fmt.Errorf("%w: missing ride id", ErrUnexpectedResponseFormat))
	}
	return id, nil
}

// ListRides returns the rides visible to a driver, in server order.
func (c *Client) ListRides(ctx context.Context, driverID string) ([]domain.Ride, error) {
	const op = "list rides"

	if driverID == "" {
		return nil, failure.Validation(op, "Please log in as a driver first.", ErrMissingID)
	}

	status, raw, err := c.do(ctx, op, http.MethodGet, "/api/v1/viewAllRides/"+url.PathEscape(driverID), nil, nil)
	if err != nil {
		return nil, err
	}

	items, err := decodeRideList(op, status, raw)
	if err != nil {
		return nil, err
	}

	rides := make([]domain.Ride, 0, len(items))
	for _, item := range items {
		ride, err := item.toDomain()
		if err != nil {
			return nil, failure.Protocol(op, "The server sent a ride we could not understand.", fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err))
		}
		rides = append(rides, ride)
	}
	return rides, nil
}

// GetRide fetches the server's current view of one ride.
func (c *Client) GetRide(ctx context.Context, rideID string) (domain.Ride, error) {
	const op = "get ride"

	if rideID == "" {
		return domain.Ride{}, failure.Validation(op, "A ride is required.", ErrMissingID)
	}

	status, raw, err := c.do(ctx, op, http.MethodGet, "/api/v1/rides/"+url.PathEscape(rideID), nil, nil)
	if err != nil {
		return domain.Ride{}, err
	}

	env, err := decodeEnvelope(op, status, raw)
	if err != nil {
		return domain.Ride{}, err
	}

	var item rideJSON
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &item) != nil {
		return domain.Ride{}, failure.Protocol(op, "The server sent a ride we could not understand.", fmt.Errorf("%w: missing ride data", ErrUnexpectedResponseFormat))
	}
	ride, err := item.toDomain()
	if err != nil {
		return domain.Ride{}, failure.Protocol(op, "The server sent a ride we could not understand.", fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err))
	}
	return ride, nil
}

// AcceptRide asks the server to assign the ride to the driver.
func (c *Client) AcceptRide(ctx context.Context, rideID, driverID string) error {
	const op = "accept ride"

	if rideID == "" || driverID == "" {
		return failure.Validation(op, "A ride and a driver are required.", ErrMissingID)
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, "/api/v1/acceptRide", rideActionRequest{DriverID: driverID, RideID: rideID}, nil)
	if err != nil {
		return err
	}
	_, err = decodeEnvelope(op, status, raw)
	return err
}

// FinishRide completes the ride and returns the server-computed fare.
func (c *Client) FinishRide(ctx context.Context, rideID, driverID string) (float64, error) {
	const op = "finish ride"

	if rideID == "" || driverID == "" {
		return 0, failure.Validation(op, "A ride and a driver are required.", ErrMissingID)
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, "/api/v1/trips/end", rideActionRequest{DriverID: driverID, RideID: rideID}, nil)
	if err != nil {
		return 0, err
	}

	env, err := decodeEnvelope(op, status, raw)
	if err != nil {
		return 0, err
	}
	if env.Fare == nil || math.IsNaN(*env.Fare) || math.IsInf(*env.Fare, 0) || *env.Fare < 0 {
		return 0, failure.Protocol(op, "The ride was finished but no valid fare was returned.", fmt.Errorf("%w: missing or invalid fare", ErrUnexpectedResponseFormat))
	}
	return *env.Fare, nil
}

// CancelRide moves a waiting or in-progress ride to CANCELLED.
func (c *Client) CancelRide(ctx context.Context, rideID, reason string) error {
	const op = "cancel ride"

	if rideID == "" {
		return failure.Validation(op, "A ride is required.", ErrMissingID)
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, "/api/v1/rides/"+url.PathEscape(rideID)+"/cancel", cancelRideRequest{Reason: reason}, nil)
	if err != nil {
		return err
	}
	_, err = decodeEnvelope(op, status, raw)
	return err
}

// UpdateDriverLocation uploads the driver's current position.
func (c *Client) UpdateDriverLocation(ctx context.Context, driverID string, point domain.Geopoint) error {
	const op = "update driver location"

	if driverID == "" {
		return failure.Validation(op, "Please log in as a driver first.", ErrMissingID)
	}
	if !point.Valid() {
		return failure.Validation(op, "The captured position is not a valid location.", domain.ErrInvalidLocation)
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, "/api/v1/updateDriverLocation", driverLocationRequest{
		DriverID:  driverID,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
	}, nil)
	if err != nil {
		return err
	}
	_, err = decodeEnvelope(op, status, raw)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, header http.Header) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, failure.Validation(op, "The request could not be encoded.", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, failure.Validation(op, "The request could not be built.", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api call failed", "op", op, "method", method, "path", path, "error", err)
		return 0, nil, transportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, transportError(op, err)
	}

	c.logger.Debug("api call",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.StatusCode, raw, nil
}

func transportError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return failure.Transport(op, "The request was cancelled.", err)
	case isTimeout(err):
		return failure.Transport(op, "The server took too long to respond. Please try again.", fmt.Errorf("%w: %v", ErrTimeout, err))
	default:
		return failure.Transport(op, "Could not reach the server. Please check your connection.", fmt.Errorf("%w: %v", ErrUnreachable, err))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func decodeEnvelope(op string, status int, raw []byte) (*envelope, error) {
	var env envelope
	parseErr := json.Unmarshal(raw, &env)

	if status < 200 || status > 299 {
		if parseErr == nil {
			if err := rejectionError(op, env); err != nil {
				return nil, err
			}
		}
		return nil, failure.Transport(op,
			messageOr(env.Message, fmt.Sprintf("The server returned an error (%d). Please try again.", status)),
			&StatusError{StatusCode: status, Code: env.Code, Message: env.Message},
		)
	}

	if parseErr != nil {
		return nil, failure.Protocol(op, "The server sent a response we could not understand.", fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, parseErr))
	}
	if env.Success == nil {
		return nil, failure.Protocol(op, "The server sent a response we could not understand.", fmt.Errorf("%w: missing success indicator", ErrUnexpectedResponseFormat))
	}
	if !*env.Success {
		if err := rejectionError(op, env); err != nil {
			return nil, err
		}
		return nil, failure.Transport(op, messageOr(env.Message, "The server rejected the request."), ErrRejected)
	}
	return &env, nil
}

// decodeRideList accepts a bare JSON array or an object carrying the array in data.
func decodeRideList(op string, status int, raw []byte) ([]rideJSON, error) {
	if status < 200 || status > 299 {
		_, err := decodeEnvelope(op, status, raw)
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []rideJSON
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, failure.Protocol(op, "The server sent a ride list we could not understand.", fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err))
		}
		return items, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, failure.Protocol(op, "The server sent a ride list we could not understand.", fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err))
	}
	if env.Success != nil && !*env.Success {
		if err := rejectionError(op, env); err != nil {
			return nil, err
		}
		return nil, failure.Transport(op, messageOr(env.Message, "The server rejected the request."), ErrRejected)
	}

	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) == 0:
		return nil, failure.Protocol(op, "The server sent a ride list we could not understand.", fmt.Errorf("%w: missing data", ErrUnexpectedResponseFormat))
	case bytes.Equal(data, []byte("null")) && env.Success != nil:
		return []rideJSON{}, nil
	case data[0] != '[':
		return nil, failure.Protocol(op, "The server sent a ride list we could not understand.", fmt.Errorf("%w: data is not a list", ErrUnexpectedResponseFormat))
	}

	var items []rideJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, failure.Protocol(op, "The server sent a ride list we could not understand.", fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err))
	}
	return items, nil
}

// rejectionError maps a known server reason code to a classified error, or returns nil.
func rejectionError(op string, env envelope) error {
	switch env.Code {
	case CodeInvalidTransition:
		return failure.StateConflict(op, messageOr(env.Message, "This ride is no longer available for that action."), domain.ErrInvalidTransition)
	case CodeNotAssignedDriver:
		return failure.StateConflict(op, messageOr(env.Message, "This ride is assigned to another driver."), domain.ErrNotAssignedDriver)
	case CodeValidation:
		return failure.Validation(op, messageOr(env.Message, "The request was invalid."), ErrRejected)
	case CodeNotFound:
		return failure.StateConflict(op, messageOr(env.Message, "This ride no longer exists."), ErrNotFound)
	case CodeRideBusy:
		return failure.StateConflict(op, messageOr(env.Message, "This ride is being updated. Please try again."), ErrRideBusy)
	default:
		return nil
	}
}

func (e *envelope) rideID() string {
	if e.RideID != "" {
		return string(e.RideID)
	}
	if e.ID != "" {
		return string(e.ID)
	}
	if len(e.Data) == 0 {
		return ""
	}
	var nested struct {
		RideID flexID `json:"rideId"`
		ID     flexID `json:"id"`
	}
	if err := json.Unmarshal(e.Data, &nested); err != nil {
		return ""
	}
	if nested.RideID != "" {
		return string(nested.RideID)
	}
	return string(nested.ID)
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fallback
}
