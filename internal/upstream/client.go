package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/logger"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/middleware/requestid"
)

const (
	maxErrorBody = 1 << 20
	maxListBody  = 8 << 20
)

// Observer receives latency of every backend call.
type Observer interface {
	ObserveUpstream(endpoint string, status int, duration time.Duration)
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to outgoing backend calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the school REST backend that owns dropdowns and schedules.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   *zap.Logger

	// listLimit caps dropdown and occupancy bodies.
	listLimit int64
}

// NewClient builds a Client. A nil httpClient gets a client with the given timeout.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, observer Observer, logger *zap.Logger) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		observer:  observer,
		logger:    logger,
		listLimit: maxListBody,
	}
}

// ListClasses calls GET /dropdown/kelas.
func (c *Client) ListClasses(ctx context.Context) ([]models.Class, error) {
	var out []models.Class
	if err := c.getList(ctx, "dropdown_kelas", "/dropdown/kelas", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDays calls GET /dropdown/hari?kelas_id= for the days active for a class.
func (c *Client) ListDays(ctx context.Context, classID models.ID) ([]models.Day, error) {
	var out []models.Day
	query := url.Values{"kelas_id": {classID.String()}}
	if err := c.getList(ctx, "dropdown_hari", "/dropdown/hari", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTimeSlots calls GET /dropdown/waktu. The list is school-wide.
func (c *Client) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	if err := c.getList(ctx, "dropdown_waktu", "/dropdown/waktu", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOfferings calls GET /dropdown/offering?kelas_id=.
func (c *Client) ListOfferings(ctx context.Context, classID models.ID) ([]models.Offering, error) {
	var out []models.Offering
	query := url.Values{"kelas_id": {classID.String()}}
	if err := c.getList(ctx, "dropdown_offering", "/dropdown/offering", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTeacherOfferings calls GET /dropdown/guru-mapel.
func (c *Client) ListTeacherOfferings(ctx context.Context) ([]models.TeacherOffering, error) {
	var out []models.TeacherOffering
	if err := c.getList(ctx, "dropdown_guru_mapel", "/dropdown/guru-mapel", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOccupancy calls GET /jadwal-mapel/terpakai for one class and day,
// including globally reserved non-instructional slots.
func (c *Client) ListOccupancy(ctx context.Context, classID, dayID models.ID) ([]models.OccupancyRecord, error) {
	var out []models.OccupancyRecord
	query := url.Values{
		"kelas_id":   {classID.String()},
		"hari_id":    {dayID.String()},
		"includeAll": {"true"},
	}
	if err := c.getList(ctx, "jadwal_terpakai", "/jadwal-mapel/terpakai", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSchedules calls POST /jadwal-mapel with the assembled items.
func (c *Client) CreateSchedules(ctx context.Context, items []models.SubmissionItem) (*models.SubmitResult, error) {
	return c.send(ctx, "jadwal_create", http.MethodPost, "/jadwal-mapel", models.CreateSchedulePayload{Items: items})
}

// UpdateSchedule calls PUT /jadwal-mapel/:id with a single item.
func (c *Client) UpdateSchedule(ctx context.Context, scheduleID models.ID, item models.SubmissionItem) (*models.SubmitResult, error) {
	return c.send(ctx, "jadwal_update", http.MethodPut, "/jadwal-mapel/"+url.PathEscape(scheduleID.String()), item)
}

func (c *Client) getList(ctx context.Context, endpoint, path string, query url.Values, dest interface{}) error {
	resp, err := c.do(ctx, endpoint, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.listLimit+1))
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrUpstream, fmt.Sprintf("read %s", path))
	}
	if int64(len(body)) > c.listLimit {
		return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("%s response exceeds %d bytes", path, c.listLimit))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, path, body)
	}
	if err := decodeList(body, dest); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrUpstream, fmt.Sprintf("decode %s", path))
	}
	return nil
}

func (c *Client) send(ctx context.Context, endpoint, method, path string, payload interface{}) (*models.SubmitResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "encode schedule payload")
	}
	resp, err := c.do(ctx, endpoint, method, path, nil, raw)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstream, fmt.Sprintf("read %s", path))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, submitError(resp.StatusCode, body)
	}

	result := &models.SubmitResult{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			c.logger.Debug("schedule response not json", zap.String("path", path), zap.Error(err))
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body []byte) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observer != nil {
		c.observer.ObserveUpstream(endpoint, status, duration)
	}
	if err != nil {
		logger.WithContext(ctx, c.logger).Warn("backend call failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Duration("latency", duration),
			zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstream, fmt.Sprintf("call %s %s", method, path))
	}
	c.logger.Debug("backend call",
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.Duration("latency", duration))
	return resp, nil
}

// decodeList accepts a bare array or a {"data": [...]} envelope.
func decodeList(body []byte, dest interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return err
		}
		if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
			return nil
		}
		trimmed = envelope.Data
	}
	return json.Unmarshal(trimmed, dest)
}

func statusError(status int, path string, body []byte) error {
	var payload struct {
		Message string `json:"msg"`
	}
	_ = json.Unmarshal(body, &payload)
	message := fmt.Sprintf("backend %s returned %d", path, status)
	if payload.Message != "" {
		message = fmt.Sprintf("%s: %s", message, payload.Message)
	}
	switch status {
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrUnauthorized, message)
	case http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, message)
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, message)
	default:
		return appErrors.Clone(appErrors.ErrUpstream, message)
	}
}

func submitError(status int, body []byte) error {
	subErr := &models.SubmitError{StatusCode: status}
	if err := json.Unmarshal(body, subErr); err != nil {
		subErr.Message = strings.TrimSpace(string(body))
	}
	subErr.StatusCode = status

	switch {
	case subErr.HasConflicts() || status == http.StatusConflict:
		return appErrors.WrapAs(subErr, appErrors.ErrConflict, "schedule conflicts detected")
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return appErrors.WrapAs(subErr, appErrors.ErrValidation, "schedule rejected by backend")
	case status == http.StatusUnauthorized:
		return appErrors.WrapAs(subErr, appErrors.ErrUnauthorized, "backend rejected credentials")
	case status == http.StatusForbidden:
		return appErrors.WrapAs(subErr, appErrors.ErrForbidden, "backend denied schedule change")
	case status == http.StatusNotFound:
		return appErrors.WrapAs(subErr, appErrors.ErrNotFound, "schedule not found")
	default:
		return appErrors.WrapAs(subErr, appErrors.ErrUpstream, "schedule backend error")
	}
}
