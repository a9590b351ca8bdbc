package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/models"
)

const (
	httpSourceName = "http"
	// httpCodeBatch keeps NAV request URLs well under common length limits
	httpCodeBatch = 100
	apiDateLayout = "2006-01-02"
)

// HTTPSource reads market data from a JSON NAV API
type HTTPSource struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	logger     *logrus.Entry
}

type apiCalendar struct {
	Dates []string `json:"dates"`
}

type apiPoint struct {
	Code  string  `json:"code"`
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type apiFund struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
}

// NewHTTPSource creates a NAV API client rooted at baseURL
func NewHTTPSource(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, logger *logrus.Logger) *HTTPSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.WithField("source", httpSourceName),
	}
}

// Name returns the name of the data source
func (s *HTTPSource) Name() string {
	return httpSourceName
}

// TradingDates returns the open days in [begin, end]
func (s *HTTPSource) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	var body apiCalendar
	if err := s.get(ctx, "/calendar", rangeQuery(begin, end), &body); err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(body.Dates))
	for _, d := range body.Dates {
		t, err := time.Parse(apiDateLayout, d)
		if err != nil {
			return nil, NewDataSourceError(httpSourceName, ErrCodeInvalidData, "bad calendar date "+d, err)
		}
		dates = append(dates, t)
	}
	return dates, nil
}

// FundNAV returns NAV points for codes in [begin, end]
func (s *HTTPSource) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error) {
	var points []models.NAVPoint
	for start := 0; start < len(codes); start += httpCodeBatch {
		batch := codes[start:min(start+httpCodeBatch, len(codes))]
		q := rangeQuery(begin, end)
		q.Set("codes", strings.Join(batch, ","))
		q.Set("nav_type", string(navType))

		var body []apiPoint
		if err := s.get(ctx, "/nav", q, &body); err != nil {
			return nil, err
		}
		converted, err := convertPoints(body, "")
		if err != nil {
			return nil, err
		}
		points = append(points, converted...)
	}
	return points, nil
}

// IndexQuotes returns the closing prices of an index in [begin, end]
func (s *HTTPSource) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	var body []apiPoint
	if err := s.get(ctx, "/index/"+url.PathEscape(indexCode), rangeQuery(begin, end), &body); err != nil {
		return nil, err
	}
	return convertPoints(body, indexCode)
}

// Instruments returns the fund master data known for codes
func (s *HTTPSource) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	var out []models.Instrument
	for start := 0; start < len(codes); start += httpCodeBatch {
		batch := codes[start:min(start+httpCodeBatch, len(codes))]
		q := url.Values{}
		q.Set("codes", strings.Join(batch, ","))

		var body []apiFund
		if err := s.get(ctx, "/funds", q, &body); err != nil {
			return nil, err
		}
		for _, f := range body {
			out = append(out, models.Instrument{
				Code:     f.Code,
				Name:     f.Name,
				Category: models.CategoryFromTypeName(f.TypeName),
			})
		}
	}
	return out, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := s.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NewDataSourceError(httpSourceName, ErrCodeNetworkError, "failed to create request", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		return NewDataSourceError(httpSourceName, ErrCodeNetworkError, "request to "+path+" failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewDataSourceError(httpSourceName, ErrCodeAuthenticationFailed, "invalid API key", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewDataSourceError(httpSourceName, ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	case resp.StatusCode == http.StatusNotFound:
		return NewDataSourceError(httpSourceName, ErrCodeNotFound, path+" not found", nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NewDataSourceError(httpSourceName, ErrCodeServerError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewDataSourceError(httpSourceName, ErrCodeInvalidData, "failed to parse response", err)
	}
	s.logger.WithField("path", path).Debug("Fetched market data")
	return nil
}

func rangeQuery(begin, end time.Time) url.Values {
	q := url.Values{}
	q.Set("begin", begin.Format(apiDateLayout))
	q.Set("end", end.Format(apiDateLayout))
	return q
}

func convertPoints(in []apiPoint, code string) ([]models.NAVPoint, error) {
	out := make([]models.NAVPoint, 0, len(in))
	for _, p := range in {
		d, err := time.Parse(apiDateLayout, p.Date)
		if err != nil {
			return nil, NewDataSourceError(httpSourceName, ErrCodeInvalidData, "bad date "+p.Date, err)
		}
		c := p.Code
		if c == "" {
			c = code
		}
		out = append(out, models.NAVPoint{Code: c, Date: d, Value: p.Value})
	}
	return out, nil
}
