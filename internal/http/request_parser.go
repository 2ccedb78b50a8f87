// Package http provides the HTTP servers of the cost manager services.
//
// This file implements utilities for parsing and validating request data.
// Query parameters and bodies are parsed strictly: a value that is present
// but malformed is rejected rather than replaced by a default.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"costmanager/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ReportQuery holds the parameters of GET /api/report.
type ReportQuery struct {
	UserID int64
	Year   int
	Month  int
}

// ParseReportQuery reads id, year and month. All three are required and must
// be integers; range checks are left to the report engine.
func ParseReportQuery(query url.Values) (ReportQuery, error) {
	id, year, month := query.Get("id"), query.Get("year"), query.Get("month")
	if id == "" || year == "" || month == "" {
		return ReportQuery{}, fmt.Errorf("%w: missing required query parameters: id, year, month", core.ErrInvalidRequest)
	}

	var (
		q    ReportQuery
		errs [3]error
		y, m int64
	)
	q.UserID, errs[0] = parseDigits(id)
	y, errs[1] = parseDigits(year)
	m, errs[2] = parseDigits(month)
	for _, err := range errs {
		if err != nil {
			return ReportQuery{}, fmt.Errorf("%w: id, year and month must be integers", core.ErrInvalidRequest)
		}
	}
	q.Year, q.Month = int(y), int(m)
	return q, nil
}

// parseDigits accepts only unsigned base-10 digits: no sign, no spaces.
func parseDigits(s string) (int64, error) {
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}

// ParseID parses a path segment holding a user id.
func ParseID(s string) (int64, error) {
	id, err := parseDigits(s)
	if err != nil {
		return 0, fmt.Errorf("%w: id must be a number", core.ErrInvalidRequest)
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: request body too large", core.ErrInvalidRequest)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || body[0] == '[' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: malformed JSON body: %v", core.ErrInvalidRequest, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body: %v", core.ErrInvalidRequest, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Int64 returns a required integer field.
func (p *RequestBodyParser) Int64(key string) (int64, error) {
	v := p.Get(key)
	if v == "" {
		return 0, fmt.Errorf("%w: %s is required", core.ErrInvalidRequest, key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidRequest, key)
	}
	return n, nil
}

// Float returns a required numeric field.
func (p *RequestBodyParser) Float(key string) (float64, error) {
	v := p.Get(key)
	if v == "" {
		return 0, fmt.Errorf("%w: %s is required", core.ErrInvalidRequest, key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", core.ErrInvalidRequest, key)
	}
	return f, nil
}

// Time returns an optional timestamp field; the zero time when absent.
func (p *RequestBodyParser) Time(key string, loc *time.Location) (time.Time, error) {
	v := p.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := parseTimestamp(v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s is not a valid date", core.ErrInvalidRequest, key)
	}
	return t, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ParseCostBody reads {description, category, userid, sum, created_at?}.
// Category membership is checked by the cost service.
func ParseCostBody(r *http.Request, loc *time.Location) (core.Cost, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.Cost{}, err
	}

	var (
		c   core.Cost
		err error
	)
	c.Description = p.Get("description")
	c.Category = core.Category(strings.ToLower(p.Get("category")))
	if c.UserID, err = p.Int64("userid"); err != nil {
		return core.Cost{}, err
	}
	if c.Sum, err = p.Float("sum"); err != nil {
		return core.Cost{}, err
	}
	if c.CreatedAt, err = p.Time("created_at", loc); err != nil {
		return core.Cost{}, err
	}
	return c, nil
}

// ParseUserBody reads {id, first_name, last_name, birthday}.
func ParseUserBody(r *http.Request, loc *time.Location) (core.User, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.User{}, err
	}

	var (
		u   core.User
		err error
	)
	if u.ID, err = p.Int64("id"); err != nil {
		return core.User{}, err
	}
	u.FirstName = p.Get("first_name")
	u.LastName = p.Get("last_name")
	if u.Birthday, err = p.Time("birthday", loc); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
