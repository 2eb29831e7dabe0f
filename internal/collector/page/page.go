// Package page measures a web page: status, response time and whether the
// body matches a pattern.
package page

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/version"
)

// DefaultTimeout bounds one check end to end.
const DefaultTimeout = 30 * time.Second

// Config describes one monitored page.
type Config struct {
	URL         string            `yaml:"url"          json:"url"`
	Regex       string            `yaml:"regex"        json:"regex,omitempty"`
	QueryParams map[string]string `yaml:"query_params" json:"query_params,omitempty"`
	Timeout     time.Duration     `yaml:"http_timeout" json:"http_timeout,omitempty"`
}

// Validate checks the URL and compiles the pattern.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("url %q: %w", c.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q: want an absolute http or https url", c.URL)
	}
	if _, err := regexp.Compile(c.Regex); err != nil {
		return fmt.Errorf("regex for %s: %w", c.URL, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("http_timeout for %s cannot be negative", c.URL)
	}
	return nil
}

// Checker fetches one page per Collect call.
type Checker struct {
	url    string
	query  map[string]string
	re     *regexp.Regexp
	client *resty.Client
}

// New validates cfg and prepares an HTTP client.
func New(cfg Config) (*Checker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &Checker{
		url:   cfg.URL,
		query: cfg.QueryParams,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "webcheck/"+version.Get().Version),
	}
	if cfg.Regex != "" {
		c.re = regexp.MustCompile(cfg.Regex)
	}
	return c, nil
}

// Name is the checked URL.
func (c *Checker) Name() string { return c.url }

// Collect fetches the page. Any HTTP status is a measurement; only transport
// failures are errors.
func (c *Checker) Collect(ctx context.Context) (record.Record, error) {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(c.query).
		Get(c.url)
	if err != nil {
		return record.Record{}, fmt.Errorf("check %s: %w", c.url, err)
	}
	elapsed := time.Since(start)

	rec := record.Record{
		Time:         time.Now().UTC().Unix(),
		URL:          c.url,
		Status:       resp.StatusCode(),
		ResponseTime: record.RoundMillis(elapsed.Seconds()),
	}
	if c.re != nil {
		rec.RegexMatched = record.Matched(c.re.Match(resp.Body()))
	}
	return rec, nil
}

// CheckRegex reports whether pattern matches text, or nil for an empty pattern.
func CheckRegex(text, pattern string) (*bool, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return record.Matched(re.MatchString(text)), nil
}
