package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is LeetCode's public GraphQL endpoint.
const DefaultBaseURL = "https://leetcode.com/graphql"

// maxResponseBytes bounds how much of a feed response is read.
const maxResponseBytes = 1 << 20

// DefaultLimit is used when a caller asks for a non-positive number of submissions.
const DefaultLimit = 20

const recentAcQuery = `query recentAcSubmissions($username: String!, $limit: Int!) {
  recentAcSubmissionList(username: $username, limit: $limit) {
    title
    titleSlug
    timestamp
  }
}`

const questionQuery = `query questionTitle($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    title
    difficulty
  }
}`

// ClientConfig configures a LeetCodeClient.
type ClientConfig struct {
	BaseURL    string        // GraphQL endpoint (default DefaultBaseURL)
	Timeout    time.Duration // per-request HTTP timeout (default 5s)
	RatePerSec float64       // outbound token rate; <= 0 means unlimited
	Burst      int           // token bucket size (default 1)
	HTTPClient *http.Client  // optional; Timeout is applied when nil
}

// LeetCodeClient implements Feed and Catalog against LeetCode's GraphQL API.
type LeetCodeClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

var (
	_ Feed    = (*LeetCodeClient)(nil)
	_ Catalog = (*LeetCodeClient)(nil)
)

// NewLeetCodeClient builds a client from cfg.
func NewLeetCodeClient(cfg ClientConfig, logger *zap.Logger) *LeetCodeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeetCodeClient{
		baseURL: cfg.BaseURL,
		http:    hc,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     logger,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *LeetCodeClient) do(ctx context.Context, query string, vars map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", ErrFeedUnavailable, err)
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrFeedUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrFeedUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://leetcode.com")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.RecordFeedRequest(false, time.Since(start))
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()
	telemetry.RecordFeedRequest(resp.StatusCode == http.StatusOK, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrFeedUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var env gqlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrFeedUnavailable, err)
	}
	if len(env.Errors) > 0 {
		return fmt.Errorf("%w: graphql: %s", ErrFeedUnavailable, env.Errors[0].Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrFeedUnavailable)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrFeedUnavailable, err)
	}
	return nil
}

// FetchRecentAccepted returns the user's latest accepted submissions.
// Timestamps that fail to parse are reported as 0.
func (c *LeetCodeClient) FetchRecentAccepted(ctx context.Context, username string, limit int) ([]Accepted, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: no username", ErrFeedUnavailable)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var data struct {
		List []struct {
			Title     string `json:"title"`
			TitleSlug string `json:"titleSlug"`
			Timestamp string `json:"timestamp"`
		} `json:"recentAcSubmissionList"`
	}
	if err := c.do(ctx, recentAcQuery, map[string]any{"username": username, "limit": limit}, &data); err != nil {
		return nil, err
	}

	out := make([]Accepted, 0, len(data.List))
	for _, s := range data.List {
		ts, err := strconv.ParseFloat(strings.TrimSpace(s.Timestamp), 64)
		if err != nil {
			c.log.Debug("submission feed: unparsable timestamp",
				zap.String("problem_ref", s.TitleSlug),
				zap.String("timestamp", s.Timestamp))
			ts = 0
		}
		out = append(out, Accepted{
			ProblemRef:             s.TitleSlug,
			Title:                  s.Title,
			AcceptedAtEpochSeconds: ts,
		})
	}
	return out, nil
}

// LookupProblem returns title and difficulty for a problem slug.
func (c *LeetCodeClient) LookupProblem(ctx context.Context, ref string) (Problem, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Problem{}, ErrProblemNotFound
	}

	var data struct {
		Question *struct {
			Title      string `json:"title"`
			Difficulty string `json:"difficulty"`
		} `json:"question"`
	}
	if err := c.do(ctx, questionQuery, map[string]any{"titleSlug": ref}, &data); err != nil {
		return Problem{}, err
	}
	if data.Question == nil {
		return Problem{}, ErrProblemNotFound
	}
	return Problem{
		Ref:        ref,
		Title:      data.Question.Title,
		Difficulty: models.ParseDifficulty(data.Question.Difficulty),
	}, nil
}
