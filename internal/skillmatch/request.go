package skillmatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/utils"
)

const (
	contentType     = "application/json"
	requestIDHeader = "X-Request-ID"
	// Max length of a server error body kept in errors and logs.
	maxErrorBody = 200
)

// Item is one undecoded element of a list response.
type Item interface{}

// listEnvelopes are the keys a paginated or wrapped list may be served under.
var listEnvelopes = []string{"results", "data"}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// GetItems makes GET request and returns list items regardless of the envelope the server used.
func (c *Client) GetItems(ctx context.Context, op, path string) ([]Item, error) {
	resp, err := c.r(ctx).Get(path)
	if err := checkResponse(op, resp, err); err != nil {
		return nil, err
	}

	return listItems(resp.Body()), nil
}

// listItems accepts a bare array, {results: [...]} or {data: [...]}. Anything else is an empty list.
func listItems(body []byte) []Item {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		found := false
		for _, key := range listEnvelopes {
			if inner := parsed.Get(key); inner.IsArray() {
				parsed = inner
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}

	raw, ok := parsed.Value().([]interface{})
	if !ok {
		return nil
	}

	items := make([]Item, 0, len(raw))
	for _, v := range raw {
		items = append(items, v)
	}

	return items
}

func decodeItems(items []Item, target interface{}) error {
	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(items)
}

func (c *Client) getJSON(ctx context.Context, op, path string, target interface{}) error {
	resp, err := c.r(ctx).SetResult(target).Get(path)
	return checkResponse(op, resp, err)
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, target interface{}) error {
	req := c.r(ctx).SetBody(body)
	if target != nil {
		req.SetResult(target)
	}

	resp, err := req.Post(path)
	return checkResponse(op, resp, err)
}

func (c *Client) patchJSON(ctx context.Context, op, path string, body, target interface{}) error {
	req := c.r(ctx).SetBody(body)
	if target != nil {
		req.SetResult(target)
	}

	resp, err := req.Patch(path)
	return checkResponse(op, resp, err)
}

// checkResponse maps every failure of a single call to a TransportError.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &apperr.TransportError{Op: op, Err: err}
	}

	if resp == nil {
		return &apperr.TransportError{Op: op, Err: errors.New("empty response")}
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &apperr.TransportError{Op: op, Status: resp.StatusCode(), Err: errorDetail(resp.Body())}
	}

	return nil
}

// errorDetail extracts a short server-provided reason, if any.
func errorDetail(body []byte) error {
	if len(body) == 0 {
		return nil
	}

	parsed := gjson.ParseBytes(body)
	for _, key := range []string{"detail", "error", "message"} {
		if v := parsed.Get(key); v.Exists() && v.String() != "" {
			return errors.New(utils.TruncateForLog(v.String(), maxErrorBody))
		}
	}

	return errors.New(utils.TruncateForLog(string(body), maxErrorBody))
}

func (c *Client) setHeaders(_ *resty.Client, req *resty.Request) error {
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.SetHeader("Authorization", fmt.Sprintf("%s %s", c.authScheme, token))
		}
	}
	req.SetHeader(requestIDHeader, uuid.NewString())

	return nil
}

func (c *Client) logResponse(_ *resty.Client, resp *resty.Response) error {
	c.logger.Debug("got response from skillmatch api",
		zap.String("method", resp.Request.Method),
		zap.String("url", resp.Request.URL),
		zap.String("request_id", resp.Request.Header.Get(requestIDHeader)),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", resp.Time()),
	)

	return nil
}
