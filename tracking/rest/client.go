/*
Package rest talks to an MLflow tracking server over its REST 2.0 API
and to the server's artifact proxy behind mlflow-artifacts:/ uris
*/
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-http-utils/headers"
	"go-ml.dev/pkg/dvcflow/tracking"
	"go-ml.dev/pkg/zorros"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
)

const apiPrefix = "/api/2.0/mlflow/"

func init() {
	for _, s := range []string{"http", "https"} {
		tracking.RegisterStore(s, func(uri string, opts tracking.Options) (tracking.Store, error) {
			return New(uri, opts)
		})
	}
	tracking.RegisterArtifactRepository("mlflow-artifacts", func(uri string, opts tracking.Options) (tracking.ArtifactRepository, error) {
		return NewArtifactRepository(uri, opts)
	})
}

/*
APIError is an error response of the tracking server
*/
type APIError struct {
	Status  int
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("mlflow responded %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("mlflow responded %d %s: %s", e.Status, e.Code, e.Message)
}

// NotFound reports whether the requested resource does not exist
func (e *APIError) NotFound() bool {
	return e.Code == "RESOURCE_DOES_NOT_EXIST" || e.Status == http.StatusNotFound && e.Code == ""
}

/*
Client makes authorized requests to the tracking server
*/
type Client struct {
	base string
	opts tracking.Options
	http *http.Client
}

/*
NewClient creates a client of the server at base url
*/
func NewClient(base string, opts tracking.Options) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, zorros.Wrapf(err, "invalid tracking server url %q: %v", base, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, zorros.Errorf("invalid tracking server url %q", base)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(u.String(), "/"), opts: opts, http: hc}, nil
}

// Base returns the server url
func (c *Client) Base() string { return c.base }

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.opts.Token != "":
		req.Header.Set(headers.Authorization, "Bearer "+c.opts.Token)
	case c.opts.Username != "":
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}
}

/*
Do sends the request and returns the response body or an APIError for non 2xx status
*/
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) ([]byte, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	if contentType != "" {
		req.Header.Set(headers.ContentType, contentType)
	}
	req.Header.Set(headers.Accept, "application/json")
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zorros.Wrapf(err, "%v %v failed: %v", method, path, err.Error())
	}
	defer resp.Body.Close()
	bs, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	if resp.StatusCode/100 != 2 {
		e := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(bs, e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(bs))
		}
		return nil, e
	}
	return bs, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return zorros.Trace(err)
		}
		body = bytes.NewReader(bs)
		contentType = "application/json"
	}
	bs, err := c.Do(ctx, method, apiPrefix+endpoint, query, contentType, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err = json.Unmarshal(quoteNonFinite(bs), out); err != nil {
		return zorros.Wrapf(err, "invalid response of %v: %v", endpoint, err.Error())
	}
	return nil
}
