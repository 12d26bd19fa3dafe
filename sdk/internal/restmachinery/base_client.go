package restmachinery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/krancour/identity/sdk/meta"
	"github.com/pkg/errors"
)

// BaseClient provides "API machinery" used by all the specialized API clients.
type BaseClient struct {
	APIAddress string
	APIToken   string
	HTTPClient *http.Client
}

// NewBaseClient returns a *BaseClient that talks to the API server at the
// specified address using the specified token.
func NewBaseClient(
	apiAddress string,
	apiToken string,
	allowInsecure bool,
) *BaseClient {
	return &BaseClient{
		APIAddress: strings.TrimSuffix(apiAddress, "/"),
		APIToken:   apiToken,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: allowInsecure, // nolint: gosec
				},
			},
		},
	}
}

// BearerTokenAuthHeaders returns an Authorization header carrying the client's
// API token.
func (b *BaseClient) BearerTokenAuthHeaders() map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", b.APIToken),
	}
}

// ExecuteRequest submits the request and, if a response object was provided,
// unmarshals the response body into it.
func (b *BaseClient) ExecuteRequest(
	ctx context.Context,
	req OutboundRequest,
) error {
	resp, err := b.SubmitRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if req.RespObj != nil {
		respBodyBytes, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "error reading response body")
		}
		if err := json.Unmarshal(respBodyBytes, req.RespObj); err != nil {
			return errors.Wrap(err, "error unmarshaling response body")
		}
	}
	return nil
}

// SubmitRequest submits the request and returns the raw response. Any
// unexpected status code is translated into one of the error types from the
// meta package.
func (b *BaseClient) SubmitRequest(
	ctx context.Context,
	req OutboundRequest,
) (*http.Response, error) {
	var reqBodyReader io.Reader
	if req.ReqBodyObj != nil {
		switch rb := req.ReqBodyObj.(type) {
		case []byte:
			reqBodyReader = bytes.NewBuffer(rb)
		default:
			reqBodyBytes, err := json.Marshal(req.ReqBodyObj)
			if err != nil {
				return nil, errors.Wrap(err, "error marshaling request body")
			}
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
		}
	}

	r, err := http.NewRequestWithContext(
		ctx,
		req.Method,
		fmt.Sprintf("%s/%s", b.APIAddress, req.Path),
		reqBodyReader,
	)
	if err != nil {
		return nil, errors.Wrapf(
			err,
			"error creating request %s %s",
			req.Method,
			req.Path,
		)
	}
	if len(req.QueryParams) > 0 {
		q := r.URL.Query()
		for k, v := range req.QueryParams {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
	if reqBodyReader != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.AuthHeaders {
		r.Header.Add(k, v)
	}
	for k, v := range req.Headers {
		r.Header.Add(k, v)
	}

	resp, err := b.HTTPClient.Do(r)
	if err != nil {
		return nil, errors.Wrap(err, "error invoking API")
	}

	if (req.SuccessCode == 0 && resp.StatusCode != http.StatusOK) ||
		(req.SuccessCode != 0 && resp.StatusCode != req.SuccessCode) {
		defer resp.Body.Close()
		bodyBytes, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "error reading error response body")
		}
		return nil, apiError(resp.StatusCode, bodyBytes)
	}
	return resp, nil
}

// apiError uses the status code, and for 401s the kind reported in the body,
// to decide what sort of error the body holds.
func apiError(statusCode int, bodyBytes []byte) error {
	var apiErr error
	switch statusCode {
	case http.StatusUnauthorized:
		typeMeta := meta.TypeMeta{}
		// A body we can't make sense of still means the request was unauthorized
		_ = json.Unmarshal(bodyBytes, &typeMeta)
		switch typeMeta.Kind {
		case "ExpiredError":
			apiErr = &meta.ErrExpired{}
		case "MalformedTokenError":
			apiErr = &meta.ErrMalformed{}
		default:
			apiErr = &meta.ErrAuthentication{}
		}
	case http.StatusForbidden:
		apiErr = &meta.ErrAuthorization{}
	case http.StatusBadRequest:
		apiErr = &meta.ErrBadRequest{}
	case http.StatusNotFound:
		apiErr = &meta.ErrNotFound{}
	case http.StatusConflict:
		apiErr = &meta.ErrConflict{}
	case http.StatusServiceUnavailable:
		apiErr = &meta.ErrStorageUnavailable{}
	case http.StatusInternalServerError:
		apiErr = &meta.ErrInternalServer{}
	default:
		return errors.Errorf("received %d from API server", statusCode)
	}
	if len(bodyBytes) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(bodyBytes, apiErr); err != nil {
		return errors.Wrap(err, "error unmarshaling error response body")
	}
	return apiErr
}
