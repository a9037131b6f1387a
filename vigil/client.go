// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package vigil is the HTTP client for the Vigil monitoring server's
// management API. It implements the request-issuer contract consumed by
// the query and batch packages.
package vigil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/httpaux/erraux"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/vigil-monitoring/vigil-go/model"
	"github.com/vigil-monitoring/vigil-go/query"
)

// Errors that can be returned by this package. Since some of these errors
// are returned wrapped, it is safest to use errors.Is() to check for them.
var (
	ErrAddressEmpty         = errors.New("vigil address is required")
	ErrAuthAcquirerFailure  = errors.New("failed acquiring auth token")
	ErrBadRequest           = errors.New("vigil rejected the request as invalid")
	ErrFailedAuthentication = errors.New("failed to authenticate with vigil")
)

var (
	errNonSuccessResponse = errors.New("vigil responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling request as JSON payload")
)

const (
	apiBasePath      = "/api/v1"
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
	errorHeaderKey   = "errorHeader"
)

// BasicClientConfig contains config data for the client that will be used
// to make requests to the Vigil server.
type BasicClientConfig struct {
	// Address is the Vigil server URL (i.e. https://vigil.example.net:8443)
	Address string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth provides the mechanism to add auth headers to outgoing requests.
	// (Optional) If not provided, no auth headers are added.
	Auth Auth

	// PageSize is the record window requested per table round trip.
	// (Optional) Defaults to the query engine's page size.
	PageSize int

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger

	// Measures lets requests issued by this client be counted.
	// (Optional) If not provided, no metrics are updated.
	Measures *Measures
}

// Auth contains authorization data for requests to Vigil.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// BasicClient is the client used to make requests to Vigil.
type BasicClient struct {
	client    *http.Client
	auth      acquire.Acquirer
	baseURL   string
	logger    *zap.Logger
	getLogger func(context.Context) *zap.Logger
	pageSize  int
	measures  *Measures
}

type response struct {
	Body             []byte
	VigilErrorHeader string
	Code             int
}

// NewBasicClient creates a new BasicClient that can be used to make
// requests to Vigil.
func NewBasicClient(config BasicClientConfig, getLogger func(context.Context) *zap.Logger) (*BasicClient, error) {
	err := validateBasicConfig(&config)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}
	return &BasicClient{
		client:    config.HTTPClient,
		auth:      tokenAcquirer,
		baseURL:   config.Address + apiBasePath,
		logger:    config.Logger,
		getLogger: getLogger,
		pageSize:  config.PageSize,
		measures:  config.Measures,
	}, nil
}

// Table fetches the record window [start, start+count) for a content type.
// It satisfies query.Issuer; retries (if any) are the caller's concern.
func (c *BasicClient) Table(ctx context.Context, ct model.ContentType, filters []model.SearchFilter, columns []string, sortBy string, start, count int) (model.Page, error) {
	values := url.Values{}
	values.Set("content", string(ct))
	values.Set("start", strconv.Itoa(start))
	values.Set("count", strconv.Itoa(count))
	encodeFilters(values, filters)
	if len(columns) > 0 {
		values.Set("columns", strings.Join(columns, ","))
	}
	if sortBy != "" {
		values.Set("sortby", sortBy)
	}

	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/table?%s", c.baseURL, values.Encode()), nil)
	c.count(TableOperation, err == nil && resp.Code == http.StatusOK)
	if err != nil {
		return model.Page{}, err
	}
	if resp.Code != http.StatusOK {
		c.logNonSuccess(ctx, "table", resp)
		return model.Page{}, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	page, err := model.ParseTable(ct, resp.Body)
	if err != nil {
		return model.Page{}, fmt.Errorf("Table: %w", err)
	}
	return page, nil
}

type countEnvelope struct {
	Total int `json:"totalcount"`
}

// TotalCount fetches the size of a filtered collection without
// transferring records.
func (c *BasicClient) TotalCount(ctx context.Context, ct model.ContentType, filters []model.SearchFilter) (int, error) {
	values := url.Values{}
	values.Set("content", string(ct))
	encodeFilters(values, filters)

	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/table/count?%s", c.baseURL, values.Encode()), nil)
	c.count(CountOperation, err == nil && resp.Code == http.StatusOK)
	if err != nil {
		return 0, err
	}
	if resp.Code != http.StatusOK {
		c.logNonSuccess(ctx, "count", resp)
		return 0, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var envelope countEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return 0, fmt.Errorf("TotalCount: %w: %s", errJSONUnmarshal, err.Error())
	}
	return envelope.Total, nil
}

type editRequest struct {
	IDs        []int                 `json:"ids"`
	Properties []model.PropertyValue `json:"properties"`
}

// SetProperties applies one property set to every identified object in a
// single request. It satisfies the batch writer contract. Values are not
// validated locally; a server-side rejection surfaces as a request failure.
func (c *BasicClient) SetProperties(ctx context.Context, ids []int, props model.PropertySet) error {
	body, err := json.Marshal(editRequest{IDs: ids, Properties: props.Values()})
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	resp, err := c.sendRequest(ctx, http.MethodPost, c.baseURL+"/edit", bytes.NewReader(body))
	c.count(EditOperation, err == nil && resp.Code == http.StatusOK)
	if err != nil {
		return err
	}
	if resp.Code != http.StatusOK {
		c.logNonSuccess(ctx, "edit", resp)
		return fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}
	return nil
}

func encodeFilters(values url.Values, filters []model.SearchFilter) {
	for _, f := range filters {
		values.Add("filter_"+string(f.Property), string(f.Operator)+":"+f.Value)
	}
}

func (c *BasicClient) sendRequest(ctx context.Context, method, url string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	err = acquire.AddAuth(r, c.auth)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()
	var out = response{
		Code:             resp.StatusCode,
		VigilErrorHeader: resp.Header.Get(ErrorHeaderKey),
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	out.Body = bodyBytes
	return out, nil
}

func (c *BasicClient) logNonSuccess(ctx context.Context, operation string, resp response) {
	l := c.getLogger(ctx)
	if l == nil {
		l = c.logger
	}
	l.Error("Vigil responded with a non-success status code",
		zap.String("operation", operation),
		zap.Int("code", resp.Code),
		zap.String(errorHeaderKey, resp.VigilErrorHeader))
}

func (c *BasicClient) count(operation string, success bool) {
	if c.measures == nil || c.measures.Requests == nil {
		return
	}
	outcome := SuccessOutcome
	if !success {
		outcome = FailureOutcome
	}
	c.measures.Requests.With(prometheus.Labels{
		OperationLabel: operation,
		OutcomeLabel:   outcome,
	}).Add(1)
}

// ErrorHeaderKey is the response header carrying the server's error detail.
const ErrorHeaderKey = "X-Vigil-Error"

// translateNonSuccessStatusCode returns a specific error for known Vigil
// status codes; other codes keep their status attached.
func translateNonSuccessStatusCode(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrFailedAuthentication
	default:
		return &erraux.Error{Err: errNonSuccessResponse, Code: code}
	}
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	if !isEmpty(auth.JWT) {
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	} else if len(auth.Basic) > 0 {
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	}
	return &acquire.DefaultAcquirer{}, nil
}

func validateBasicConfig(config *BasicClientConfig) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}

// compile-time contract checks
var (
	_ query.Issuer = (*BasicClient)(nil)
)
