package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOpenTimeout   = 15 * time.Second
	defaultSubmitTimeout = 10 * time.Second
)

// HTTPOpener opens portal sessions against the portal's REST surface.
type HTTPOpener struct {
	client        *resty.Client
	baseURL       string
	submitTimeout time.Duration
}

func NewHTTPOpener(baseURL string, submitTimeout time.Duration) (*HTTPOpener, error) {
	client := resty.New()
	client.SetTimeout(defaultOpenTimeout)
	client.SetRetryCount(0)

	return NewHTTPOpenerWithClient(baseURL, submitTimeout, client)
}

func NewHTTPOpenerWithClient(baseURL string, submitTimeout time.Duration, client *resty.Client) (*HTTPOpener, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("portal base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid portal base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}
	client.SetRetryCount(0)

	return &HTTPOpener{
		client:        client,
		baseURL:       trimmed,
		submitTimeout: submitTimeout,
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Open authenticates against the portal and returns a live session. The
// credential is used for the login call only and not stored on the session.
func (o *HTTPOpener) Open(ctx context.Context, cred Credential) (Session, error) {
	if o == nil || o.client == nil {
		return nil, &SessionError{Kind: ErrorKindConnectivity, Message: "opener is not initialized"}
	}
	if strings.TrimSpace(cred.Username) == "" || cred.Password == "" {
		return nil, &SessionError{Kind: ErrorKindAuth, Message: "credential username and password are required"}
	}

	var body loginResponse
	response, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(loginRequest{Username: cred.Username, Password: cred.Password}).
		SetResult(&body).
		Post(o.baseURL + "/api/v1/sessions")
	if err != nil {
		return nil, &SessionError{
			Kind:    ErrorKindConnectivity,
			Message: "portal login request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return nil, &SessionError{
			Kind:       ErrorKindAuth,
			StatusCode: statusCode,
			Message:    "portal rejected credentials",
		}
	case statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices:
		return nil, &SessionError{
			Kind:       ErrorKindConnectivity,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("portal login returned status %d", statusCode),
		}
	}

	if strings.TrimSpace(body.Token) == "" {
		return nil, &SessionError{
			Kind:       ErrorKindConnectivity,
			StatusCode: statusCode,
			Message:    "portal login returned no session token",
		}
	}

	return &httpSession{
		client:        o.client,
		baseURL:       o.baseURL,
		token:         body.Token,
		submitTimeout: o.submitTimeout,
	}, nil
}

type httpSession struct {
	client        *resty.Client
	baseURL       string
	token         string
	submitTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

type submitRequest struct {
	Marks []MarkEntry `json:"marks"`
}

type submitResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func (s *httpSession) Submit(ctx context.Context, sub Submission) Outcome {
	if strings.TrimSpace(sub.ExternalID) == "" {
		return Rejected("candidate external id is required")
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	var body submitResponse
	endpoint := fmt.Sprintf("%s/api/v1/batches/%s/candidates/%s/marks",
		s.baseURL, url.PathEscape(sub.PortalBatchID), url.PathEscape(sub.ExternalID))

	response, err := s.client.R().
		SetContext(submitCtx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(s.token).
		SetResult(&body).
		SetBody(submitRequest{Marks: sub.Marks}).
		Post(endpoint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || submitCtx.Err() != nil {
			return TimedOut()
		}
		return Rejected(fmt.Sprintf("portal request failed: %v", err))
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		if body.Accepted || body.Reason == "" {
			return Accepted()
		}
		return Rejected(body.Reason)
	}

	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = strings.TrimSpace(response.String())
	}
	if reason == "" {
		reason = fmt.Sprintf("portal returned status %d", statusCode)
	}
	return Rejected(reason)
}

// Recover verifies the session token is still usable after an item failure.
func (s *httpSession) Recover(ctx context.Context) error {
	response, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.token).
		Get(s.baseURL + "/api/v1/sessions/current")
	if err != nil {
		return &SessionError{
			Kind:    ErrorKindConnectivity,
			Message: "session recovery probe failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return &SessionError{
			Kind:       ErrorKindAuth,
			StatusCode: statusCode,
			Message:    "session no longer authenticated",
		}
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &SessionError{
			Kind:       ErrorKindConnectivity,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("session probe returned status %d", statusCode),
		}
	}

	return nil
}

func (s *httpSession) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(s.token).
			Delete(s.baseURL + "/api/v1/sessions/current")
		if err != nil {
			s.closeErr = fmt.Errorf("portal logout failed: %w", err)
		}
		s.token = ""
	})
	return s.closeErr
}
