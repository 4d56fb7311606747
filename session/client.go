package session

import (
	"context"
	"fmt"
	"net/http"
	"resty.dev/v3"
	"time"
)

// Client talks to the session store HTTP API.
type Client struct {
	apiRoot      string
	serviceToken string
	httpClient   *resty.Client
}

func NewClient(apiRoot string, serviceToken string) *Client {
	return &Client{
		apiRoot:      apiRoot,
		serviceToken: serviceToken,
		httpClient:   resty.New(),
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

func (c *Client) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	url := c.apiRoot + "/session/validate"

	var result validateResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.serviceToken).
		SetHeader("Content-Type", "application/json").
		SetBody(validateRequest{Token: token}).
		SetResult(&result).
		Post(url)

	if err != nil {
		return nil, fmt.Errorf("validating session token failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusNotFound:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("validating session token failed: %v", resp.Status())
	}

	if !result.ExpiresAt.After(time.Now()) {
		return nil, ErrTokenExpired
	}

	return &Identity{
		UserId:      result.UserId,
		DisplayName: result.DisplayName,
	}, nil
}

func (c *Client) Close() error {
	return c.httpClient.Close()
}
