package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"teams-enroll/enroll/internal/logging"
)

const (
	DefaultEndpoint = "https://zero-trust-client.cloudflareclient.com/v0i2308311933/reg"
	DefaultTimeout  = 10 * time.Second

	ClientVersion = "i-6.23-2308311933.1"
	UserAgent     = "1.1.1.1/6.23"

	headerAccessJWT     = "Cf-Access-Jwt-Assertion"
	headerClientVersion = "CF-Client-Version"
)

var validate = validator.New()

type Options struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *logging.Logger
}

type Client struct {
	resty    *resty.Client
	endpoint string
	log      *logging.Logger
}

// New builds the client. Accept-Encoding is left to the transport so
// compressed responses are decoded transparently.
func New(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"User-Agent":        UserAgent,
			"Accept":            "*/*",
			"Accept-Language":   "en-US,en;q=0.9",
			"Connection":        "keep-alive",
			headerClientVersion: ClientVersion,
		})
	return &Client{resty: client, endpoint: endpoint, log: log.WithComponent("enrollment")}
}

// Register submits reg once, authenticated by the Access JWT.
func (c *Client) Register(ctx context.Context, reg Registration, accessToken string) (RegistrationResult, error) {
	if err := validate.Struct(reg); err != nil {
		return RegistrationResult{}, fmt.Errorf("invalid registration: %w", err)
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return RegistrationResult{}, errors.New("access token is required")
	}

	c.log.Debug("registering device",
		zap.String("endpoint", c.endpoint),
		zap.String("name", reg.Name),
		zap.String("public_key", reg.Key),
	)

	var ok, failed Envelope
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader(headerAccessJWT, accessToken).
		SetBody(&reg).
		SetResult(&ok).
		SetError(&failed).
		Post(c.endpoint)
	if err != nil {
		if resp != nil && resp.RawResponse != nil {
			return RegistrationResult{}, fmt.Errorf("decode enrollment response (status %d): %w", resp.StatusCode(), err)
		}
		return RegistrationResult{}, fmt.Errorf("request enrollment endpoint: %w", err)
	}

	c.log.Debug("enrollment response",
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()),
	)

	if resp.IsError() {
		return RegistrationResult{}, &APIError{
			StatusCode: resp.StatusCode(),
			Errors:     failed.Errors,
			Body:       truncate(resp.String(), 1024),
		}
	}

	result, err := ok.Registration(resp.StatusCode())
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && len(apiErr.Errors) == 0 {
			apiErr.Body = truncate(resp.String(), 1024)
		}
		return RegistrationResult{}, err
	}

	if err := Validate(result); err != nil {
		return RegistrationResult{}, err
	}

	c.log.Debug("device registered",
		zap.String("id", result.ID),
		zap.String("client_id", result.Config.ClientID),
		zap.String("organization", result.Account.Organization),
	)
	return result, nil
}

// Validate checks that res carries enough to build a tunnel.
func Validate(res RegistrationResult) error {
	if err := validate.Struct(res); err != nil {
		return fmt.Errorf("invalid registration result: %w", err)
	}
	addrs := res.Config.Interface.Addresses
	if addrs.V4 == "" && addrs.V6 == "" {
		return errors.New("invalid registration result: no interface address assigned")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
