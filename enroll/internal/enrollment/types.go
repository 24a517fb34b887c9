package enrollment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Fixed client metadata sent with every registration.
const (
	ClientModel  = "PC"
	ClientType   = "Linux"
	ClientLocale = "en_US"
)

// Registration is the request body for the enrollment endpoint.
type Registration struct {
	Key          string `json:"key" validate:"required,base64"`
	InstallID    string `json:"install_id"`
	FCMToken     string `json:"fcm_token"`
	Tos          string `json:"tos" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Name         string `json:"name" validate:"required,max=128"`
	Type         string `json:"type" validate:"required"`
	Locale       string `json:"locale" validate:"required"`
	SerialNumber string `json:"serial_number"`
}

// NewRegistration builds the request for pub. The terms-of-service
// timestamp carries the local timezone offset.
func NewRegistration(pub wgtypes.Key, deviceName string, now time.Time) Registration {
	return Registration{
		Key:          pub.String(),
		Tos:          now.Format("2006-01-02T15:04:05.000Z07:00"),
		Model:        ClientModel,
		Name:         deviceName,
		Type:         ClientType,
		Locale:       ClientLocale,
		SerialNumber: uuid.NewString(),
	}
}

// Envelope is the response wrapper shared by all Cloudflare client APIs.
type Envelope struct {
	Success  bool                `json:"success"`
	Errors   []ServiceMessage    `json:"errors"`
	Messages []ServiceMessage    `json:"messages"`
	Result   *RegistrationResult `json:"result"`
}

type ServiceMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RegistrationResult struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Name    string  `json:"name"`
	Account Account `json:"account"`
	Config  Config  `json:"config"`
}

type Account struct {
	ID           string `json:"id"`
	AccountType  string `json:"account_type"`
	Organization string `json:"organization"`
}

type Config struct {
	ClientID  string    `json:"client_id"`
	Interface Interface `json:"interface"`
	Peers     []Peer    `json:"peers" validate:"required,min=1,dive"`
}

type Interface struct {
	Addresses Addresses `json:"addresses"`
}

type Addresses struct {
	V4 string `json:"v4" validate:"omitempty,ipv4"`
	V6 string `json:"v6" validate:"omitempty,ipv6"`
}

type Peer struct {
	PublicKey  string   `json:"public_key" validate:"required,base64"`
	AllowedIPs []string `json:"allowed_ips" validate:"omitempty,dive,cidr"`
	Endpoint   Endpoint `json:"endpoint"`
}

type Endpoint struct {
	V4    string `json:"v4"`
	V6    string `json:"v6"`
	Host  string `json:"host"`
	Ports []int  `json:"ports"`
}

// APIError is returned when the service answers with success=false or an
// HTTP error status.
type APIError struct {
	StatusCode int
	Errors     []ServiceMessage
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		body := strings.TrimSpace(e.Body)
		if body == "" {
			return fmt.Sprintf("enrollment failed: status %d", e.StatusCode)
		}
		return fmt.Sprintf("enrollment failed: status %d: %s", e.StatusCode, body)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s (code %d)", m.Message, m.Code))
	}
	return fmt.Sprintf("enrollment failed: status %d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

// Registration returns the result of a successful envelope.
func (e Envelope) Registration(status int) (RegistrationResult, error) {
	if !e.Success || e.Result == nil {
		return RegistrationResult{}, &APIError{StatusCode: status, Errors: e.Errors}
	}
	return *e.Result, nil
}
