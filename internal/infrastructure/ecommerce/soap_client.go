package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapServiceNS  = "urn:Magento"
)

// SupplierRPC is the session-based call interface of the supplier API
type SupplierRPC interface {
	// Login opens a session and returns its token
	Login(ctx context.Context, username, apiKey string) (string, error)
	// Call invokes a resource method and returns the raw return value
	Call(ctx context.Context, session, method string, args ...any) (string, error)
	// EndSession closes the session
	EndSession(ctx context.Context, session string) error
}

// SOAPError is a failed SOAP exchange: a fault or an unexpected HTTP status
type SOAPError struct {
	StatusCode int
	FaultCode  string
	Message    string
}

func (e *SOAPError) Error() string {
	if e.FaultCode != "" {
		return fmt.Sprintf("soap fault %s: %s (HTTP %d)", e.FaultCode, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("soap: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsForbidden reports an access-denied answer, which the supplier uses for transient throttling
func (e *SOAPError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden || e.faultContains("403", "forbidden", "access denied")
}

// IsUnavailable reports a service-unavailable answer
func (e *SOAPError) IsUnavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.faultContains("503", "unavailable")
}

func (e *SOAPError) faultContains(needles ...string) bool {
	text := strings.ToLower(e.FaultCode + " " + e.Message)
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// SOAPClient implements SupplierRPC over SOAP 1.1
type SOAPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSOAPClient creates a client for the SOAP endpoint
func NewSOAPClient(endpoint string, timeout time.Duration, logger *zap.Logger) *SOAPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SOAPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type soapRequestEnvelope struct {
	XMLName xml.Name        `xml:"soapenv:Envelope"`
	EnvNS   string          `xml:"xmlns:soapenv,attr"`
	SvcNS   string          `xml:"xmlns:urn,attr"`
	Body    soapRequestBody `xml:"soapenv:Body"`
}

type soapRequestBody struct {
	Content any
}

type loginRequest struct {
	XMLName  xml.Name `xml:"urn:login"`
	Username string   `xml:"username"`
	APIKey   string   `xml:"apiKey"`
}

type callRequest struct {
	XMLName      xml.Name `xml:"urn:call"`
	SessionID    string   `xml:"sessionId"`
	ResourcePath string   `xml:"resourcePath"`
	Args         string   `xml:"args"`
}

type endSessionRequest struct {
	XMLName   xml.Name `xml:"urn:endSession"`
	SessionID string   `xml:"sessionId"`
}

type soapResponseEnvelope struct {
	Body struct {
		Fault *soapFault `xml:"Fault"`
		Inner []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

type soapFault struct {
	Code    string `xml:"faultcode"`
	Message string `xml:"faultstring"`
}

// soapResponseWrapper captures the single return element of an operation response
type soapResponseWrapper struct {
	Returns []struct {
		Value string `xml:",chardata"`
	} `xml:",any"`
}

// Login opens a supplier session
func (c *SOAPClient) Login(ctx context.Context, username, apiKey string) (string, error) {
	session, err := c.invoke(ctx, "login", &loginRequest{Username: username, APIKey: apiKey})
	if err != nil {
		return "", err
	}
	session = strings.TrimSpace(session)
	if session == "" {
		return "", fmt.Errorf("%w: empty session token", integration.ErrPlatformAuthFailed)
	}
	return session, nil
}

// Call invokes a resource method. Arguments are sent JSON encoded.
func (c *SOAPClient) Call(ctx context.Context, session, method string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("soap: failed to encode arguments: %w", err)
	}
	return c.invoke(ctx, "call", &callRequest{SessionID: session, ResourcePath: method, Args: string(encoded)})
}

// EndSession closes a supplier session
func (c *SOAPClient) EndSession(ctx context.Context, session string) error {
	_, err := c.invoke(ctx, "endSession", &endSessionRequest{SessionID: session})
	return err
}

func (c *SOAPClient) invoke(ctx context.Context, action string, content any) (string, error) {
	payload, err := xml.Marshal(&soapRequestEnvelope{
		EnvNS: soapEnvelopeNS,
		SvcNS: soapServiceNS,
		Body:  soapRequestBody{Content: content},
	})
	if err != nil {
		return "", fmt.Errorf("soap: failed to encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return "", fmt.Errorf("soap: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapServiceNS+"#"+action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("soap: failed to read response: %w", err)
	}

	var env soapResponseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", &SOAPError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
		}
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if env.Body.Fault != nil {
		return "", &SOAPError{
			StatusCode: resp.StatusCode,
			FaultCode:  strings.TrimSpace(env.Body.Fault.Code),
			Message:    strings.TrimSpace(env.Body.Fault.Message),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &SOAPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var wrapper soapResponseWrapper
	if err := xml.Unmarshal(env.Body.Inner, &wrapper); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(wrapper.Returns) == 0 {
		logger.Scoped(ctx, c.logger).Debug("SOAP response without return value", zap.String("action", action))
		return "", nil
	}
	return wrapper.Returns[0].Value, nil
}

// asSOAPError extracts a SOAPError from an error chain
func asSOAPError(err error) (*SOAPError, bool) {
	var soapErr *SOAPError
	if errors.As(err, &soapErr) {
		return soapErr, true
	}
	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ SupplierRPC = (*SOAPClient)(nil)
