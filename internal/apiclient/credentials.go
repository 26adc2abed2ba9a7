package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ridehail/internal/failure"
)

// CredentialCheck is the outcome of a login check.
type CredentialCheck int

const (
	CredentialsValid CredentialCheck = iota + 1
	CredentialsIncorrect
	AccountUnknown
)

func (c CredentialCheck) String() string {
	switch c {
	case CredentialsValid:
		return "valid"
	case CredentialsIncorrect:
		return "incorrect"
	case AccountUnknown:
		return "invalid"
	default:
		return "unknown"
	}
}

// ValidateUser checks a rider's credentials.
func (c *Client) ValidateUser(ctx context.Context, userID, password string) (CredentialCheck, error) {
	return c.validate(ctx, "validate user", "/api/v1/validateUser/", userID, password)
}

// ValidateDriver checks a driver's credentials.
func (c *Client) ValidateDriver(ctx context.Context, driverID, password string) (CredentialCheck, error) {
	return c.validate(ctx, "validate driver", "/api/v1/validateDriver/", driverID, password)
}

func (c *Client) validate(ctx context.Context, op, prefix, id, password string) (CredentialCheck, error) {
	if id == "" || password == "" {
		return 0, failure.Validation(op, "Please enter both your id and password.", ErrMissingID)
	}

	status, raw, err := c.do(ctx, op, http.MethodGet, prefix+url.PathEscape(id)+"/"+url.PathEscape(password), nil, nil)
	if err != nil {
		return 0, err
	}
	if status < 200 || status > 299 {
		_, err := decodeEnvelope(op, status, raw)
		return 0, err
	}

	check, ok := parseCredentialCheck(raw)
	if !ok {
		return 0, failure.Protocol(op, "The server sent a response we could not understand.", fmt.Errorf("%w: unknown credential result", ErrUnexpectedResponseFormat))
	}
	return check, nil
}

// parseCredentialCheck accepts a JSON string, an object with a message field, or plain text.
func parseCredentialCheck(raw []byte) (CredentialCheck, bool) {
	trimmed := bytes.TrimSpace(raw)

	var word string
	switch {
	case len(trimmed) > 0 && trimmed[0] == '"':
		if err := json.Unmarshal(trimmed, &word); err != nil {
			return 0, false
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var body struct {
			Message string `json:"message"`
			Result  string `json:"result"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return 0, false
		}
		word = body.Result
		if word == "" {
			word = body.Message
		}
	default:
		word = string(trimmed)
	}

	switch strings.ToLower(strings.TrimSpace(word)) {
	case "valid":
		return CredentialsValid, true
	case "incorrect":
		return CredentialsIncorrect, true
	case "invalid":
		return AccountUnknown, true
	default:
		return 0, false
	}
}
