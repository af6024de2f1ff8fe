package hcaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/httpx"
)

// FormField is the form field the hCaptcha widget posts its token in.
const FormField = "h-captcha-response"

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks tokens against the siteverify endpoint.
type Verifier struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

// NewVerifierFromConfig returns nil when no secret is configured.
func NewVerifierFromConfig(cfg *config.Config) *Verifier {
	if cfg.HCaptchaSecret == "" {
		return nil
	}
	return &Verifier{
		Secret:     cfg.HCaptchaSecret,
		VerifyURL:  cfg.HCaptchaVerifyURL,
		HTTPClient: httpx.NewClient(cfg.HTTPClientTimeout),
	}
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("hCaptcha token is empty")
	}

	formData := url.Values{
		"secret":   {v.Secret},
		"response": {token},
	}
	if remoteIP != "" {
		formData.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}

	if !response.Success {
		errorMsg := "hCaptcha validation failed"
		if len(response.ErrorCodes) > 0 {
			errorMsg = errorMsg + ": " + strings.Join(response.ErrorCodes, ", ")
		}
		return false, fmt.Errorf("%s", errorMsg)
	}

	return true, nil
}
