package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	tokenPath       = "/getToken"
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 16 * 1024
)

var errEmptyToken = errors.New("response carried no token")

// TokenResponse is the body of a successful credential request.
type TokenResponse struct {
	Token string `json:"token"`
}

// Client fetches media join tokens from the backend.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("module", "credential").Logger(),
	}
}

// Fetch requests a token for uid to join roomID.
func (c *Client) Fetch(ctx context.Context, roomID domain.RoomID, uid domain.ParticipantID) (string, error) {
	const step = "fetch credential"

	u, err := url.Parse(c.baseURL + tokenPath)
	if err != nil {
		return "", domain.NewStepError(step, domain.ErrCredential, err)
	}
	q := u.Query()
	q.Set("channelName", string(roomID))
	q.Set("uid", uid.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", domain.NewStepError(step, domain.ErrCredential, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.NewStepError(step, domain.ErrCredential, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewStepError(step, domain.ErrCredential, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var body TokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return "", domain.NewStepError(step, domain.ErrCredential, fmt.Errorf("decode response: %w", err))
	}
	if body.Token == "" {
		return "", domain.NewStepError(step, domain.ErrCredential, errEmptyToken)
	}

	c.log.Debug().Str("room", string(roomID)).Stringer("uid", uid).Msg("credential fetched")
	return body.Token, nil
}
