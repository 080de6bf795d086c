package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	pageSize  = 100
	revokeURL = "https://oauth2.googleapis.com/revoke"
)

// Service is the Gmail mail provider client. It exchanges refresh tokens for
// access tokens and exposes the paginated listing and per-message fetch
// surface the sync engine consumes.
type Service struct {
	clientID     string
	clientSecret string
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// RefreshAccessToken exchanges the stored refresh token for a fresh access
// token.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	// An already-expired expiry forces the token source to hit the refresh
	// endpoint instead of returning the (absent) access token.
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	fresh, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		return "", fmt.Errorf("unable to refresh access token: %w", err)
	}
	if fresh.AccessToken == "" {
		return "", errors.New("refresh exchange returned an empty access token")
	}
	return fresh.AccessToken, nil
}

// RevokeToken invalidates a refresh token at the provider. Used when a user
// disconnects their mail account.
func (s *Service) RevokeToken(ctx context.Context, refreshToken string) error {
	form := url.Values{"token": {refreshToken}}
	req, err := http.NewRequestWithContext(ctx, "POST", revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token revocation failed with status %d", resp.StatusCode)
	}
	return nil
}

// newGmailService creates a Gmail service bound to the user's access token.
func (s *Service) newGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	srv, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// ListMessageIDs returns one page of message ids matching the query. Pass the
// returned nextPageToken back in to continue; an empty token ends the listing.
func (s *Service) ListMessageIDs(ctx context.Context, accessToken, query, pageToken string) ([]string, string, error) {
	srv, err := s.newGmailService(ctx, accessToken)
	if err != nil {
		return nil, "", err
	}

	call := srv.Users.Messages.List("me").MaxResults(pageSize).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("unable to list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, resp.NextPageToken, nil
}

// GetMessage fetches a message in full form, including the part tree.
func (s *Service) GetMessage(ctx context.Context, accessToken, id string) (*txdomain.MailMessage, error) {
	srv, err := s.newGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}
	return convertMessage(msg), nil
}

// GetMessageTimestamp fetches only the message's internal receive timestamp
// (epoch milliseconds) using the minimal format.
func (s *Service) GetMessageTimestamp(ctx context.Context, accessToken, id string) (int64, error) {
	srv, err := s.newGmailService(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("minimal").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to retrieve message metadata: %w", err)
	}
	return msg.InternalDate, nil
}

func convertMessage(msg *gmail.Message) *txdomain.MailMessage {
	out := &txdomain.MailMessage{
		ID:           msg.Id,
		InternalDate: msg.InternalDate,
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, txdomain.Header{Name: h.Name, Value: h.Value})
		}
		out.Payload = convertPart(msg.Payload)
	}
	return out
}

func convertPart(part *gmail.MessagePart) *txdomain.MessagePart {
	out := &txdomain.MessagePart{
		MimeType: part.MimeType,
	}
	if part.Body != nil {
		out.Data = part.Body.Data
	}
	for _, sub := range part.Parts {
		out.Parts = append(out.Parts, convertPart(sub))
	}
	return out
}
