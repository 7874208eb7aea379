package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultBaseURL is the FCM HTTP v1 endpoint.
const DefaultBaseURL = "https://fcm.googleapis.com"

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Message is one push notification addressed to a single device token.
type Message struct {
	Token    string
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string // delivered to the app as FCM data, e.g. job_id
}

// SendResponse is the gateway's answer to one send. For non-2xx answers
// ErrorStatus and ErrorCode carry the FCM error classification.
type SendResponse struct {
	StatusCode   int    `json:"status_code"`
	Name         string `json:"name,omitempty"` // message id on success
	ErrorStatus  string `json:"error_status,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Success reports a 2xx answer.
func (r *SendResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client represents an FCM HTTP v1 client
type Client struct {
	baseURL   string
	projectID string
	http      *resty.Client
}

type sendRequest struct {
	Message wireMessage `json:"message"`
}

type wireMessage struct {
	Token        string            `json:"token"`
	Notification wireNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

type sendResult struct {
	Name string `json:"name"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// NewClient creates a new FCM client. A nil token source sends no
// Authorization header.
func NewClient(baseURL, projectID string, ts oauth2.TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
	}

	// One POST per Send: failed occurrences are never retried.
	client.http = resty.New().
		SetHeader("User-Agent", "nudger/1.0").
		SetTimeout(30 * time.Second).
		SetRetryCount(0)

	if ts != nil {
		ts = oauth2.ReuseTokenSource(nil, ts)
		client.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			tok, err := ts.Token()
			if err != nil {
				return fmt.Errorf("failed to obtain access token: %w", err)
			}
			req.SetAuthToken(tok.AccessToken)
			return nil
		})
	}

	return client
}

// NewClientFromServiceAccount builds a client from a Google service-account
// JSON file. projectID overrides the project in the file when set.
func NewClientFromServiceAccount(ctx context.Context, baseURL, credentialsFile, projectID string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account file: %w", err)
	}

	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, fmt.Errorf("project id is not set and not present in %s", credentialsFile)
	}

	return NewClient(baseURL, projectID, creds.TokenSource), nil
}

// ProjectID returns the Firebase project messages are sent through.
func (c *Client) ProjectID() string {
	return c.projectID
}

// Send delivers one message. A non-nil error means the gateway could not be
// reached; rejections come back as a response with a non-2xx status.
func (c *Client) Send(ctx context.Context, msg Message) (*SendResponse, error) {
	body := sendRequest{Message: wireMessage{
		Token: msg.Token,
		Notification: wireNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Image: msg.ImageURL,
		},
		Data: msg.Data,
	}}

	var result sendResult
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.buildURL(fmt.Sprintf("v1/projects/%s/messages:send", c.projectID)))
	if err != nil {
		return nil, fmt.Errorf("fcm send failed: %w", err)
	}

	out := &SendResponse{StatusCode: resp.StatusCode()}
	if resp.IsSuccess() {
		out.Name = result.Name
		return out, nil
	}

	out.ErrorStatus = apiErr.Error.Status
	out.ErrorMessage = apiErr.Error.Message
	for _, d := range apiErr.Error.Details {
		if d.ErrorCode != "" {
			out.ErrorCode = d.ErrorCode
			break
		}
	}
	if out.ErrorMessage == "" {
		out.ErrorMessage = strings.TrimSpace(resp.String())
	}
	return out, nil
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}

// SetTimeout allows customizing the per-request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.SetTimeout(timeout)
}
