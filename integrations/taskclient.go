package integrations

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
)

// TaskClient talks to the external task tracker's HTTP API.
type TaskClient struct {
	Client   *http.Client
	BaseURL  string
	APIToken string
}

func NewTaskClient(baseURL, token string) *TaskClient {
	return &TaskClient{
		Client:   &http.Client{Timeout: 10 * time.Second},
		BaseURL:  baseURL,
		APIToken: token,
	}
}

// UpdateTaskStatus pushes a status change for an external task. Transient
// failures are retried a few times with backoff.
func (tc *TaskClient) UpdateTaskStatus(taskID, status string) error {
	apiURL := fmt.Sprintf("%s/tasks/%s/status", tc.BaseURL, url.PathEscape(taskID))

	formData := url.Values{}
	formData.Set("token", tc.APIToken)
	formData.Set("status", status)

	return retry.Do(
		func() error {
			req, err := http.NewRequest("POST", apiURL, bytes.NewBufferString(formData.Encode()))
			if err != nil {
				return fmt.Errorf("failed to create status request: %v", err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := tc.Client.Do(req)
			if err != nil {
				return fmt.Errorf("failed to send status request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				bodyBytes, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("task API returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
}
